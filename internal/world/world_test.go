package world

import (
	"errors"
	"math"
	"testing"
	"time"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/physics"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w
}

func mustAdd(t *testing.T, w *World, opts SpriteOptions) SpriteState {
	t.Helper()
	s, err := w.AddSprite(opts)
	if err != nil {
		t.Fatalf("AddSprite(%+v) failed: %v", opts, err)
	}
	return s
}

// TestNewWorld verifies defaults and the initial snapshot
func TestNewWorld(t *testing.T) {
	w := newTestWorld(t)

	snap := w.Snapshot()
	if snap == nil {
		t.Fatal("initial snapshot missing")
	}
	if snap.Cols != grid.DefaultCols || snap.Rows != grid.DefaultRows {
		t.Errorf("Expected %dx%d grid, got %dx%d", grid.DefaultCols, grid.DefaultRows, snap.Cols, snap.Rows)
	}
	if len(snap.Cells) != snap.Cols*snap.Rows {
		t.Errorf("Expected %d cells, got %d", snap.Cols*snap.Rows, len(snap.Cells))
	}

	cfg := DefaultConfig()
	cfg.TickRate = 0
	if _, err := New(cfg); !errors.Is(err, physics.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for zero tick rate, got %v", err)
	}
}

// TestAddSprite tests validation and ID allocation
func TestAddSprite(t *testing.T) {
	w := newTestWorld(t)

	a := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 40, Y: 40, Radius: 6})
	b := mustAdd(t, w, SpriteOptions{Type: TypeMonster, X: 100, Y: 40, Radius: 6, Shape: geom.ShapeCircle})
	if a.ID == 0 || b.ID <= a.ID {
		t.Errorf("Expected increasing non-zero IDs, got %d then %d", a.ID, b.ID)
	}
	if a.Impassable != defaultImpassable[TypeHero] {
		t.Errorf("Expected hero default mask, got %b", a.Impassable)
	}
	if b.Shape != "circle" {
		t.Errorf("Expected circle, got %s", b.Shape)
	}

	if _, err := w.AddSprite(SpriteOptions{Type: "dragon", Radius: 4}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
	if _, err := w.AddSprite(SpriteOptions{Type: TypeHero}); !errors.Is(err, physics.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for zero radius, got %v", err)
	}
	if got := w.SpriteCount(); got != 2 {
		t.Errorf("Expected 2 sprites, got %d", got)
	}
}

// TestSpriteLimit verifies the hard cap on sprites
func TestSpriteLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSprites = 2
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mustAdd(t, w, SpriteOptions{Type: TypeCrate, X: 40, Y: 40, Radius: 4})
	mustAdd(t, w, SpriteOptions{Type: TypeCrate, X: 80, Y: 40, Radius: 4})
	if _, err := w.AddSprite(SpriteOptions{Type: TypeCrate, X: 120, Y: 40, Radius: 4}); !errors.Is(err, ErrFull) {
		t.Errorf("Expected ErrFull, got %v", err)
	}
}

// TestStepResolvesOverlap runs one tick on two overlapping sprites
func TestStepResolvesOverlap(t *testing.T) {
	w := newTestWorld(t)
	a := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 100, Y: 100, Radius: 8, Shape: geom.ShapeCircle})
	b := mustAdd(t, w, SpriteOptions{Type: TypeMonster, X: 110, Y: 100, Radius: 8, Shape: geom.ShapeCircle})

	var ticks int
	var contacts []Contact
	w.OnTick = func(physics.TickStats) { ticks++ }
	w.OnContact = func(c Contact) { contacts = append(contacts, c) }

	stats, err := w.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !stats.Settled || stats.Resolves != 1 {
		t.Errorf("Expected one settled resolve, got %+v", stats)
	}
	if ticks != 1 {
		t.Errorf("Expected OnTick once, got %d", ticks)
	}
	if len(contacts) != 1 || contacts[0].A != a.ID || contacts[0].B != b.ID || contacts[0].Tick != 1 {
		t.Errorf("Unexpected contacts %+v", contacts)
	}

	got, _ := w.Sprite(a.ID)
	if math.Abs(got.X-96.97) > 1e-9 {
		t.Errorf("Expected hero pushed to 96.97, got %v", got.X)
	}

	res, err := w.Query(a.ID, b.ID, TypeMonster)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !res.Sprite || !res.Any || !res.Exact || !res.Type || res.Grid {
		t.Errorf("Unexpected query result %+v", res)
	}
	if len(res.Partners) != 1 || res.Partners[0] != b.ID {
		t.Errorf("Expected partner %d, got %v", b.ID, res.Partners)
	}

	snap := w.Snapshot()
	if snap.Tick != 1 || len(snap.Contacts) != 1 || len(snap.Sprites) != 2 {
		t.Errorf("Snapshot not updated: tick=%d contacts=%d sprites=%d", snap.Tick, len(snap.Contacts), len(snap.Sprites))
	}
}

// TestSwarmIgnoresItself verifies same-type filtering through the built-in types
func TestSwarmIgnoresItself(t *testing.T) {
	w := newTestWorld(t)
	a := mustAdd(t, w, SpriteOptions{Type: TypeSwarm, X: 100, Y: 100, Radius: 6})
	mustAdd(t, w, SpriteOptions{Type: TypeSwarm, X: 104, Y: 100, Radius: 6})

	if _, err := w.Step(); err != nil {
		t.Fatal(err)
	}
	got, _ := w.Sprite(a.ID)
	if got.X != 100 {
		t.Errorf("Swarm members should overlap freely, got x=%v", got.X)
	}
}

// TestWallContact verifies grid contacts and cell edits
func TestWallContact(t *testing.T) {
	w := newTestWorld(t)
	if n := w.FillRect(5, 0, 1, grid.DefaultRows, grid.Solid); n != grid.DefaultRows {
		t.Fatalf("Expected %d cells filled, got %d", grid.DefaultRows, n)
	}
	s := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 90, Y: 136, Radius: 8})

	if _, err := w.Step(); err != nil {
		t.Fatal(err)
	}
	res, _ := w.Query(s.ID, 0, "")
	if !res.Grid || res.Sprite {
		t.Errorf("Expected a grid-only contact, got %+v", res)
	}
	got, _ := w.Sprite(s.ID)
	if !got.CollidedGrid {
		t.Error("CollidedGrid should be set")
	}

	if err := w.SetCell(25, 0, grid.Cell{Physics: grid.Solid}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
	if err := w.SetCell(3, 3, grid.Cell{Physics: grid.Latch, Corners: grid.RoundAll}); err != nil {
		t.Errorf("SetCell failed: %v", err)
	}
	if c := w.Snapshot().Cell(3, 3); c.Physics != grid.Latch || c.Corners != grid.RoundAll {
		t.Errorf("Snapshot cell not updated: %+v", c)
	}
}

// TestVelocityAppliedPerTick verifies px/s intents are scaled by the tick rate
func TestVelocityAppliedPerTick(t *testing.T) {
	w := newTestWorld(t)
	s := mustAdd(t, w, SpriteOptions{Type: TypeCrate, X: 100, Y: 100, Radius: 4})

	if err := w.SetVelocity(s.ID, 60, -120); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := w.Step(); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := w.Sprite(s.ID)
	if math.Abs(got.X-103) > 1e-9 || math.Abs(got.Y-94) > 1e-9 {
		t.Errorf("Expected (103,94), got (%v,%v)", got.X, got.Y)
	}
	if err := w.SetVelocity(999, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestRemoveSprite verifies removed sprites stop colliding
func TestRemoveSprite(t *testing.T) {
	w := newTestWorld(t)
	a := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 100, Y: 100, Radius: 8})
	b := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 104, Y: 100, Radius: 8})

	if !w.RemoveSprite(b.ID) {
		t.Fatal("RemoveSprite returned false")
	}
	if w.RemoveSprite(b.ID) {
		t.Error("Second RemoveSprite should return false")
	}
	if _, err := w.Step(); err != nil {
		t.Fatal(err)
	}
	got, _ := w.Sprite(a.ID)
	if got.X != 100 {
		t.Errorf("Removed sprite still pushed a, x=%v", got.X)
	}
	if _, err := w.Query(b.ID, 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := w.MoveSprite(b.ID, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestStrike tests melee probes through the world
func TestStrike(t *testing.T) {
	w := newTestWorld(t)
	hero := mustAdd(t, w, SpriteOptions{Type: TypeHero, X: 100, Y: 100, Radius: 6, Shape: geom.ShapeCircle})
	east := mustAdd(t, w, SpriteOptions{Type: TypeMonster, X: 118, Y: 100, Radius: 6, Shape: geom.ShapeCircle})
	mustAdd(t, w, SpriteOptions{Type: TypeMonster, X: 82, Y: 100, Radius: 6, Shape: geom.ShapeCircle})

	hits, err := w.Strike(hero.ID, "sword", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0] != east.ID {
		t.Errorf("Expected sword to hit only %d, got %v", east.ID, hits)
	}
	if _, err := w.Strike(999, "sword", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestWorldStartStop verifies the tick loop runs and can restart
func TestWorldStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 100
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	w.Start()
	w.Start()
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Stop()

	if w.TickCount() == 0 {
		t.Error("Expected ticks while running")
	}
	if w.Running() {
		t.Error("World should be stopped")
	}

	w.Start()
	defer w.Stop()
	if !w.Running() {
		t.Error("World should restart")
	}
}

// TestConcurrentAccess tests thread safety
func TestConcurrentAccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 200
	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	w.Start()
	defer w.Stop()

	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func(id int) {
			for j := 0; j < 50; j++ {
				s, err := w.AddSprite(SpriteOptions{Type: TypeCrate, X: float64(20 + id*40), Y: float64(20 + j), Radius: 4})
				if err == nil {
					w.MoveSprite(s.ID, s.X+1, s.Y)
					w.Query(s.ID, 0, "")
					w.Snapshot()
					w.RemoveSprite(s.ID)
				}
			}
			done <- true
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

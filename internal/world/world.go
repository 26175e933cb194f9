// Package world runs a sandbox simulation around the physics solver: it owns the grid and the
// sprites, applies per-tick movement intents, steps the solver and publishes snapshots.
package world

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/physics"
	"tilephys/internal/sprite"
)

var (
	ErrNotFound    = errors.New("world: sprite not found")
	ErrUnknownType = errors.New("world: unknown sprite type")
	ErrOutOfRange  = errors.New("world: cell out of range")
	ErrFull        = errors.New("world: sprite limit reached")
)

// Config sizes the world.
type Config struct {
	Cols, Rows int
	TileSize   int
	TickRate   int
	MaxSprites int
	Physics    physics.Config
}

// DefaultConfig returns a 25x14 grid of 16px tiles at 60 ticks per second.
func DefaultConfig() Config {
	return Config{
		Cols:       grid.DefaultCols,
		Rows:       grid.DefaultRows,
		TileSize:   grid.DefaultTileSize,
		TickRate:   60,
		MaxSprites: 256,
		Physics:    physics.DefaultConfig(),
	}
}

// SpriteOptions describes a sprite to add.
type SpriteOptions struct {
	Type   string     `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Radius float64    `json:"radius"`
	Shape  geom.Shape `json:"-"`
	// Impassable overrides the type's default mask when non-zero.
	Impassable uint16 `json:"impassable,omitempty"`
	// Ghost sprites collide with the grid only.
	Ghost bool `json:"ghost,omitempty"`
}

// Contact is one event of a tick, by sprite ID. B is 0 for grid contacts.
type Contact struct {
	Tick uint64 `json:"tick"`
	A    uint32 `json:"a"`
	B    uint32 `json:"b,omitempty"`
	Grid bool   `json:"grid,omitempty"`
}

// QueryResult answers the per-tick collision questions for one sprite.
type QueryResult struct {
	Grid   bool `json:"grid"`
	Sprite bool `json:"sprite"`
	Any    bool `json:"any"`
	// Exact and Type are only meaningful when the query named another sprite or a type.
	Exact    bool     `json:"exact"`
	Type     bool     `json:"type"`
	Partners []uint32 `json:"partners"`
}

type body struct {
	sprite *sprite.Sprite
	vx, vy float64
}

// World is safe for concurrent use.
type World struct {
	mu     sync.RWMutex
	cfg    Config
	grid   *grid.Grid
	solver *physics.Solver
	phys   *sprite.Group
	solid  *sprite.Group
	bodies map[uint32]*body
	types  map[string]*sprite.Type
	nextID uint32

	tickCount uint64
	contacts  []Contact
	lastStats physics.TickStats

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	unsettled rate.Sometimes

	// OnTick and OnContact run after each step, outside the world lock.
	OnTick    func(physics.TickStats)
	OnContact func(Contact)

	contactLog *ContactLog
	snapshot   atomic.Pointer[Snapshot]
}

// New creates an empty world.
func New(cfg Config) (*World, error) {
	if cfg.TickRate < 1 {
		return nil, errors.Wrapf(physics.ErrInvalidArgument, "tick rate %d", cfg.TickRate)
	}
	if cfg.MaxSprites < 1 {
		cfg.MaxSprites = DefaultConfig().MaxSprites
	}
	solver, err := physics.New(cfg.Physics)
	if err != nil {
		return nil, errors.Wrap(err, "create solver")
	}

	w := &World{
		cfg:        cfg,
		grid:       grid.New(cfg.Cols, cfg.Rows, cfg.TileSize),
		solver:     solver,
		phys:       sprite.NewGroup(),
		solid:      sprite.NewGroup(),
		bodies:     make(map[uint32]*body),
		types:      builtinTypes(),
		unsettled:  rate.Sometimes{Interval: 5 * time.Second},
		contactLog: NewContactLog(),
	}
	solver.SetGrid(w.grid)
	solver.SetPhysicsGroup(w.phys)
	solver.SetSolidGroup(w.solid)
	w.publishLocked()
	return w, nil
}

// Start begins the tick loop.
func (w *World) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.ticker = time.NewTicker(time.Second / time.Duration(w.cfg.TickRate))
	ticker, stop := w.ticker, w.stopChan
	w.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := w.Step(); err != nil {
					log.Printf("❌ Physics tick failed: %v", err)
				}
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 World started at %d TPS", w.cfg.TickRate)
}

// Stop halts the tick loop. The world can be started again.
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	w.ticker.Stop()
	close(w.stopChan)
	log.Println("🛑 World stopped")
}

// Running reports whether the tick loop is active.
func (w *World) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Step advances the simulation by one tick: movement intents, then collision resolution.
func (w *World) Step() (physics.TickStats, error) {
	w.mu.Lock()
	w.tickCount++
	dt := 1.0 / float64(w.cfg.TickRate)
	for _, b := range w.bodies {
		b.sprite.X += b.vx * dt
		b.sprite.Y += b.vy * dt
	}

	err := w.solver.Update()
	stats := w.solver.Stats()
	w.lastStats = stats
	w.collectContactsLocked()
	if err == nil && !stats.Settled {
		tick, passes := w.tickCount, stats.Passes
		w.unsettled.Do(func() {
			log.Printf("⚠️ Tick %d left overlaps after %d passes", tick, passes)
		})
	}
	w.publishLocked()

	onTick, onContact := w.OnTick, w.OnContact
	contacts, tick := w.contacts, w.tickCount
	w.mu.Unlock()

	for _, c := range contacts {
		w.contactLog.Emit(c)
		if onContact != nil {
			onContact(c)
		}
	}
	if onTick != nil {
		onTick(stats)
	}
	if err != nil {
		return stats, errors.Wrapf(err, "tick %d", tick)
	}
	return stats, nil
}

func (w *World) collectContactsLocked() {
	events := w.solver.Events()
	contacts := make([]Contact, 0, len(events))
	for _, e := range events {
		c := Contact{Tick: w.tickCount, A: e.A.ID, Grid: e.Grid()}
		if e.B != nil {
			c.B = e.B.ID
		}
		contacts = append(contacts, c)
	}
	w.contacts = contacts
}

// AddSprite creates a sprite of a built-in type and returns its state.
func (w *World) AddSprite(opts SpriteOptions) (SpriteState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.bodies) >= w.cfg.MaxSprites {
		log.Printf("⚠️ Sprite limit reached (%d), rejecting %s", w.cfg.MaxSprites, opts.Type)
		return SpriteState{}, ErrFull
	}
	t, ok := w.types[opts.Type]
	if !ok {
		return SpriteState{}, errors.Wrapf(ErrUnknownType, "%q", opts.Type)
	}
	if opts.Radius <= 0 {
		return SpriteState{}, errors.Wrapf(physics.ErrInvalidArgument, "radius %v", opts.Radius)
	}
	impassable := opts.Impassable
	if impassable == 0 {
		impassable = defaultImpassable[opts.Type]
	}

	w.nextID++
	s := &sprite.Sprite{
		ID:             w.nextID,
		Type:           t,
		X:              opts.X,
		Y:              opts.Y,
		Radius:         opts.Radius,
		Shape:          opts.Shape,
		Impassable:     impassable,
		CollideSprites: !opts.Ghost,
	}
	b := &body{sprite: s}
	w.bodies[s.ID] = b
	w.phys.Add(s)
	w.solid.Add(s)
	w.publishLocked()
	return b.state(), nil
}

// RemoveSprite drops a sprite from the world and both groups.
func (w *World) RemoveSprite(id uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return false
	}
	delete(w.bodies, id)
	w.phys.Remove(b.sprite)
	w.solid.Remove(b.sprite)
	w.publishLocked()
	return true
}

// MoveSprite teleports a sprite. Overlaps are resolved on the next step.
func (w *World) MoveSprite(id uint32, x, y float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	b.sprite.X, b.sprite.Y = x, y
	w.publishLocked()
	return nil
}

// SetVelocity sets the pixels-per-second intent applied before each step.
func (w *World) SetVelocity(id uint32, vx, vy float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	b.vx, b.vy = vx, vy
	return nil
}

// SetCell overwrites one grid cell.
func (w *World) SetCell(col, row int, cell grid.Cell) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.grid.SetCell(col, row, cell) {
		return errors.Wrapf(ErrOutOfRange, "cell %d,%d", col, row)
	}
	w.publishLocked()
	return nil
}

// FillRect sets the physics class of a rectangle of cells, clipped to the grid.
func (w *World) FillRect(col, row, width, height int, class grid.Class) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.grid.SetPhysics(col, row, width, height, class)
	w.publishLocked()
	return n
}

// Query reports what sprite id touched during the last step. otherID (0 for none) and
// typeName ("" for none) select the Exact and Type answers.
func (w *World) Query(id, otherID uint32, typeName string) (QueryResult, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	b, ok := w.bodies[id]
	if !ok {
		return QueryResult{}, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	s := b.sprite
	res := QueryResult{
		Grid:     w.solver.CollidedGrid(s),
		Sprite:   w.solver.CollidedSprite(s),
		Any:      w.solver.CollidedAny(s),
		Partners: make([]uint32, 0),
	}
	for _, p := range w.solver.Partners(s) {
		res.Partners = append(res.Partners, p.ID)
	}
	if otherID != 0 {
		other, ok := w.bodies[otherID]
		if !ok {
			return QueryResult{}, errors.Wrapf(ErrNotFound, "id %d", otherID)
		}
		res.Exact = w.solver.CollidedExact(s, other.sprite)
	}
	if typeName != "" {
		t, ok := w.types[typeName]
		if !ok {
			return QueryResult{}, errors.Wrapf(ErrUnknownType, "%q", typeName)
		}
		res.Type = w.solver.CollidedType(s, t)
	}
	return res, nil
}

// Strike swings a named hitbox from the attacker and returns the IDs it touches.
func (w *World) Strike(attackerID uint32, hitbox string, direction float64) ([]uint32, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	b, ok := w.bodies[attackerID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %d", attackerID)
	}
	h, _ := physics.GetHitbox(hitbox)
	hits := w.solver.Strike(b.sprite, h, direction, w.solid.Sprites())
	ids := make([]uint32, 0, len(hits))
	for _, s := range hits {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Stats returns the last step's solver summary.
func (w *World) Stats() physics.TickStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastStats
}

// TickCount returns the number of completed steps.
func (w *World) TickCount() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tickCount
}

// SpriteCount returns the number of live sprites.
func (w *World) SpriteCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bodies)
}

// Config returns the world configuration.
func (w *World) Config() Config { return w.cfg }

// StartContactLog begins writing contacts to path as JSON lines.
func (w *World) StartContactLog(path string) error {
	return w.contactLog.Start(path)
}

// StopContactLog flushes and closes the contact log.
func (w *World) StopContactLog() {
	w.contactLog.Stop()
}

// ContactLogStats returns contact log counters for monitoring.
func (w *World) ContactLogStats() map[string]interface{} {
	return w.contactLog.GetStats()
}

package world

import (
	"sort"
	"time"

	"tilephys/internal/grid"
	"tilephys/internal/physics"
)

// SpriteState is an immutable copy of one sprite for rendering and the API.
type SpriteState struct {
	ID           uint32  `json:"id"`
	Type         string  `json:"type"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Radius       float64 `json:"radius"`
	Shape        string  `json:"shape"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
	Impassable   uint16  `json:"impassable"`
	Ghost        bool    `json:"ghost,omitempty"`
	CollidedGrid bool    `json:"collidedGrid"`
}

// Snapshot is a complete immutable world state. Published snapshots are shared between
// readers and must not be modified.
type Snapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`

	Cols     int         `json:"cols"`
	Rows     int         `json:"rows"`
	TileSize int         `json:"tileSize"`
	Cells    []grid.Cell `json:"cells"`

	// Sprites are ordered by ID.
	Sprites  []SpriteState     `json:"sprites"`
	Contacts []Contact         `json:"contacts"`
	Stats    physics.TickStats `json:"stats"`
}

// Cell returns the snapshot's cell at (col,row). Out-of-range coordinates read as vacant.
func (s *Snapshot) Cell(col, row int) grid.Cell {
	if col < 0 || row < 0 || col >= s.Cols || row >= s.Rows {
		return grid.Cell{}
	}
	return s.Cells[row*s.Cols+col]
}

func (b *body) state() SpriteState {
	s := b.sprite
	return SpriteState{
		ID:           s.ID,
		Type:         s.TypeName(),
		X:            s.X,
		Y:            s.Y,
		Radius:       s.Radius,
		Shape:        s.Shape.String(),
		VX:           b.vx,
		VY:           b.vy,
		Impassable:   s.Impassable,
		Ghost:        !s.CollideSprites,
		CollidedGrid: s.CollidedGrid,
	}
}

// publishLocked builds and publishes a fresh snapshot. Caller holds w.mu.
func (w *World) publishLocked() {
	cols, rows := w.grid.Dimensions()
	snap := &Snapshot{
		Timestamp: time.Now(),
		Tick:      w.tickCount,
		Cols:      cols,
		Rows:      rows,
		TileSize:  w.grid.TileSize(),
		Cells:     w.grid.Cells(),
		Sprites:   make([]SpriteState, 0, len(w.bodies)),
		Contacts:  append([]Contact(nil), w.contacts...),
		Stats:     w.lastStats,
	}
	for _, b := range w.bodies {
		snap.Sprites = append(snap.Sprites, b.state())
	}
	sort.Slice(snap.Sprites, func(i, j int) bool {
		return snap.Sprites[i].ID < snap.Sprites[j].ID
	})
	if prev := w.snapshot.Load(); prev != nil {
		snap.Sequence = prev.Sequence + 1
	}
	w.snapshot.Store(snap)
}

// Snapshot returns the latest published state without taking the world lock.
func (w *World) Snapshot() *Snapshot {
	return w.snapshot.Load()
}

// Sprite returns the current state of one sprite.
func (w *World) Sprite(id uint32) (SpriteState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	b, ok := w.bodies[id]
	if !ok {
		return SpriteState{}, false
	}
	return b.state(), true
}

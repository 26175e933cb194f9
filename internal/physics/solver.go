// Package physics keeps sprites out of solid grid cells and out of each other.
//
// Each Update runs up to RepeatLimit passes of detect-then-resolve. Grid contacts push the sprite
// all the way out; sprite pairs split the correction evenly. Every contact of the tick is recorded
// as an Event that game logic can query until the next Update.
package physics

import (
	"time"

	"github.com/pkg/errors"

	"tilephys/internal/grid"
	"tilephys/internal/sprite"
)

// TickStats summarizes the most recent Update.
type TickStats struct {
	Passes     int           `json:"passes"`
	Resolves   int           `json:"resolves"`
	Collisions int           `json:"collisions"`
	Events     int           `json:"events"`
	Settled    bool          `json:"settled"`
	Duration   time.Duration `json:"durationNs"`
}

// Solver owns the per-tick collision list and event index. It is not safe for concurrent use.
type Solver struct {
	cfg Config

	physics *sprite.Group
	solid   *sprite.Group
	grid    *grid.Grid

	collisions collisionList
	events     eventIndex
	stats      TickStats
}

// New creates a solver with no groups or grid attached.
func New(cfg Config) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Solver{
		cfg:        cfg,
		collisions: collisionList{max: cfg.MaxCollisions},
		events:     eventIndex{max: cfg.MaxEvents},
	}, nil
}

// Config returns the solver's configuration.
func (s *Solver) Config() Config { return s.cfg }

// SetPhysicsGroup sets the sprites tested against the grid. Nil detaches.
func (s *Solver) SetPhysicsGroup(g *sprite.Group) { s.physics = g }

// SetSolidGroup sets the sprites tested against each other. Nil detaches.
func (s *Solver) SetSolidGroup(g *sprite.Group) { s.solid = g }

// SetGrid sets the tile grid. Nil disables grid collisions.
func (s *Solver) SetGrid(g *grid.Grid) { s.grid = g }

// Grid returns the attached grid, if any.
func (s *Solver) Grid() *grid.Grid { return s.grid }

// Close detaches everything and drops the registry arrays.
func (s *Solver) Close() {
	s.physics, s.solid, s.grid = nil, nil, nil
	s.collisions.items = nil
	s.events.items = nil
}

// Update advances collision state by one tick. Events from the previous tick are discarded
// first. On error, corrections applied before the failure remain in place.
func (s *Solver) Update() (err error) {
	start := time.Now()
	s.stats = TickStats{}
	s.events.reset()
	for _, spr := range s.physics.Sprites() {
		spr.CollidedGrid = false
	}
	defer func() {
		s.stats.Events = s.events.len()
		s.stats.Duration = time.Since(start)
	}()

	// Without physics participants there is nothing to do, whatever the solid group holds.
	if s.physics.Len() == 0 {
		s.collisions.reset()
		s.stats.Settled = true
		return nil
	}

	for pass := 1; pass <= s.cfg.RepeatLimit; pass++ {
		s.begin()
		s.stats.Passes++
		if err := s.detect(); err != nil {
			return errors.Wrapf(err, "detect pass %d", pass)
		}
		n := s.collisions.len()
		if n == 0 {
			s.stats.Settled = true
			return nil
		}
		s.stats.Collisions += n
		if err := s.resolve(); err != nil {
			return errors.Wrapf(err, "resolve pass %d", pass)
		}
		s.stats.Resolves++
	}
	return nil
}

// begin clears pass-local state.
func (s *Solver) begin() {
	s.collisions.reset()
	for _, spr := range s.physics.Sprites() {
		spr.Reconsider = false
	}
	for _, spr := range s.solid.Sprites() {
		spr.Reconsider = false
	}
}

// Stats returns the summary of the last Update.
func (s *Solver) Stats() TickStats { return s.stats }

// Collisions returns a copy of the collisions found by the last detect pass. After a settled
// Update this is empty; after hitting the repeat limit it holds the final pass's contacts.
func (s *Solver) Collisions() []Collision {
	out := make([]Collision, len(s.collisions.items))
	copy(out, s.collisions.items)
	return out
}

// Events returns a copy of this tick's events in index order.
func (s *Solver) Events() []Event {
	out := make([]Event, len(s.events.items))
	copy(out, s.events.items)
	return out
}

// Package sprite defines the actor data the physics solver reads and nudges.
// Sprites are owned by their caller; the solver and groups only hold references.
package sprite

import "tilephys/internal/geom"

// Type is shared, immutable per-kind data. Types are compared by pointer.
type Type struct {
	Name string
	// IgnoreSameType skips sprite-vs-sprite checks between two sprites of this type.
	IgnoreSameType bool
}

// Sprite is a simulated actor.
//
// ID is the stable ordering key for the solver's event index and must be unique among
// sprites that share a solver. Reconsider and CollidedGrid are written by the solver.
type Sprite struct {
	ID     uint32
	Type   *Type
	X, Y   float64
	Radius float64
	Shape  geom.Shape

	// Impassable has bit n set when grid class n blocks this sprite. Zero skips grid checks.
	Impassable uint16
	// CollideSprites opts the sprite into sprite-vs-sprite checks within the solid group.
	CollideSprites bool

	// Reconsider is set once the sprite was moved during the current resolve sweep.
	Reconsider bool
	// CollidedGrid is set when the sprite touched a solid cell during the last update.
	CollidedGrid bool
}

// Box returns the sprite's bounding box.
func (s *Sprite) Box() geom.Box {
	return geom.Box{W: s.X - s.Radius, E: s.X + s.Radius, N: s.Y - s.Radius, S: s.Y + s.Radius}
}

// Circle returns the sprite as a circle.
func (s *Sprite) Circle() geom.Circle {
	return geom.Circle{X: s.X, Y: s.Y, Radius: s.Radius}
}

// TypeName returns the type's name, or "" for untyped sprites.
func (s *Sprite) TypeName() string {
	if s.Type == nil {
		return ""
	}
	return s.Type.Name
}

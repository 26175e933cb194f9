package physics

import (
	"tilephys/internal/geom"
	"tilephys/internal/sprite"
)

// CollidedGrid reports whether spr touched a solid cell this tick.
func (s *Solver) CollidedGrid(spr *sprite.Sprite) bool {
	if spr == nil {
		return false
	}
	return s.events.find(spr, nil) >= 0
}

// CollidedSprite reports whether spr touched any other sprite this tick.
func (s *Solver) CollidedSprite(spr *sprite.Sprite) bool {
	if spr == nil {
		return false
	}
	for _, e := range s.events.items {
		if e.B != nil && e.Involves(spr) {
			return true
		}
	}
	return false
}

// CollidedAny reports whether spr touched the grid or another sprite this tick.
func (s *Solver) CollidedAny(spr *sprite.Sprite) bool {
	if spr == nil {
		return false
	}
	for _, e := range s.events.items {
		if e.Involves(spr) {
			return true
		}
	}
	return false
}

// CollidedExact reports whether a and b touched this tick, in either order.
// A nil b asks about the grid.
func (s *Solver) CollidedExact(a, b *sprite.Sprite) bool {
	return s.events.has(a, b)
}

// CollidedType reports whether spr touched a sprite of type t this tick.
func (s *Solver) CollidedType(spr *sprite.Sprite, t *sprite.Type) bool {
	if spr == nil || t == nil {
		return false
	}
	for _, e := range s.events.items {
		if e.B == nil || !e.Involves(spr) {
			continue
		}
		if other := e.Other(spr); other != nil && other.Type == t {
			return true
		}
	}
	return false
}

// Partners returns every sprite spr touched this tick, in event order.
func (s *Solver) Partners(spr *sprite.Sprite) []*sprite.Sprite {
	var out []*sprite.Sprite
	if spr == nil {
		return out
	}
	for _, e := range s.events.items {
		if e.B != nil && e.Involves(spr) {
			out = append(out, e.Other(spr))
		}
	}
	return out
}

// SpritesCollide tests two sprites directly, ignoring groups and flags.
// A sprite always collides with itself; nil never collides.
func SpritesCollide(a, b *sprite.Sprite) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	hit, err := spriteOverlap(nil, a, b)
	return err == nil && hit
}

// SpriteCollidesBox tests a sprite against an arbitrary box.
func SpriteCollidesBox(spr *sprite.Sprite, b geom.Box) bool {
	if spr == nil {
		return false
	}
	hit, err := geom.Collide(nil, spr.Shape, spr.Box(), spr.Circle(), geom.ShapeBox, b, geom.Circle{})
	return err == nil && hit
}

// SpriteCollidesCircle tests a sprite against an arbitrary circle.
func SpriteCollidesCircle(spr *sprite.Sprite, c geom.Circle) bool {
	if spr == nil {
		return false
	}
	hit, err := geom.Collide(nil, spr.Shape, spr.Box(), spr.Circle(), geom.ShapeCircle, geom.Box{}, c)
	return err == nil && hit
}

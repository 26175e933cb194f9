package physics

import (
	"math"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/sprite"
)

// HitboxKind is the probe shape of a melee attack.
type HitboxKind int

const (
	HitboxCircle HitboxKind = iota // round swing or area slam
	HitboxBox                      // square thrust
)

// MarshalText encodes the kind by name.
func (k HitboxKind) MarshalText() ([]byte, error) {
	if k == HitboxBox {
		return []byte("box"), nil
	}
	return []byte("circle"), nil
}

// Hitbox describes a transient attack probe placed in front of the attacker.
type Hitbox struct {
	Kind HitboxKind `json:"kind"`
	// Reach is the distance from the attacker's center to the probe's center.
	Reach float64 `json:"reach"`
	// Size is the probe radius, or half-extent for boxes.
	Size float64 `json:"size"`
	// Cardinal snaps the facing to the nearest of east, south, west, north.
	Cardinal bool `json:"cardinal,omitempty"`
}

// Probe returns the probe's shape for an attacker at (x,y) facing direction radians
// (0 is east, pi/2 is south).
func (h Hitbox) Probe(x, y, direction float64) (geom.Shape, geom.Box, geom.Circle) {
	if h.Cardinal {
		direction = snapCardinal(direction)
	}
	cx := x + math.Cos(direction)*h.Reach
	cy := y + math.Sin(direction)*h.Reach
	c := geom.Circle{X: cx, Y: cy, Radius: h.Size}
	if h.Kind == HitboxBox {
		return geom.ShapeBox, geom.BoxFromCircle(c), c
	}
	return geom.ShapeCircle, geom.BoxFromCircle(c), c
}

// Strike returns every target other than the attacker that the hitbox touches, in target order.
// When a grid is attached, a probe whose center sits in a cell solid to the attacker hits nothing.
func (s *Solver) Strike(attacker *sprite.Sprite, h Hitbox, direction float64, targets []*sprite.Sprite) []*sprite.Sprite {
	if attacker == nil {
		return nil
	}
	shape, box, circle := h.Probe(attacker.X, attacker.Y, direction)
	if s.grid != nil && attacker.Impassable != 0 {
		ts := float64(s.grid.TileSize())
		cell := s.cellAt(int(math.Floor(circle.X/ts)), int(math.Floor(circle.Y/ts)))
		if grid.CellIsSolid(cell.Physics, attacker.Impassable) {
			return nil
		}
	}

	var hits []*sprite.Sprite
	for _, t := range targets {
		if t == nil || t == attacker {
			continue
		}
		hit, err := geom.Collide(nil, shape, box, circle, t.Shape, t.Box(), t.Circle())
		if err == nil && hit {
			hits = append(hits, t)
		}
	}
	return hits
}

// snapCardinal rounds an angle to the nearest multiple of pi/2 in [-pi, pi].
func snapCardinal(angle float64) float64 {
	const quarter = math.Pi / 2
	return math.Round(normalizeAngle(angle)/quarter) * quarter
}

// normalizeAngle normalizes an angle to the range [-pi, pi].
func normalizeAngle(angle float64) float64 {
	const twoPi = 2 * math.Pi
	angle = math.Mod(angle, twoPi)
	if angle < 0 {
		angle += twoPi
	}
	if angle > math.Pi {
		angle -= twoPi
	}
	return angle
}

// cachedHitboxes holds the named attack presets, sized for 16px tiles.
var cachedHitboxes = map[string]Hitbox{
	"fists": {
		Kind:  HitboxCircle,
		Reach: 10,
		Size:  6,
	},
	"sword": {
		Kind:     HitboxBox,
		Reach:    14,
		Size:     8,
		Cardinal: true,
	},
	"spear": {
		Kind:     HitboxBox,
		Reach:    24,
		Size:     5,
		Cardinal: true,
	},
	"axe": {
		Kind:  HitboxCircle,
		Reach: 12,
		Size:  10,
	},
	"hammer": {
		Kind: HitboxCircle,
		Size: 20, // slam centered on the attacker
	},
}

var defaultHitbox = cachedHitboxes["fists"]

// HitboxNames lists the preset names. Order is unspecified.
func HitboxNames() []string {
	names := make([]string, 0, len(cachedHitboxes))
	for name := range cachedHitboxes {
		names = append(names, name)
	}
	return names
}

// GetHitbox returns a preset by name, falling back to fists. ok is false for unknown names.
func GetHitbox(name string) (h Hitbox, ok bool) {
	if h, ok := cachedHitboxes[name]; ok {
		return h, true
	}
	return defaultHitbox, false
}

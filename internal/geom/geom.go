// Package geom provides the floating-point shape primitives used by the physics solver:
// axis-aligned boxes, circles, and the overlap tests between them.
//
// Coordinates are screen pixels with y growing south. All tests are exclusive:
// shapes that merely touch do not collide.
package geom

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Shape is the closed set of collision shapes. Every pair has a hand-written test,
// so new shapes cannot be plugged in.
type Shape uint8

const (
	ShapeBox Shape = iota
	ShapeCircle
)

// String returns the lowercase shape name.
func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// ErrUnknownShape is returned when a shape outside the closed set reaches dispatch.
var ErrUnknownShape = errors.New("geom: unknown shape")

// Vector is a 2D float vector. Separation axes are always unit length.
type Vector = mgl64.Vec2

// fallbackAxis is used whenever a separation direction is undefined (coincident centers).
var fallbackAxis = Vector{0, 1}

// Box is an axis-aligned rectangle given by its four edges.
type Box struct {
	W, E, N, S float64
}

// Circle is a center point and radius.
type Circle struct {
	X, Y, Radius float64
}

// Overlap describes a detected intersection.
// Axis points from A toward B; resolving moves A by -Axis or B by +Axis, Penetration pixels.
type Overlap struct {
	Axis        Vector
	Penetration float64
}

// Width returns E-W.
func (b Box) Width() float64 { return b.E - b.W }

// Height returns S-N.
func (b Box) Height() float64 { return b.S - b.N }

// Center returns the midpoint of the box.
func (b Box) Center() (x, y float64) {
	return (b.W + b.E) / 2, (b.N + b.S) / 2
}

// BoxFromCircle returns the circle's bounding box.
func BoxFromCircle(c Circle) Box {
	return Box{W: c.X - c.Radius, E: c.X + c.Radius, N: c.Y - c.Radius, S: c.Y + c.Radius}
}

// CircleFromBox returns a circle centered on the box, with radius equal to the larger half-extent.
func CircleFromBox(b Box) Circle {
	midx, midy := b.Center()
	rx := midx - b.W
	ry := midy - b.N
	if ry > rx {
		rx = ry
	}
	return Circle{X: midx, Y: midy, Radius: rx}
}

// BoxVsBox reports whether two boxes overlap. If o is non-nil it receives the shallowest
// push-out, preferring west, east, north, south on ties.
func BoxVsBox(o *Overlap, a, b Box) bool {
	if a.E <= b.W || a.W >= b.E || a.S <= b.N || a.N >= b.S {
		return false
	}
	if o == nil {
		return true
	}

	penW := b.E - a.W
	penE := a.E - b.W
	penN := b.S - a.N
	penS := a.S - b.N
	switch {
	case penW <= penE && penW <= penN && penW <= penS:
		o.Axis, o.Penetration = Vector{-1, 0}, penW
	case penE <= penN && penE <= penS:
		o.Axis, o.Penetration = Vector{1, 0}, penE
	case penN <= penS:
		o.Axis, o.Penetration = Vector{0, -1}, penN
	default:
		o.Axis, o.Penetration = Vector{0, 1}, penS
	}
	return true
}

// BoxVsCircle reports whether a box and a circle overlap.
//
// The circle's center falls in one of nine regions around the box. Inside and edge regions
// treat the circle as its bounding box; corner regions need the true distance from the box
// corner to the center.
func BoxVsCircle(o *Overlap, a Box, b Circle) bool {
	bbox := BoxFromCircle(b)
	if a.N >= bbox.S || a.S <= bbox.N || a.W >= bbox.E || a.E <= bbox.W {
		return false
	}

	relx, rely := 0, 0
	if b.X < a.W {
		relx = -1
	} else if b.X > a.E {
		relx = 1
	}
	if b.Y < a.N {
		rely = -1
	} else if b.Y > a.S {
		rely = 1
	}

	// Center inside the box.
	if relx == 0 && rely == 0 {
		if o != nil {
			penN := bbox.S - a.N
			penS := a.S - bbox.N
			penW := bbox.E - a.W
			penE := a.E - bbox.W
			switch {
			case penN <= penS && penN <= penW && penN <= penE:
				o.Axis, o.Penetration = Vector{0, -1}, penN
			case penS <= penE && penS <= penW:
				o.Axis, o.Penetration = Vector{0, 1}, penS
			case penE <= penW:
				o.Axis, o.Penetration = Vector{1, 0}, penE
			default:
				o.Axis, o.Penetration = Vector{-1, 0}, penW
			}
		}
		return true
	}

	// Edge regions.
	if relx == 0 || rely == 0 {
		if o != nil {
			switch {
			case relx == -1:
				o.Axis, o.Penetration = Vector{-1, 0}, bbox.E-a.W
			case relx == 1:
				o.Axis, o.Penetration = Vector{1, 0}, a.E-bbox.W
			case rely == -1:
				o.Axis, o.Penetration = Vector{0, -1}, bbox.S-a.N
			default:
				o.Axis, o.Penetration = Vector{0, 1}, a.S-bbox.N
			}
		}
		return true
	}

	// Corner regions.
	cornerX, cornerY := a.E, a.S
	if relx == -1 {
		cornerX = a.W
	}
	if rely == -1 {
		cornerY = a.N
	}
	toCenter := Vector{b.X - cornerX, b.Y - cornerY}
	dist2 := toCenter.Dot(toCenter)
	if dist2 >= b.Radius*b.Radius {
		return false
	}
	dist := toCenter.Len()
	pen := b.Radius - dist
	if pen <= 0 {
		return false
	}
	if o != nil {
		o.Penetration = pen
		o.Axis = unitOr(toCenter, dist)
	}
	return true
}

// CircleVsBox is BoxVsCircle seen from the circle's side: same result, negated axis.
func CircleVsBox(o *Overlap, a Circle, b Box) bool {
	if !BoxVsCircle(o, b, a) {
		return false
	}
	if o != nil {
		o.Axis = o.Axis.Mul(-1)
	}
	return true
}

// CircleVsCircle reports whether two circles overlap.
func CircleVsCircle(o *Overlap, a, b Circle) bool {
	sum := a.Radius + b.Radius
	dx := b.X - a.X
	dy := b.Y - a.Y
	if abs(dx) >= sum || abs(dy) >= sum {
		return false
	}

	delta := Vector{dx, dy}
	dist2 := delta.Dot(delta)
	if dist2 >= sum*sum {
		return false
	}
	dist := delta.Len()
	pen := sum - dist
	if pen <= 0 {
		return false
	}
	if o != nil {
		o.Penetration = pen
		o.Axis = unitOr(delta, dist)
	}
	return true
}

// Collide dispatches on the shape pair. ba/ca describe A (only the one matching shapeA is read),
// bb/cb describe B.
func Collide(o *Overlap, shapeA Shape, ba Box, ca Circle, shapeB Shape, bb Box, cb Circle) (bool, error) {
	switch shapeA {
	case ShapeBox:
		switch shapeB {
		case ShapeBox:
			return BoxVsBox(o, ba, bb), nil
		case ShapeCircle:
			return BoxVsCircle(o, ba, cb), nil
		}
	case ShapeCircle:
		switch shapeB {
		case ShapeBox:
			return CircleVsBox(o, ca, bb), nil
		case ShapeCircle:
			return CircleVsCircle(o, ca, cb), nil
		}
	}
	return false, ErrUnknownShape
}

// unitOr normalizes v given its precomputed length, substituting the fallback axis when the
// direction is undefined.
func unitOr(v Vector, length float64) Vector {
	if length == 0 {
		return fallbackAxis
	}
	u := Vector{v[0] / length, v[1] / length}
	if u[0] == 0 && u[1] == 0 {
		return fallbackAxis
	}
	return u
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

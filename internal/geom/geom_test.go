package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxVsBox(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Box
		hit     bool
		axis    Vector
		penetra float64
	}{
		{"apart", Box{0, 10, 0, 10}, Box{20, 30, 0, 10}, false, Vector{}, 0},
		{"touching edges", Box{0, 10, 0, 10}, Box{10, 20, 0, 10}, false, Vector{}, 0},
		{"b to the east", Box{0, 10, 0, 10}, Box{8, 18, 0, 10}, true, Vector{1, 0}, 2},
		{"b to the west", Box{8, 18, 0, 10}, Box{0, 10, 0, 10}, true, Vector{-1, 0}, 2},
		{"b to the north", Box{0, 10, 8, 18}, Box{0, 10, 0, 10}, true, Vector{0, -1}, 2},
		{"b to the south", Box{0, 10, 0, 10}, Box{0, 10, 7, 17}, true, Vector{0, 1}, 3},
		{"identical prefers west", Box{0, 10, 0, 10}, Box{0, 10, 0, 10}, true, Vector{-1, 0}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Overlap
			got := BoxVsBox(&o, tt.a, tt.b)
			require.Equal(t, tt.hit, got)
			assert.Equal(t, tt.hit, BoxVsBox(nil, tt.a, tt.b), "nil overlap must not change the answer")
			if !tt.hit {
				return
			}
			assert.Equal(t, tt.axis, o.Axis)
			assert.InDelta(t, tt.penetra, o.Penetration, 1e-9)
		})
	}
}

func TestBoxVsCircleRegions(t *testing.T) {
	box := Box{W: 0, E: 16, N: 0, S: 16}

	tests := []struct {
		name    string
		c       Circle
		hit     bool
		axis    Vector
		penetra float64
	}{
		{"inside nearest north", Circle{8, 3, 4}, true, Vector{0, -1}, 7},
		{"west edge", Circle{-2, 8, 4}, true, Vector{-1, 0}, 2},
		{"east edge", Circle{18, 8, 4}, true, Vector{1, 0}, 2},
		{"north edge", Circle{8, -3, 4}, true, Vector{0, -1}, 1},
		{"south edge", Circle{8, 19, 4}, true, Vector{0, 1}, 1},
		{"corner miss inside bbox", Circle{-3, -3, 4}, false, Vector{}, 0},
		{"corner hit", Circle{-2, -2, 4}, true, Vector{-math.Sqrt2 / 2, -math.Sqrt2 / 2}, 4 - math.Sqrt(8)},
		{"far away", Circle{40, 40, 4}, false, Vector{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Overlap
			got := BoxVsCircle(&o, box, tt.c)
			require.Equal(t, tt.hit, got)
			if !tt.hit {
				return
			}
			assert.InDelta(t, tt.axis.X(), o.Axis.X(), 1e-9)
			assert.InDelta(t, tt.axis.Y(), o.Axis.Y(), 1e-9)
			assert.InDelta(t, tt.penetra, o.Penetration, 1e-9)
		})
	}
}

func TestBoxCircleSymmetry(t *testing.T) {
	box := Box{W: 10, E: 30, N: 10, S: 30}
	for x := -5.0; x <= 45; x += 2.5 {
		for y := -5.0; y <= 45; y += 2.5 {
			c := Circle{X: x, Y: y, Radius: 6}
			var bc, cb Overlap
			hitBC := BoxVsCircle(&bc, box, c)
			hitCB := CircleVsBox(&cb, c, box)
			require.Equal(t, hitBC, hitCB, "x=%v y=%v", x, y)
			if !hitBC {
				continue
			}
			assert.Equal(t, bc.Penetration, cb.Penetration)
			assert.Equal(t, -bc.Axis.X(), cb.Axis.X())
			assert.Equal(t, -bc.Axis.Y(), cb.Axis.Y())
		}
	}
}

func TestCircleVsCircleBoundary(t *testing.T) {
	a := Circle{X: 0, Y: 0, Radius: 5}

	var o Overlap
	require.True(t, CircleVsCircle(&o, a, Circle{X: 9.999, Y: 0, Radius: 5}))
	assert.InDelta(t, 0.001, o.Penetration, 1e-9)
	assert.Equal(t, Vector{1, 0}, o.Axis)

	assert.False(t, CircleVsCircle(&o, a, Circle{X: 10, Y: 0, Radius: 5}), "contact at exactly the radius sum is not a collision")
	assert.False(t, CircleVsCircle(nil, a, Circle{X: 6, Y: 8, Radius: 5}), "distance 10 on a diagonal")
}

func TestCoincidentCentersUseFallbackAxis(t *testing.T) {
	var o Overlap
	require.True(t, CircleVsCircle(&o, Circle{5, 5, 3}, Circle{5, 5, 2}))
	assert.Equal(t, Vector{0, 1}, o.Axis)
	assert.InDelta(t, 5, o.Penetration, 1e-9)
	assert.False(t, math.IsNaN(o.Axis.X()) || math.IsNaN(o.Axis.Y()))
}

func TestCollideDispatch(t *testing.T) {
	b := Box{0, 10, 0, 10}
	c := Circle{12, 5, 4}

	hit, err := Collide(nil, ShapeBox, b, Circle{}, ShapeCircle, Box{}, c)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = Collide(nil, ShapeCircle, Box{}, c, ShapeBox, b, Circle{})
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = Collide(nil, Shape(7), b, c, ShapeBox, b, c)
	assert.ErrorIs(t, err, ErrUnknownShape)
}

func TestCircleFromBox(t *testing.T) {
	c := CircleFromBox(Box{0, 20, 0, 10})
	assert.Equal(t, Circle{X: 10, Y: 5, Radius: 10}, c)
	assert.Equal(t, Box{0, 20, -5, 15}, BoxFromCircle(c))
}

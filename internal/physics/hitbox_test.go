package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/sprite"
)

func TestGetHitbox(t *testing.T) {
	for _, name := range HitboxNames() {
		t.Run(name, func(t *testing.T) {
			h, ok := GetHitbox(name)
			assert.True(t, ok)
			assert.Positive(t, h.Size)
		})
	}

	h, ok := GetHitbox("unknown_weapon")
	assert.False(t, ok)
	assert.Equal(t, cachedHitboxes["fists"], h)
}

func TestHitboxProbe(t *testing.T) {
	sword, _ := GetHitbox("sword")
	shape, box, circle := sword.Probe(100, 100, 0.3)

	assert.Equal(t, geom.ShapeBox, shape)
	assert.InDelta(t, 114, circle.X, delta, "cardinal probes snap to east")
	assert.InDelta(t, 100, circle.Y, delta)
	assert.InDelta(t, 106, box.W, delta)
	assert.InDelta(t, 122, box.E, delta)

	_, _, circle = sword.Probe(100, 100, math.Pi/2+0.2)
	assert.InDelta(t, 100, circle.X, delta)
	assert.InDelta(t, 114, circle.Y, delta, "south is +y")
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4*math.Pi + 1, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, normalizeAngle(tt.in), 1e-9, "normalizeAngle(%v)", tt.in)
	}
}

func TestStrike(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	attacker := &sprite.Sprite{ID: 1, X: 100, Y: 100, Radius: 6, Shape: geom.ShapeCircle, Impassable: walls}
	east := &sprite.Sprite{ID: 2, X: 118, Y: 100, Radius: 6, Shape: geom.ShapeCircle}
	west := &sprite.Sprite{ID: 3, X: 82, Y: 100, Radius: 6, Shape: geom.ShapeCircle}
	targets := []*sprite.Sprite{attacker, east, west, nil}

	sword, _ := GetHitbox("sword")
	assert.Equal(t, []*sprite.Sprite{east}, s.Strike(attacker, sword, 0, targets))
	assert.Equal(t, []*sprite.Sprite{west}, s.Strike(attacker, sword, math.Pi, targets))
	assert.Empty(t, s.Strike(attacker, sword, math.Pi/2, targets))

	hammer, _ := GetHitbox("hammer")
	assert.Equal(t, []*sprite.Sprite{east, west}, s.Strike(attacker, hammer, 0, targets), "the attacker is never hit")

	assert.Nil(t, s.Strike(nil, sword, 0, targets))
}

func TestStrikeBlockedByWall(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	g := grid.New(grid.DefaultCols, grid.DefaultRows, grid.DefaultTileSize)
	g.SetCell(7, 6, grid.Cell{Physics: grid.Solid})
	s.SetGrid(g)

	attacker := &sprite.Sprite{ID: 1, X: 100, Y: 100, Radius: 6, Shape: geom.ShapeCircle, Impassable: walls}
	target := &sprite.Sprite{ID: 2, X: 118, Y: 100, Radius: 6, Shape: geom.ShapeCircle}
	sword, _ := GetHitbox("sword")

	assert.Empty(t, s.Strike(attacker, sword, 0, []*sprite.Sprite{target}))

	attacker.Impassable = 0
	assert.Equal(t, []*sprite.Sprite{target}, s.Strike(attacker, sword, 0, []*sprite.Sprite{target}))
}

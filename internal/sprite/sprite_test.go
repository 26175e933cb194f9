package sprite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tilephys/internal/geom"
)

func TestGroupMembership(t *testing.T) {
	g := NewGroup()
	a := &Sprite{ID: 1}
	b := &Sprite{ID: 2}
	c := &Sprite{ID: 3}

	assert.True(t, g.Add(a))
	assert.True(t, g.Add(b))
	assert.True(t, g.Add(c))
	assert.False(t, g.Add(a), "duplicate add")
	assert.False(t, g.Add(nil))
	assert.Equal(t, 3, g.Len())

	assert.True(t, g.Remove(b))
	assert.False(t, g.Remove(b))
	assert.Equal(t, []*Sprite{a, c}, g.Sprites(), "removal keeps insertion order")
	assert.False(t, g.Has(b))

	g.Clear()
	assert.Equal(t, 0, g.Len())
}

func TestNilGroupIsEmpty(t *testing.T) {
	var g *Group
	assert.Equal(t, 0, g.Len())
	assert.Nil(t, g.Sprites())
}

func TestSpriteShapes(t *testing.T) {
	s := &Sprite{X: 10, Y: 20, Radius: 4, Shape: geom.ShapeCircle}
	assert.Equal(t, geom.Box{W: 6, E: 14, N: 16, S: 24}, s.Box())
	assert.Equal(t, geom.Circle{X: 10, Y: 20, Radius: 4}, s.Circle())
	assert.Equal(t, "", s.TypeName())

	s.Type = &Type{Name: "hero"}
	assert.Equal(t, "hero", s.TypeName())
}

package sprite

// Group is an ordered, non-owning list of sprites. Order is insertion order, which is also the
// order the solver visits pairs in.
type Group struct {
	sprites []*Sprite
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{sprites: make([]*Sprite, 0, 32)}
}

// Add appends a sprite. Adding a sprite twice, or nil, is a no-op. Returns true if added.
func (g *Group) Add(s *Sprite) bool {
	if s == nil || g.Has(s) {
		return false
	}
	g.sprites = append(g.sprites, s)
	return true
}

// Remove drops a sprite, preserving the order of the rest. Returns true if it was present.
func (g *Group) Remove(s *Sprite) bool {
	for i, member := range g.sprites {
		if member == s {
			copy(g.sprites[i:], g.sprites[i+1:])
			g.sprites[len(g.sprites)-1] = nil
			g.sprites = g.sprites[:len(g.sprites)-1]
			return true
		}
	}
	return false
}

// Has reports membership.
func (g *Group) Has(s *Sprite) bool {
	for _, member := range g.sprites {
		if member == s {
			return true
		}
	}
	return false
}

// Len returns the member count. A nil group is empty.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	return len(g.sprites)
}

// At returns the i'th member.
func (g *Group) At(i int) *Sprite {
	return g.sprites[i]
}

// Sprites returns the backing slice. Callers must not modify it.
func (g *Group) Sprites() []*Sprite {
	if g == nil {
		return nil
	}
	return g.sprites
}

// Clear removes every member, keeping capacity.
func (g *Group) Clear() {
	for i := range g.sprites {
		g.sprites[i] = nil
	}
	g.sprites = g.sprites[:0]
}

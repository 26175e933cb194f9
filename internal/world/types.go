package world

import (
	"sort"

	"tilephys/internal/grid"
	"tilephys/internal/sprite"
)

const (
	TypeHero    = "hero"
	TypeMonster = "monster"
	TypeCrate   = "crate"
	TypeSwarm   = "swarm"
)

// defaultImpassable is each type's grid mask. Heroes may cross HeroOnly cells; swarms fly over holes.
var defaultImpassable = map[string]uint16{
	TypeHero:    grid.Mask(grid.Solid, grid.Hole, grid.Latch),
	TypeMonster: grid.Mask(grid.Solid, grid.Hole, grid.Latch, grid.HeroOnly),
	TypeCrate:   grid.Mask(grid.Solid, grid.Hole, grid.Latch, grid.HeroOnly),
	TypeSwarm:   grid.Mask(grid.Solid, grid.Latch, grid.HeroOnly),
}

func builtinTypes() map[string]*sprite.Type {
	return map[string]*sprite.Type{
		TypeHero:    {Name: TypeHero},
		TypeMonster: {Name: TypeMonster},
		TypeCrate:   {Name: TypeCrate},
		TypeSwarm:   {Name: TypeSwarm, IgnoreSameType: true},
	}
}

// TypeNames lists the built-in sprite types in alphabetical order.
func TypeNames() []string {
	names := make([]string, 0, len(defaultImpassable))
	for name := range defaultImpassable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

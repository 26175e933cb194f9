package grid

import "tilephys/internal/geom"

// CellIsSolid reports whether a cell of the given class blocks a sprite with this impassable mask.
func CellIsSolid(class Class, impassable uint16) bool {
	if class >= 16 {
		return false
	}
	return impassable&(1<<class) != 0
}

// EffectiveShape decides how a cell presents itself to a sprite at offset (dx,dy) from the
// cell's center. Plain cells are boxes. A cell with a rounded corner in the sprite's quadrant
// behaves as its inscribed circle. A sprite exactly on either center line always sees a box.
func EffectiveShape(corners Corners, dx, dy float64) geom.Shape {
	if corners == 0 {
		return geom.ShapeBox
	}
	var quadrant Corners
	switch {
	case dx < 0 && dy < 0:
		quadrant = CornerNW
	case dx > 0 && dy < 0:
		quadrant = CornerNE
	case dx < 0 && dy > 0:
		quadrant = CornerSW
	case dx > 0 && dy > 0:
		quadrant = CornerSE
	default:
		return geom.ShapeBox
	}
	if corners&quadrant != 0 {
		return geom.ShapeCircle
	}
	return geom.ShapeBox
}

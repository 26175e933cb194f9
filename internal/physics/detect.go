package physics

import (
	"math"

	"github.com/pkg/errors"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
	"tilephys/internal/sprite"
)

// detect runs one full detection pass: every physics sprite against the grid, then every
// solid pair once, in group order.
func (s *Solver) detect() error {
	if s.grid != nil {
		for _, spr := range s.physics.Sprites() {
			if err := s.checkGrid(spr); err != nil {
				return err
			}
		}
	}
	solid := s.solid.Sprites()
	for i, a := range solid {
		if !a.CollideSprites {
			continue
		}
		for _, b := range solid[i+1:] {
			if !b.CollideSprites {
				continue
			}
			if err := s.checkSprites(a, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Solver) checkSprites(a, b *sprite.Sprite) error {
	if a.Type != nil && a.Type == b.Type && a.Type.IgnoreSameType {
		return nil
	}
	var o geom.Overlap
	hit, err := spriteOverlap(&o, a, b)
	if err != nil {
		return errors.Wrapf(err, "sprites %d and %d", a.ID, b.ID)
	}
	if !hit || o.Penetration <= s.cfg.Epsilon {
		return nil
	}
	if err := s.collisions.add(Collision{A: a, B: b, Overlap: o}); err != nil {
		return err
	}
	return s.events.add(a, b)
}

func (s *Solver) checkGrid(spr *sprite.Sprite) error {
	if spr.Impassable == 0 {
		return nil
	}
	colA, colZ := cellSpan(spr.X-spr.Radius, spr.X+spr.Radius, s.grid.TileSize())
	rowA, rowZ := cellSpan(spr.Y-spr.Radius, spr.Y+spr.Radius, s.grid.TileSize())
	for row := rowA; row <= rowZ; row++ {
		for col := colA; col <= colZ; col++ {
			cell := s.cellAt(col, row)
			if !grid.CellIsSolid(cell.Physics, spr.Impassable) {
				continue
			}
			var o geom.Overlap
			shape, hit, err := s.cellOverlap(&o, spr, col, row, cell)
			if err != nil {
				return errors.Wrapf(err, "sprite %d against cell %d,%d", spr.ID, col, row)
			}
			if !hit || o.Penetration <= s.cfg.Epsilon {
				continue
			}
			spr.CollidedGrid = true
			if err := s.collisions.add(Collision{A: spr, Col: col, Row: row, CellShape: shape, Overlap: o}); err != nil {
				return err
			}
			if err := s.events.add(spr, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellSpan returns the first and last cell touched by the half-open pixel range [lo,hi).
// Results may lie outside the grid.
func cellSpan(lo, hi float64, tileSize int) (first, last int) {
	ts := float64(tileSize)
	return int(math.Floor(lo / ts)), int(math.Ceil(hi/ts)) - 1
}

// cellAt reads a cell with the out-of-bounds policy applied. Within OOBWidth cells of an edge
// the nearest edge cell extends outward; further out everything reads as cell (0,0).
func (s *Solver) cellAt(col, row int) grid.Cell {
	cols, rows := s.grid.Dimensions()
	w := s.cfg.OOBWidth
	if col < -w || row < -w || col >= cols+w || row >= rows+w {
		c, _ := s.grid.Cell(0, 0)
		return c
	}
	c, _ := s.grid.Cell(clamp(col, 0, cols-1), clamp(row, 0, rows-1))
	return c
}

// cellOverlap tests spr against the cell at its true position, which may be off-grid.
// The cell's data decides whether it presents as a box or, in a rounded corner, a circle;
// that shape is returned alongside the result.
func (s *Solver) cellOverlap(o *geom.Overlap, spr *sprite.Sprite, col, row int, cell grid.Cell) (geom.Shape, bool, error) {
	circle := s.grid.CellCircle(col, row)
	shape := grid.EffectiveShape(cell.Corners, spr.X-circle.X, spr.Y-circle.Y)
	hit, err := geom.Collide(o, spr.Shape, spr.Box(), spr.Circle(), shape, s.grid.CellBox(col, row), circle)
	return shape, hit, err
}

func spriteOverlap(o *geom.Overlap, a, b *sprite.Sprite) (bool, error) {
	return geom.Collide(o, a.Shape, a.Box(), a.Circle(), b.Shape, b.Box(), b.Circle())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

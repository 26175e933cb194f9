package physics

import (
	"github.com/pkg/errors"

	"tilephys/internal/geom"
	"tilephys/internal/grid"
)

const (
	gridShare   = 1.0
	spriteShare = 0.5
)

// resolve applies every collision of the pass, in detection order.
func (s *Solver) resolve() error {
	for i := range s.collisions.items {
		if err := s.resolveOne(&s.collisions.items[i]); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne separates one collision. If an earlier correction in this sweep already moved
// either participant, the overlap is measured again first and skipped when it is gone.
func (s *Solver) resolveOne(c *Collision) error {
	if c.A.Reconsider || (c.B != nil && c.B.Reconsider) {
		still, err := s.recheck(c)
		if err != nil {
			return err
		}
		if !still {
			return nil
		}
	}

	c.A.Reconsider = true
	shareA, shareB := gridShare, 0.0
	if c.B != nil {
		c.B.Reconsider = true
		shareA, shareB = spriteShare, spriteShare
	}

	d := c.Overlap.Penetration * s.cfg.Bias
	axis := c.Overlap.Axis
	c.A.X -= axis.X() * d * shareA
	c.A.Y -= axis.Y() * d * shareA
	if c.B != nil {
		c.B.X += axis.X() * d * shareB
		c.B.Y += axis.Y() * d * shareB
	}
	return nil
}

// recheck refreshes c.Overlap from current positions and reports whether the pair still overlaps.
func (s *Solver) recheck(c *Collision) (bool, error) {
	var o geom.Overlap
	if c.B != nil {
		hit, err := spriteOverlap(&o, c.A, c.B)
		if err != nil {
			return false, errors.Wrapf(err, "recheck sprites %d and %d", c.A.ID, c.B.ID)
		}
		if !hit || o.Penetration <= s.cfg.Epsilon {
			return false, nil
		}
		c.Overlap = o
		return true, nil
	}

	if s.cfg.LegacyGridRecheck {
		return true, nil
	}
	cell := s.cellAt(c.Col, c.Row)
	if !grid.CellIsSolid(cell.Physics, c.A.Impassable) {
		return false, nil
	}
	shape, hit, err := s.cellOverlap(&o, c.A, c.Col, c.Row, cell)
	if err != nil {
		return false, errors.Wrapf(err, "recheck sprite %d against cell %d,%d", c.A.ID, c.Col, c.Row)
	}
	if !hit || o.Penetration <= s.cfg.Epsilon {
		return false, nil
	}
	c.Overlap = o
	c.CellShape = shape
	return true, nil
}

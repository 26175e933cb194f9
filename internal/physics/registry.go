package physics

import (
	"github.com/pkg/errors"

	"tilephys/internal/geom"
	"tilephys/internal/sprite"
)

const (
	collisionGrowth = 64
	eventGrowth     = 32
)

// Collision is one overlap found during a detect pass. A is always a sprite.
// B is nil when A hit the grid, in which case Col/Row name the cell and CellShape is the
// shape the cell presented to A.
type Collision struct {
	A, B      *sprite.Sprite
	Col, Row  int
	CellShape geom.Shape
	Overlap   geom.Overlap
}

// Grid reports whether this is a sprite-vs-grid collision.
func (c Collision) Grid() bool { return c.B == nil }

// collisionList is rebuilt every pass. Capacity grows in fixed chunks up to max.
type collisionList struct {
	items []Collision
	max   int
}

func (l *collisionList) reset() {
	l.items = l.items[:0]
}

func (l *collisionList) add(c Collision) error {
	if len(l.items) == cap(l.items) {
		n := cap(l.items) + collisionGrowth
		if n > l.max {
			n = l.max
		}
		if n <= len(l.items) {
			return errors.Wrapf(ErrCapacity, "collision list full at %d", len(l.items))
		}
		grown := make([]Collision, len(l.items), n)
		copy(grown, l.items)
		l.items = grown
	}
	l.items = append(l.items, c)
	return nil
}

func (l *collisionList) len() int { return len(l.items) }

// Event records that two sprites, or a sprite and the grid, touched during the current tick.
// A is never nil. For sprite pairs A has the lower ID.
type Event struct {
	A, B *sprite.Sprite
}

// Grid reports whether this is a sprite-vs-grid event.
func (e Event) Grid() bool { return e.B == nil }

// Involves reports whether s is either participant.
func (e Event) Involves(s *sprite.Sprite) bool {
	return s != nil && (e.A == s || e.B == s)
}

// Other returns the participant that is not s, or nil for grid events.
func (e Event) Other(s *sprite.Sprite) *sprite.Sprite {
	if e.A == s {
		return e.B
	}
	return e.A
}

// orderKey sorts nil (the grid) below every sprite.
func orderKey(s *sprite.Sprite) uint64 {
	if s == nil {
		return 0
	}
	return uint64(s.ID) + 1
}

// canonical puts a pair into index order: the grid always lands in B,
// otherwise the lower ID goes first.
func canonical(a, b *sprite.Sprite) (*sprite.Sprite, *sprite.Sprite) {
	if a == nil {
		a, b = b, a
	}
	if b != nil && orderKey(a) > orderKey(b) {
		a, b = b, a
	}
	return a, b
}

func compareEvent(e Event, a, b *sprite.Sprite) int {
	ka, kb := orderKey(e.A), orderKey(a)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	ka, kb = orderKey(e.B), orderKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

// eventIndex is a sorted, duplicate-free set of events, cleared once per tick.
type eventIndex struct {
	items []Event
	max   int
}

func (x *eventIndex) reset() {
	x.items = x.items[:0]
}

func (x *eventIndex) len() int { return len(x.items) }

// find returns the index of the pair, or -(insertion point)-1 when absent.
// Arguments must already be canonical.
func (x *eventIndex) find(a, b *sprite.Sprite) int {
	lo, hi := 0, len(x.items)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch c := compareEvent(x.items[mid], a, b); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid
		}
	}
	return -lo - 1
}

// has reports whether the unordered pair was recorded.
func (x *eventIndex) has(a, b *sprite.Sprite) bool {
	a, b = canonical(a, b)
	if a == nil {
		return false
	}
	return x.find(a, b) >= 0
}

// add records the pair. Adding an existing pair is a no-op.
func (x *eventIndex) add(a, b *sprite.Sprite) error {
	a, b = canonical(a, b)
	if a == nil {
		return errors.Wrap(ErrInvalidArgument, "event needs at least one sprite")
	}
	p := x.find(a, b)
	if p >= 0 {
		return nil
	}
	p = -p - 1
	if len(x.items) == cap(x.items) {
		n := cap(x.items) + eventGrowth
		if n > x.max {
			n = x.max
		}
		if n <= len(x.items) {
			return errors.Wrapf(ErrCapacity, "event index full at %d", len(x.items))
		}
		grown := make([]Event, len(x.items), n)
		copy(grown, x.items)
		x.items = grown
	}
	x.items = append(x.items, Event{})
	copy(x.items[p+1:], x.items[p:])
	x.items[p] = Event{A: a, B: b}
	return nil
}

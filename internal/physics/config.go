package physics

import "github.com/pkg/errors"

// Config holds the solver's tunables. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Epsilon discards penetrations at or below this depth, so exact contact never jitters.
	Epsilon float64
	// Bias scales every correction slightly past zero overlap.
	Bias float64
	// RepeatLimit caps detect/resolve passes per Update.
	RepeatLimit int
	// OOBWidth is how many cells past the grid edge copy their nearest edge cell. Beyond that,
	// lookups read cell (0,0).
	OOBWidth int
	// LegacyGridRecheck skips re-validating grid collisions whose sprite already moved this
	// sweep, reproducing the historical trajectory. Sprite pairs are always re-validated.
	LegacyGridRecheck bool
	// MaxCollisions and MaxEvents bound the registry arrays. Growing past them fails the update.
	MaxCollisions int
	MaxEvents     int
}

// DefaultConfig returns the standard tuning for a 60Hz, 16px-tile game.
func DefaultConfig() Config {
	return Config{
		Epsilon:       0.001,
		Bias:          1.010,
		RepeatLimit:   10,
		OOBWidth:      1,
		MaxCollisions: 4096,
		MaxEvents:     4096,
	}
}

// Validate reports the first unusable field.
func (c Config) Validate() error {
	switch {
	case c.Epsilon < 0:
		return errors.Wrapf(ErrInvalidArgument, "epsilon %v is negative", c.Epsilon)
	case c.Bias <= 0:
		return errors.Wrapf(ErrInvalidArgument, "bias %v must be positive", c.Bias)
	case c.RepeatLimit < 1:
		return errors.Wrapf(ErrInvalidArgument, "repeat limit %d must be at least 1", c.RepeatLimit)
	case c.OOBWidth < 0:
		return errors.Wrapf(ErrInvalidArgument, "out-of-bounds width %d is negative", c.OOBWidth)
	case c.MaxCollisions < 1 || c.MaxEvents < 1:
		return errors.Wrapf(ErrInvalidArgument, "registry limits %d/%d must be positive", c.MaxCollisions, c.MaxEvents)
	}
	return nil
}

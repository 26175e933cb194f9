package physics

import (
	"github.com/pkg/errors"

	"tilephys/internal/geom"
)

var (
	// ErrInvalidArgument reports a missing required sprite or an unusable config.
	ErrInvalidArgument = errors.New("physics: invalid argument")
	// ErrCapacity reports that a registry array would grow past its configured limit.
	// Update aborts; corrections already applied in the tick stand.
	ErrCapacity = errors.New("physics: registry capacity exceeded")
	// ErrUnknownShape reports a sprite whose shape is outside the closed shape set.
	ErrUnknownShape = geom.ErrUnknownShape
)

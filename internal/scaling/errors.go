package scaling

import (
	"errors"
	"fmt"

	"seem/pkg/taper"
)

// ErrOutOfRange is matched by every *RangeError.
var ErrOutOfRange = errors.New("scaling: outside volume table range")

// RangeError reports a DBH or height the volume table cannot interpolate.
type RangeError struct {
	Species  taper.Species
	Quantity string
	Value    float64
	Limit    float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("scaling: %s %s %g outside table limit %g", e.Species, e.Quantity, e.Value, e.Limit)
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

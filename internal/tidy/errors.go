package tidy

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a reduction meets a non-numeric cell.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInvalidOption is returned for contradictory or incomplete options.
	ErrInvalidOption = errors.New("invalid option")
)

// ShapeError reports a row whose data does not fit the requested reshape,
// such as a separate that yields the wrong number of pieces or a spread
// that meets the same cell twice.
type ShapeError struct {
	Op     string // "separate", "spread"
	Column string
	Row    int // 0-based input row
	Value  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: column %q row %d value %q: %s", e.Op, e.Column, e.Row, e.Value, e.Reason)
}

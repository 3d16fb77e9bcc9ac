package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidHemisphere is returned when a bearing does not pair N/S with E/W.
var ErrInvalidHemisphere = errors.New("invalid hemisphere")

// ValidationKind names the field that failed validation.
type ValidationKind string

const (
	InvalidHemisphere ValidationKind = "hemisphere"
	InvalidDegrees    ValidationKind = "degrees"
	InvalidMinutes    ValidationKind = "minutes"
	InvalidLength     ValidationKind = "length"
	InvalidBearing    ValidationKind = "bearing"
	InvalidAzimuth    ValidationKind = "azimuth"
)

// ValidationError reports the first invalid segment of a traverse.
// Line is 1-based. Validation errors are never suppressed.
type ValidationError struct {
	Kind ValidationKind `json:"kind"`
	Line int            `json:"line"`
	Err  error          `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s on line %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid %s on line %d", e.Kind, e.Line)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// EmptyInputError is returned when there is nothing to compute.
// Suppressible is set when the computation was triggered in the background
// and the caller may choose not to surface the failure.
type EmptyInputError struct {
	What         string `json:"what"`
	Suppressible bool   `json:"suppressible"`
}

func (e *EmptyInputError) Error() string {
	return "no " + e.What + " available"
}

// ParseError reports a malformed bearing string or coordinate document.
type ParseError struct {
	Fragment string `json:"fragment"`
	Reason   string `json:"reason"`
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error: %s: %q", e.Reason, e.Fragment)
}

// IsSuppressible reports whether err is an empty-input failure raised by a
// background recompute.
func IsSuppressible(err error) bool {
	var empty *EmptyInputError
	return errors.As(err, &empty) && empty.Suppressible
}

// ErrPlotNotFound is returned when a saved plot does not exist.
var ErrPlotNotFound = errors.New("plot not found")

// ErrPlotNameRequired is returned when saving a plot without a name.
var ErrPlotNameRequired = errors.New("plot name is required")

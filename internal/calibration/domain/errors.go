package calibration

import "errors"

var (
	// ErrNotFound indicates a calibration record, group, or measurement
	// does not exist.
	ErrNotFound = errors.New("calibration: not found")
	// ErrInvalidMode indicates an unknown workflow mode.
	ErrInvalidMode = errors.New("calibration: invalid workflow mode")
	// ErrInvalidToleranceType indicates an unknown tolerance band type.
	ErrInvalidToleranceType = errors.New("calibration: invalid tolerance type")
)

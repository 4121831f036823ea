package nn

import "errors"

var (
	// ErrNonFinite is returned when the loss becomes NaN or infinite
	ErrNonFinite = errors.New("training diverged: non-finite loss")
	// ErrInvalidConfig is returned for unusable network settings
	ErrInvalidConfig = errors.New("invalid network configuration")
)

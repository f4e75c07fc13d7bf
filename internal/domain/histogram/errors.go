package histogram

import "errors"

// Sentinel kinds for histogram errors.
var (
	ErrEmptyHistogram = errors.New("empty histogram")
	ErrInvalidCount   = errors.New("invalid pixel count")
)

package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrLockHeld          = errors.New("lock already held")
	ErrInvalidRange      = errors.New("invalid time range")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrDataConsistency means a bucket's declared swap count does not match
	// the swaps supplied for it. Detection aborts without a partial result.
	ErrDataConsistency = errors.New("swap data inconsistent with bucket")
)

package ecs

import "errors"

// Error taxonomy shared by every core package. A nil error is OK; anything
// else wraps exactly one of these sentinels and is tested with errors.Is.
var (
	ErrInvalidArg  = errors.New("invalid argument")
	ErrBounds      = errors.New("index or capacity out of bounds")
	ErrNotFound    = errors.New("not found")
	ErrOverflow    = errors.New("queue overflow, entry dropped")
	ErrOutOfMemory = errors.New("backing store allocation failed")
)

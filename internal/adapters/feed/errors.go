package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrClosed      = errors.New("feed closed")
	ErrInvalidPath = errors.New("invalid feed path")
)

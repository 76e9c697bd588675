package evaluate

import "errors"

// Sentinel kinds for evaluation errors.
var (
	ErrBadPattern     = errors.New("task link pattern does not compile")
	ErrUnknownService = errors.New("no badge fetcher for service")
)

package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	ErrRetryExhausted = errors.New("retry budget exhausted")
)

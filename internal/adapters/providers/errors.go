package providers

import "errors"

// Sentinel kinds for provider errors.
var (
	ErrMissingUserID  = errors.New("third-party user id is missing")
	ErrBadRequest     = errors.New("provider request could not be built")
	ErrUpstreamStatus = errors.New("provider returned a non-success status")
)

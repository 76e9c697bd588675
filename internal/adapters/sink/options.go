package sink

import (
	"time"

	"github.com/singpath/progressd/pkg/logger"
)

// Option configures the sink.
type Option func(*Sink)

// WithFlushInterval sets the coalescing window.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Sink) {
		s.log = log
	}
}

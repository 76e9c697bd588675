package monitor

import (
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/stream"
)

// Option configures the monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

// WithRetry sets the evaluation retry budget and delay curve.
func WithRetry(attempts int, b stream.Backoff) Option {
	return func(m *Monitor) {
		if attempts > 0 {
			m.attempts = attempts
		}
		m.backoff = b
	}
}

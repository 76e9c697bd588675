package ops

import "github.com/singpath/progressd/pkg/logger"

// Option configures the ops server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

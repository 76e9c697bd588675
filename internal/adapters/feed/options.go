package feed

import "github.com/singpath/progressd/internal/domain/model"

type options struct {
	seeds []model.Patch
}

// Option applies a configuration option to the in-memory feed.
type Option func(*options)

// WithSeed pre-populates the feed with a patch before any observer
// attaches. Mostly used by tests and the simulator.
func WithSeed(patch model.Patch) Option {
	return func(o *options) {
		o.seeds = append(o.seeds, patch)
	}
}

// Package sink applies the monitor's progress patches back to the feed,
// coalescing bursts into one multi-path write per flush window.
package sink

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/metrics"
)

// DefaultFlushInterval is the patch coalescing window.
const DefaultFlushInterval = 500 * time.Millisecond

// Sink batches patches and writes them to the feed. Within one window
// the last write per path wins, so a solved-then-revoked burst applies
// as a single final state.
type Sink struct {
	feed     feed.Feed
	log      logger.Logger
	interval time.Duration
}

// New creates a sink writing to the feed.
func New(f feed.Feed, opts ...Option) *Sink {
	s := &Sink{
		feed:     f,
		log:      logger.Get().Named("sink"),
		interval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes patches until the channel closes or ctx ends, flushing
// the merged pending patch once per window. A failed flush keeps the
// batch pending for the next window. On shutdown the remaining batch is
// flushed on a short grace context; the channel often closes because
// ctx was cancelled, so both exits drain the same way.
func (s *Sink) Run(ctx context.Context, patches <-chan model.Patch) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pending := make(model.Patch)

	for {
		select {
		case <-ctx.Done():
			s.graceFlush(ctx, pending)
			return ctx.Err()
		case p, ok := <-patches:
			if !ok {
				if err := s.graceFlush(ctx, pending); err != nil {
					return err
				}
				return ctx.Err()
			}
			pending.Merge(p)
		case <-ticker.C:
			if s.flush(ctx, pending) == nil {
				pending = make(model.Patch)
			}
		}
	}
}

// graceFlush writes the remaining batch on a context that survives
// cancellation, bounded by one flush window.
func (s *Sink) graceFlush(ctx context.Context, pending model.Patch) error {
	grace, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.interval)
	defer cancel()
	return s.flush(grace, pending)
}

func (s *Sink) flush(ctx context.Context, patch model.Patch) error {
	if len(patch) == 0 {
		return nil
	}
	batchID := uuid.NewString()
	start := time.Now()
	if err := s.feed.ApplyPatch(ctx, patch); err != nil {
		s.log.Error(ctx, "patch flush failed",
			logger.String("batchId", batchID),
			logger.Int("keys", len(patch)),
			logger.Error(err),
		)
		metrics.RecordPatchFlushError()
		return err
	}
	metrics.RecordPatchFlush(len(patch), float64(time.Since(start).Milliseconds()))
	s.log.Debug(ctx, "patch flushed",
		logger.String("batchId", batchID),
		logger.Int("keys", len(patch)),
	)
	return nil
}

// Package service orchestrates the daemon: it wires the feed, the
// achievement providers, the evaluator, the monitor and the patch sink
// into one running pipeline.
package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/adapters/providers"
	"github.com/singpath/progressd/internal/adapters/sink"
	"github.com/singpath/progressd/internal/domain/evaluate"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/internal/monitor"
	"github.com/singpath/progressd/pkg/cache"
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/stream"
)

// Service runs the progress monitoring pipeline over one feed.
type Service struct {
	mu sync.RWMutex

	feed feed.Feed

	// Configuration
	owner           string
	listOnly        bool
	flushInterval   time.Duration
	attempts        int
	backoff         stream.Backoff
	cacheTTL        time.Duration
	codeCombatURL   string
	codeSchoolURL   string
	providerTimeout time.Duration

	// State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithOwner sets the public id whose events are monitored.
func WithOwner(publicID string) Option {
	return func(s *Service) {
		s.owner = publicID
	}
}

// WithListOnly makes the service stop after listing the owner's current
// events instead of monitoring them.
func WithListOnly(listOnly bool) Option {
	return func(s *Service) {
		s.listOnly = listOnly
	}
}

// WithFlushInterval sets the patch coalescing window.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithRetry sets the evaluation retry budget and delay curve.
func WithRetry(attempts int, b stream.Backoff) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		s.backoff = b
	}
}

// WithCacheTTL sets the provider response cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithProviderEndpoints overrides the achievement provider base URLs.
func WithProviderEndpoints(codeCombat, codeSchool string) Option {
	return func(s *Service) {
		if codeCombat != "" {
			s.codeCombatURL = codeCombat
		}
		if codeSchool != "" {
			s.codeSchoolURL = codeSchool
		}
	}
}

// WithProviderTimeout sets the provider HTTP timeout.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.providerTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service over the feed with default configuration.
func New(f feed.Feed, opts ...Option) *Service {
	s := &Service{
		feed:            f,
		flushInterval:   sink.DefaultFlushInterval,
		attempts:        5,
		backoff:         stream.DefaultBackoff(),
		cacheTTL:        cache.DefaultTTL,
		codeCombatURL:   "https://codecombat.com",
		codeSchoolURL:   "https://www.codeschool.com",
		providerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the pipeline and begins monitoring. It returns once the
// watch is established; the pipeline runs until Stop or, in list mode,
// until the event backlog was reported.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.owner == "" {
		return ErrNoOwner
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.logger.Info(ctx, "starting progress monitor",
		logger.String("owner", s.owner),
		logger.Bool("listOnly", s.listOnly),
	)

	providerCache := cache.New(cache.WithTTL(s.cacheTTL))
	client := &http.Client{Timeout: s.providerTimeout}
	eval := evaluate.New(map[string]evaluate.BadgeFetcher{
		model.ServiceCodeCombat: providers.NewCodeCombat(s.feed,
			providers.WithBaseURL(s.codeCombatURL),
			providers.WithHTTPClient(client),
			providers.WithCache(providerCache),
		),
		model.ServiceCodeSchool: providers.NewCodeSchool(
			providers.WithBaseURL(s.codeSchoolURL),
			providers.WithHTTPClient(client),
			providers.WithCache(providerCache),
		),
	})

	mon := monitor.New(s.feed, eval, monitor.WithRetry(s.attempts, s.backoff))
	patchSink := sink.New(s.feed, sink.WithFlushInterval(s.flushInterval))

	// The pipeline outlives the Start call.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	events, synced, err := mon.WatchOwnerEvents(runCtx, s.owner)
	if err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	if s.listOnly {
		go s.runList(runCtx, events, synced)
		return nil
	}

	go func() {
		defer close(s.done)
		patches := mon.Run(runCtx, events)
		if err := patchSink.Run(runCtx, patches); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error(runCtx, "patch sink stopped", logger.Error(err))
		}
	}()
	return nil
}

// runList reports the owner's current events and stops the service.
func (s *Service) runList(ctx context.Context, events <-chan model.Event, synced <-chan struct{}) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-synced:
			s.logger.Info(ctx, "event list complete")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Info(ctx, "event",
				logger.String("eventId", ev.ID),
				logger.String("name", ev.Details.Name),
			)
		}
	}
}

// Stop tears the pipeline down and waits for the final patch flush.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping progress monitor...")
	s.cancel()
	<-s.done
	s.started = false
	s.logger.Info(context.Background(), "progress monitor stopped")
}

// Wait blocks until the pipeline ended, which in list mode happens on
// its own once the backlog was reported.
func (s *Service) Wait() {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Stats returns a point-in-time view for the ops endpoint.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"started":           s.started,
		"owner":             s.owner,
		"list_only":         s.listOnly,
		"flush_interval_ms": s.flushInterval.Milliseconds(),
		"retry_attempts":    s.attempts,
		"cache_ttl_ms":      s.cacheTTL.Milliseconds(),
	}
}

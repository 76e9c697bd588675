package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	service "github.com/singpath/progressd/internal/app"
	"github.com/singpath/progressd/pkg/logger"
)

const settlePollInterval = 50 * time.Millisecond

// Run executes one simulation: it generates a world of events, tasks
// and participants, runs the daemon over an in-memory feed, submits
// solutions concurrently and verifies the recorded progress.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("simulator")
	stats := &Stats{StartTime: time.Now()}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	w := generateWorld(cfg)
	stats.EventsGenerated = cfg.NumEvents
	stats.TasksGenerated = len(w.Tasks)

	store := feed.NewMemory(feed.WithSeed(w.Seed))
	defer store.Close()

	svc := service.New(store,
		service.WithOwner(cfg.Owner),
		service.WithFlushInterval(cfg.FlushInterval),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer svc.Stop()

	log.Info(ctx, "simulation world ready",
		logger.Int("events", stats.EventsGenerated),
		logger.Int("tasks", stats.TasksGenerated),
		logger.Int("participants", len(w.Participants)),
	)

	// Generate up front, keeping only the last submission per solution
	// path: concurrent submitters must not race writes to one path, and
	// the verifier checks the final state anyway.
	var mu sync.Mutex
	expected := make(map[string]bool)
	latest := make(map[string]submission)
	order := make([]string, 0, cfg.NumSolutions)
	for n := 0; n < cfg.NumSolutions; n++ {
		s := w.generateSubmission(rng, n)
		if _, seen := latest[s.Path]; !seen {
			order = append(order, s.Path)
		}
		latest[s.Path] = s
		expected[s.Progress] = s.Solved
	}
	subs := make([]submission, 0, len(order))
	for _, path := range order {
		subs = append(subs, latest[path])
	}

	// Submit concurrently; writes to distinct tasks are independent.
	jobs := make(chan submission)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if err := store.Set(ctx, s.Path, s.Value); err != nil {
					log.Warn(ctx, "submission failed",
						logger.String("path", s.Path),
						logger.Error(err),
					)
					continue
				}
				mu.Lock()
				stats.SolutionsSubmitted++
				mu.Unlock()
			}
		}()
	}
	for _, s := range subs {
		select {
		case jobs <- s:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if err := verify(ctx, store, expected, stats, cfg.SettleTimeout); err != nil {
		return err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "simulation finished",
		logger.Int("events", stats.EventsGenerated),
		logger.Int("tasks", stats.TasksGenerated),
		logger.Int("submitted", stats.SolutionsSubmitted),
		logger.Int("expectedCompletions", stats.ExpectedCompletions),
		logger.Int("recordedCompletions", stats.RecordedCompletions),
		logger.Int("missing", stats.MissingCompletions),
		logger.Int("spurious", stats.SpuriousCompletions),
		logger.Duration("duration", stats.Duration),
	)
}

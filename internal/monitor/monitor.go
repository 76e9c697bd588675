// Package monitor implements the event progress monitoring graph: it
// watches the feed for active events, tracks their tasks and
// participants, resolves the achievement data a task set requires,
// evaluates submitted solutions and emits progress patches.
package monitor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/evaluate"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/metrics"
	"github.com/singpath/progressd/pkg/stream"
)

// Default evaluation retry budget.
const defaultAttempts = 5

// Monitor composes the per-event subscription trees over one feed.
type Monitor struct {
	feed     feed.Feed
	eval     *evaluate.Evaluator
	log      logger.Logger
	attempts int
	backoff  stream.Backoff
}

// New creates a monitor over the feed using the evaluator for solution
// decisions.
func New(f feed.Feed, eval *evaluate.Evaluator, opts ...Option) *Monitor {
	m := &Monitor{
		feed:     f,
		eval:     eval,
		log:      logger.Get().Named("monitor"),
		attempts: defaultAttempts,
		backoff:  stream.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WatchOwnerEvents observes the events owned by ownerID. It emits one
// lifecycle notification per appearance (Active true) and disappearance
// (Active false). The returned signal channel closes once the backlog
// of already existing events has been delivered to the caller,
// supporting a bounded list mode: a receive loop that observes it
// closed has already received every backlog event.
func (m *Monitor) WatchOwnerEvents(ctx context.Context, ownerID string) (<-chan model.Event, <-chan struct{}, error) {
	q, err := m.feed.QueryChildren(ctx, model.EventsPath(), model.OwnerField, ownerID)
	if err != nil {
		return nil, nil, err
	}

	toEvent := func(snap feed.Snapshot, active bool) model.Event {
		ev := model.Event{ID: snap.Key, Active: active}
		if err := snap.Decode(&ev.Details); err != nil {
			m.log.Warn(ctx, "undecodable event details",
				logger.String("eventId", snap.Key),
				logger.Error(err),
			)
		}
		return ev
	}

	out := make(chan model.Event)
	synced := make(chan struct{})
	emit := func(snap feed.Snapshot, active bool) bool {
		select {
		case out <- toEvent(snap, active):
			return true
		case <-ctx.Done():
			return false
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		wg.Wait()
		close(out)
	}()

	// The added path forwards straight to out, with no intermediate
	// stage holding events in flight: synced is only closed after the
	// query reported its backlog delivered, and the query does that
	// after this goroutine received (and therefore forwarded) the last
	// backlog snapshot.
	go func() {
		defer wg.Done()
		qs := q.Synced
		for {
			select {
			case <-ctx.Done():
				return
			case <-qs:
				close(synced)
				qs = nil
			case snap, ok := <-q.Added:
				if !ok {
					return
				}
				if !emit(snap, true) {
					return
				}
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-q.Removed:
				if !ok {
					return
				}
				if !emit(snap, false) {
					return
				}
			}
		}
	}()

	return out, synced, nil
}

// Run monitors every event on the lifecycle stream and returns the
// merged patch output. An event monitor starts on Active true and is
// torn down on Active false. Run stops, cancelling all event subtrees,
// when events closes or ctx ends; the output closes once all monitors
// drained.
func (m *Monitor) Run(ctx context.Context, events <-chan model.Event) <-chan model.Patch {
	out := make(chan model.Patch)

	go func() {
		defer close(out)

		runCtx, cancelAll := context.WithCancel(ctx)
		defer cancelAll()

		var wg sync.WaitGroup
		running := make(map[string]context.CancelFunc)

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case ev, ok := <-events:
				if !ok {
					break loop
				}
				if ev.Active {
					if _, up := running[ev.ID]; up {
						continue
					}
					m.log.Info(ctx, "watching event",
						logger.String("eventId", ev.ID),
						logger.String("name", ev.Details.Name),
					)
					evCtx, cancel := context.WithCancel(runCtx)
					running[ev.ID] = cancel
					metrics.UpdateEventsWatched(len(running))
					wg.Add(1)
					go func(id string) {
						defer wg.Done()
						if err := m.runEvent(evCtx, id, out); err != nil {
							m.log.Error(ctx, "event monitor failed",
								logger.String("eventId", id),
								logger.Error(err),
							)
						}
					}(ev.ID)
					continue
				}
				if cancel, up := running[ev.ID]; up {
					m.log.Info(ctx, "stopped watching event",
						logger.String("eventId", ev.ID),
						logger.String("name", ev.Details.Name),
					)
					cancel()
					delete(running, ev.ID)
					metrics.UpdateEventsWatched(len(running))
				}
			}
		}

		cancelAll()
		wg.Wait()
		metrics.UpdateEventsWatched(0)
	}()

	return out
}

// decodeSolutionValue maps a solution snapshot to its tri-state value:
// nil for absent/removed, the string itself for JSON strings, and the
// raw JSON text for anything else.
func decodeSolutionValue(snap feed.Snapshot) *string {
	if !snap.Exists() {
		return nil
	}
	var s string
	if err := json.Unmarshal(snap.Value, &s); err != nil {
		s = string(snap.Value)
	}
	return &s
}

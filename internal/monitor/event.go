package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/metrics"
	"github.com/singpath/progressd/pkg/stream"
)

// participantCount backs the active-participants gauge across all
// watched events.
var participantCount atomic.Int64

// runEvent builds one event's subscription tree: the replayed task set,
// the replayed recorded progress, the distinct achievement requirements
// derived from the tasks, and one participant monitor per present
// participant. It returns when ctx ends or the participant streams
// close.
func (m *Monitor) runEvent(ctx context.Context, eventID string, out chan<- model.Patch) error {
	log := m.log.With(logger.String("eventId", eventID))

	tasksRaw, err := m.feed.ObserveValue(ctx, model.TasksPath(eventID))
	if err != nil {
		return err
	}
	tasks := stream.NewReplay(ctx, stream.Map(ctx, tasksRaw, func(snap feed.Snapshot) model.TaskSet {
		ts := make(model.TaskSet)
		if err := snap.Decode(&ts); err != nil {
			log.Warn(ctx, "undecodable task set", logger.Error(err))
		}
		return ts
	}))

	progressRaw, err := m.feed.ObserveValue(ctx, model.ProgressPath(eventID))
	if err != nil {
		return err
	}
	progress := stream.NewReplay(ctx, stream.Map(ctx, progressRaw, func(snap feed.Snapshot) model.EventProgress {
		ep := make(model.EventProgress)
		if err := snap.Decode(&ep); err != nil {
			log.Warn(ctx, "undecodable event progress", logger.Error(err))
		}
		return ep
	}))

	// Achievement resolution only restarts when the required categories
	// actually change, not on every task edit.
	reqs := stream.NewReplay(ctx, stream.DistinctFunc(ctx,
		stream.Map(ctx, tasks.Subscribe(ctx), model.TaskSet.Requirements),
		func(r model.Requirements) model.Requirements { return r },
	))

	joined, err := m.feed.ObserveChildren(ctx, model.ParticipantsPath(eventID), feed.ChildAdded)
	if err != nil {
		return err
	}
	left, err := m.feed.ObserveChildren(ctx, model.ParticipantsPath(eventID), feed.ChildRemoved)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	active := make(map[string]context.CancelFunc)
	// Removals observed before the matching join; the join and leave
	// streams are independent, so a quick join-then-leave may arrive
	// leave first. A pending removal wins over the stale join.
	pendingLeft := make(map[string]int)

	for joined != nil || left != nil {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-joined:
			if !ok {
				joined = nil
				continue
			}
			publicID := snap.Key
			if pendingLeft[publicID] > 0 {
				pendingLeft[publicID]--
				if pendingLeft[publicID] == 0 {
					delete(pendingLeft, publicID)
				}
				continue
			}
			if _, up := active[publicID]; up {
				continue
			}
			pctx, cancel := context.WithCancel(ctx)
			active[publicID] = cancel
			metrics.UpdateParticipantsActive(int(participantCount.Add(1)))
			wg.Add(1)
			go func(publicID string) {
				defer wg.Done()
				defer metrics.UpdateParticipantsActive(int(participantCount.Add(-1)))
				m.runParticipant(pctx, eventID, publicID, tasks, progress, reqs, out)
			}(publicID)
		case snap, ok := <-left:
			if !ok {
				left = nil
				continue
			}
			publicID := snap.Key
			if cancel, up := active[publicID]; up {
				log.Info(ctx, "participant left", logger.String("publicId", publicID))
				cancel()
				delete(active, publicID)
				continue
			}
			pendingLeft[publicID]++
		}
	}
	return nil
}

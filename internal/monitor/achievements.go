package monitor

import (
	"context"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
)

// resolveAchievements lazily resolves the feed-backed achievement state
// of one participant. Each requirements update cancels the previous
// resolution and starts one scoped to the new categories; no feed
// subscription exists for a category no task needs. A snapshot is only
// emitted once every required category resolved at least once, so a
// consumer never judges against a half-filled snapshot.
func (m *Monitor) resolveAchievements(ctx context.Context, publicID string, reqs <-chan model.Requirements) <-chan model.Achievements {
	out := make(chan model.Achievements)

	go func() {
		defer close(out)

		var cancel context.CancelFunc
		var done chan struct{}
		stop := func() {
			if cancel == nil {
				return
			}
			cancel()
			<-done
			cancel, done = nil, nil
		}
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-reqs:
				if !ok {
					// Keep the last resolution live until the
					// participant goes away.
					reqs = nil
					continue
				}
				stop()
				rctx, c := context.WithCancel(ctx)
				cancel, done = c, make(chan struct{})
				go func(done chan<- struct{}) {
					defer close(done)
					m.resolveFor(rctx, publicID, r, out)
				}(done)
			}
		}
	}()

	return out
}

// resolveFor observes the feed sources for one fixed set of required
// categories and emits a snapshot on every update. No required category
// emits an empty snapshot right away.
func (m *Monitor) resolveFor(ctx context.Context, publicID string, r model.Requirements, out chan<- model.Achievements) {
	if !r.Any() {
		select {
		case out <- model.Achievements{}:
		case <-ctx.Done():
		}
		return
	}

	log := m.log.With(logger.String("publicId", publicID))

	var singpath, codecombat, codeschool <-chan feed.Snapshot
	var err error
	if r.SingPath {
		singpath, err = m.feed.ObserveValue(ctx, model.SingPathSolutionsPath(publicID))
		if err != nil {
			log.Error(ctx, "cannot observe singpath solutions", logger.Error(err))
			return
		}
	}
	if r.CodeCombat {
		codecombat, err = m.feed.ObserveValue(ctx, model.ProfileDetailsPath(publicID, model.ServiceCodeCombat))
		if err != nil {
			log.Error(ctx, "cannot observe codecombat profile", logger.Error(err))
			return
		}
	}
	if r.CodeSchool {
		codeschool, err = m.feed.ObserveValue(ctx, model.ProfileDetailsPath(publicID, model.ServiceCodeSchool))
		if err != nil {
			log.Error(ctx, "cannot observe codeschool profile", logger.Error(err))
			return
		}
	}

	var snap model.Achievements
	ready := func() bool {
		return (!r.SingPath || snap.SingPath != nil) &&
			(!r.CodeCombat || snap.CodeCombat != nil) &&
			(!r.CodeSchool || snap.CodeSchool != nil)
	}

	for singpath != nil || codecombat != nil || codeschool != nil {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-singpath:
			if !ok {
				singpath = nil
				continue
			}
			// An absent tree still resolves, to an empty solved set.
			solved := make(model.SolvedProblems)
			if err := s.Decode(&solved); err != nil {
				log.Warn(ctx, "undecodable singpath solutions", logger.Error(err))
			}
			snap.SingPath = solved
		case s, ok := <-codecombat:
			if !ok {
				codecombat = nil
				continue
			}
			details := &model.ServiceDetails{}
			if err := s.Decode(details); err != nil {
				log.Warn(ctx, "undecodable codecombat profile", logger.Error(err))
			}
			snap.CodeCombat = details
		case s, ok := <-codeschool:
			if !ok {
				codeschool = nil
				continue
			}
			details := &model.ServiceDetails{}
			if err := s.Decode(details); err != nil {
				log.Warn(ctx, "undecodable codeschool profile", logger.Error(err))
			}
			snap.CodeSchool = details
		}
		if !ready() {
			continue
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return
		}
	}
}

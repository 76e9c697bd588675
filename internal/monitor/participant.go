package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/evaluate"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
	"github.com/singpath/progressd/pkg/metrics"
	"github.com/singpath/progressd/pkg/stream"
)

// evalContext is the state a solution is judged against, captured once
// per arriving solution.
type evalContext struct {
	tasks        model.TaskSet
	progress     model.ParticipantProgress
	achievements model.Achievements
}

type solutionJob struct {
	sol model.Solution
	ec  evalContext
}

// runParticipant watches one participant of one event: it combines the
// event's tasks, the participant's recorded progress and their resolved
// achievements into an evaluation context, then dispatches each
// arriving solution to a serial per-task worker. It returns when ctx
// ends, the solution stream closes, or a worker gives up on an
// evaluation.
func (m *Monitor) runParticipant(
	ctx context.Context,
	eventID, publicID string,
	tasks *stream.Replay[model.TaskSet],
	progress *stream.Replay[model.EventProgress],
	reqs *stream.Replay[model.Requirements],
	out chan<- model.Patch,
) {
	log := m.log.With(
		logger.String("eventId", eventID),
		logger.String("publicId", publicID),
	)
	log.Info(ctx, "watching participant")

	// A worker that exhausts its retries cancels the whole participant.
	pctx, abort := context.WithCancel(ctx)
	defer abort()

	// Progress updates that do not flip any completion flag are noise.
	pprogress := stream.DistinctFunc(pctx,
		stream.Map(pctx, progress.Subscribe(pctx), func(ep model.EventProgress) model.ParticipantProgress {
			return ep[publicID]
		}),
		model.ParticipantProgress.CompletedKey,
	)

	achievements := m.resolveAchievements(pctx, publicID, reqs.Subscribe(pctx))

	ecReplay := stream.NewReplay(pctx, stream.Combine3(pctx,
		tasks.Subscribe(pctx), pprogress, achievements,
		func(ts model.TaskSet, pp model.ParticipantProgress, a model.Achievements) evalContext {
			return evalContext{tasks: ts, progress: pp, achievements: a}
		},
	))

	solutions, err := m.observeSolutions(pctx, eventID, publicID)
	if err != nil {
		log.Error(ctx, "cannot observe solutions", logger.Error(err))
		return
	}

	workers := make(map[string]chan solutionJob)
	var wg sync.WaitGroup
	defer func() {
		for _, jobs := range workers {
			close(jobs)
		}
		wg.Wait()
	}()

	for sol := range solutions {
		// Block until the first full context exists, then judge against
		// the latest one. A pending job conflates: resubmitting a task
		// before its worker catches up only evaluates the newest state.
		ec, err := ecReplay.Wait(pctx)
		if err != nil {
			return
		}
		jobs, up := workers[sol.TaskID]
		if !up {
			jobs = make(chan solutionJob, 1)
			workers[sol.TaskID] = jobs
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.evalLoop(pctx, abort, log, jobs, out)
			}()
		}
		dispatch(jobs, solutionJob{sol: sol, ec: ec})
	}
}

// dispatch pushes a job into a one-slot queue, displacing an unstarted
// older job for the same task.
func dispatch(jobs chan solutionJob, j solutionJob) {
	for {
		select {
		case jobs <- j:
			return
		default:
		}
		select {
		case <-jobs:
		default:
		}
	}
}

// observeSolutions merges the participant's solution additions, changes
// and removals into one stream. A removal carries a nil value.
func (m *Monitor) observeSolutions(ctx context.Context, eventID, publicID string) (<-chan model.Solution, error) {
	path := model.SolutionsPath(eventID, publicID)
	added, err := m.feed.ObserveChildren(ctx, path, feed.ChildAdded)
	if err != nil {
		return nil, err
	}
	changed, err := m.feed.ObserveChildren(ctx, path, feed.ChildChanged)
	if err != nil {
		return nil, err
	}
	removed, err := m.feed.ObserveChildren(ctx, path, feed.ChildRemoved)
	if err != nil {
		return nil, err
	}

	toSolution := func(snap feed.Snapshot) model.Solution {
		return model.Solution{
			EventID:  eventID,
			PublicID: publicID,
			TaskID:   snap.Key,
			Value:    decodeSolutionValue(snap),
		}
	}
	toRemoval := func(snap feed.Snapshot) model.Solution {
		return model.Solution{EventID: eventID, PublicID: publicID, TaskID: snap.Key}
	}

	return stream.Merge(ctx,
		stream.Map(ctx, added, toSolution),
		stream.Map(ctx, changed, toSolution),
		stream.Map(ctx, removed, toRemoval),
	), nil
}

// evalLoop serially judges the jobs of one task. Retry exhaustion
// aborts the participant; everything else keeps the loop alive.
func (m *Monitor) evalLoop(
	ctx context.Context,
	abort context.CancelFunc,
	log logger.Logger,
	jobs <-chan solutionJob,
	out chan<- model.Patch,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			patch, err := m.evaluateSolution(ctx, log, j)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error(ctx, "evaluation abandoned",
					logger.String("taskId", j.sol.TaskID),
					logger.Error(err),
				)
				metrics.RecordEvaluationFailure()
				abort()
				return
			}
			if len(patch) == 0 {
				continue
			}
			metrics.RecordPatchEmitted()
			select {
			case out <- patch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// evaluateSolution judges one solution against its captured context and
// builds the progress patch for a completion transition. It returns a
// nil patch when the task is skipped, undecidable, or already in the
// judged state.
func (m *Monitor) evaluateSolution(ctx context.Context, log logger.Logger, j solutionJob) (model.Patch, error) {
	taskID := j.sol.TaskID
	task, known := j.ec.tasks[taskID]
	wasSolved := j.ec.progress[taskID].Completed

	// Archived tasks and unknown task ids are never judged. A closed
	// task is only judged while a recorded completion could be revoked.
	if !known || task.Archived || (task.Closed() && !wasSolved) {
		log.Debug(ctx, "skipping solution", logger.String("taskId", taskID))
		metrics.RecordEvaluationSkip()
		return nil, nil
	}

	start := time.Now()
	var verdict evaluate.Verdict
	err := stream.Do(ctx, m.attempts, m.backoff, func(ctx context.Context) error {
		v, err := m.eval.Solve(ctx, &task, j.sol.Value, j.ec.achievements)
		if err != nil {
			log.Warn(ctx, "evaluation attempt failed",
				logger.String("taskId", taskID),
				logger.Error(err),
			)
			metrics.RecordEvaluationRetry()
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordEvaluation()
	metrics.RecordEvaluationLatency(float64(time.Since(start).Milliseconds()))

	if verdict == evaluate.NoDecision {
		return nil, nil
	}
	isSolved := verdict == evaluate.Solved
	if isSolved == wasSolved {
		return nil, nil
	}

	patch := model.Patch{
		model.CompletedPath(j.sol.EventID, j.sol.PublicID, taskID): isSolved,
	}
	if task.ServiceID != "" {
		totals, terr := m.eval.Totals(ctx, j.ec.achievements)
		if terr != nil {
			// The completion flag still ships; rankings catch up on the
			// next transition.
			log.Warn(ctx, "ranking aggregation failed",
				logger.String("taskId", taskID),
				logger.Error(terr),
			)
		} else {
			for category, n := range totals {
				patch[model.RankingPath(j.sol.EventID, j.sol.PublicID, category)] = n
			}
		}
	}
	log.Info(ctx, "solution judged",
		logger.String("taskId", taskID),
		logger.String("verdict", verdict.String()),
	)
	return patch, nil
}

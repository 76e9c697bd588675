// Package evaluate decides whether a submitted solution satisfies a
// task, given the participant's resolved achievements.
package evaluate

import (
	"context"
	"fmt"
	"regexp"

	"github.com/singpath/progressd/internal/domain/model"
)

// Verdict is the outcome of evaluating one solution.
type Verdict int

const (
	// NoDecision means the task could not be judged; callers must not
	// patch anything.
	NoDecision Verdict = iota
	NotSolved
	Solved
)

// String returns a short verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case NotSolved:
		return "not-solved"
	case Solved:
		return "solved"
	}
	return "no-decision"
}

// BadgeFetcher looks up a user's earned badges on one service. The
// provider adapters satisfy it.
type BadgeFetcher interface {
	FetchBadges(ctx context.Context, userID string) ([]model.Badge, error)
}

// Evaluator applies the five satisfaction rules: registration-only,
// badge, text response, link pattern and singpath problem. A solution
// solves its task when any rule is satisfied.
type Evaluator struct {
	fetchers map[string]BadgeFetcher
}

// New creates an evaluator over the badge fetchers, keyed by service id.
func New(fetchers map[string]BadgeFetcher) *Evaluator {
	if fetchers == nil {
		fetchers = make(map[string]BadgeFetcher)
	}
	return &Evaluator{fetchers: fetchers}
}

// Solve judges one solution value against its task. A nil task returns
// NoDecision; a nil value (no solution, or an explicitly removed one)
// returns NotSolved. Badge lookups go to the providers, so a transient
// provider failure surfaces as an error the caller may retry.
func (e *Evaluator) Solve(ctx context.Context, task *model.Task, value *string, ach model.Achievements) (Verdict, error) {
	if task == nil {
		return NoDecision, nil
	}
	if value == nil {
		return NotSolved, nil
	}

	if hasRegistered(task, ach) {
		return Solved, nil
	}
	if isResponseValid(task, *value) {
		return Solved, nil
	}
	ok, err := isLinkValid(task, *value)
	if err != nil {
		return NoDecision, err
	}
	if ok {
		return Solved, nil
	}
	if hasSolvedSingpathProblem(task, ach) {
		return Solved, nil
	}
	ok, err = e.hasBadge(ctx, task, ach)
	if err != nil {
		return NoDecision, err
	}
	if ok {
		return Solved, nil
	}
	return NotSolved, nil
}

// hasRegistered is the registration-only rule: the task names a service
// but neither a badge nor a problem, and the participant resolved a
// presence on that service.
func hasRegistered(task *model.Task, ach model.Achievements) bool {
	if task.ServiceID == "" || task.Badge != nil || task.SingPathProblem != nil {
		return false
	}
	return ach.Registered(task.ServiceID)
}

// isResponseValid is the text-response rule: any non-empty value counts.
func isResponseValid(task *model.Task, value string) bool {
	return task.TextResponse != "" && value != ""
}

// isLinkValid is the link-pattern rule: the raw solution string must
// match the task's pattern.
func isLinkValid(task *model.Task, value string) (bool, error) {
	if task.LinkPattern == "" {
		return false, nil
	}
	re, err := regexp.Compile(task.LinkPattern)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrBadPattern, err)
	}
	return re.MatchString(value), nil
}

// hasSolvedSingpathProblem is the problem rule: the referenced (path,
// level, problem) tuple must be solved on the default queue.
func hasSolvedSingpathProblem(task *model.Task, ach model.Achievements) bool {
	if task.ServiceID != model.ServiceSingPath || task.SingPathProblem == nil || ach.SingPath == nil {
		return false
	}
	ref := task.SingPathProblem
	return ach.SingPath.HasSolved(ref.Path.ID, ref.Level.ID, ref.Problem.ID, model.DefaultQueue)
}

// hasBadge is the badge rule: the participant's profile on the task's
// service must hold a badge matching the task's badge id. A missing
// profile id is not an error, just an unsatisfied rule.
func (e *Evaluator) hasBadge(ctx context.Context, task *model.Task, ach model.Achievements) (bool, error) {
	if task.Badge == nil || task.Badge.ID == "" || task.ServiceID == "" {
		return false, nil
	}
	userID, ok := ach.ProfileID(task.ServiceID)
	if !ok {
		return false, nil
	}
	fetcher, ok := e.fetchers[task.ServiceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownService, task.ServiceID)
	}
	badges, err := fetcher.FetchBadges(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, b := range badges {
		if b.ID == task.Badge.ID {
			return true, nil
		}
	}
	return false, nil
}

// Totals counts the participant's achievements per category for ranking
// patches: solved singpath problems plus badge counts on each service,
// and their sum under model.RankingTotal.
func (e *Evaluator) Totals(ctx context.Context, ach model.Achievements) (map[string]int, error) {
	totals := map[string]int{
		model.ServiceSingPath:   0,
		model.ServiceCodeCombat: 0,
		model.ServiceCodeSchool: 0,
	}
	if ach.SingPath != nil {
		totals[model.ServiceSingPath] = ach.SingPath.Count()
	}
	for _, serviceID := range []string{model.ServiceCodeCombat, model.ServiceCodeSchool} {
		userID, ok := ach.ProfileID(serviceID)
		if !ok {
			continue
		}
		fetcher, ok := e.fetchers[serviceID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
		}
		badges, err := fetcher.FetchBadges(ctx, userID)
		if err != nil {
			return nil, err
		}
		totals[serviceID] = len(badges)
	}
	totals[model.RankingTotal] = totals[model.ServiceSingPath] +
		totals[model.ServiceCodeCombat] +
		totals[model.ServiceCodeSchool]
	return totals, nil
}

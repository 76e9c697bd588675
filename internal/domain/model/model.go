// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
)

// Known achievement service ids.
const (
	ServiceSingPath   = "singPath"
	ServiceCodeCombat = "codeCombat"
	ServiceCodeSchool = "codeSchool"
)

// DefaultQueue is the singpath solution queue consulted when a task does
// not name one.
const DefaultQueue = "default"

// Services lists the achievement categories in their canonical order.
func Services() []string {
	return []string{ServiceSingPath, ServiceCodeCombat, ServiceCodeSchool}
}

// Owner identifies the user owning an event.
type Owner struct {
	PublicID string `json:"publicId"`
}

// EventDetails carries the event attributes stored on the feed.
type EventDetails struct {
	Name      string `json:"name"`
	Owner     Owner  `json:"owner"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// Event represents one lifecycle notification for a watched event.
// Active is true when the event appeared on the owner's list and false
// when it was removed from it.
type Event struct {
	ID      string
	Active  bool
	Details EventDetails
}

// Badge is a normalized third-party badge.
type Badge struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	IconURL string `json:"iconUrl"`
}

// RefID wraps an id attribute of a referenced entity.
type RefID struct {
	ID string `json:"id"`
}

// SingPathProblem references one problem inside the singpath problem tree.
type SingPathProblem struct {
	Path    RefID `json:"path"`
	Level   RefID `json:"level"`
	Problem RefID `json:"problem"`
}

// Task is one unit of work inside an event. Exactly one completion rule
// family applies depending on which attributes are set.
type Task struct {
	Title           string           `json:"title,omitempty"`
	Archived        bool             `json:"archived,omitempty"`
	ClosedAt        int64            `json:"closedAt,omitempty"`
	TextResponse    string           `json:"textResponse,omitempty"`
	LinkPattern     string           `json:"linkPattern,omitempty"`
	ServiceID       string           `json:"serviceId,omitempty"`
	Badge           *Badge           `json:"badge,omitempty"`
	SingPathProblem *SingPathProblem `json:"singPathProblem,omitempty"`
}

// Closed reports whether the task has a closing timestamp set.
func (t Task) Closed() bool {
	return t.ClosedAt != 0
}

// TaskSet is the full task map of one event, keyed by task id. It is
// replaced wholesale whenever the feed emits a new snapshot.
type TaskSet map[string]Task

// Requirements derives which achievement categories the task set needs.
// Archived tasks do not contribute: their solutions are never evaluated.
func (ts TaskSet) Requirements() Requirements {
	var r Requirements
	for _, t := range ts {
		if t.Archived {
			continue
		}
		switch t.ServiceID {
		case ServiceSingPath:
			r.SingPath = true
		case ServiceCodeCombat:
			r.CodeCombat = true
		case ServiceCodeSchool:
			r.CodeSchool = true
		}
	}
	return r
}

// Requirements is the minimal set of achievement categories a task set
// currently needs.
type Requirements struct {
	SingPath   bool
	CodeCombat bool
	CodeSchool bool
}

// Any reports whether at least one category is required.
func (r Requirements) Any() bool {
	return r.SingPath || r.CodeCombat || r.CodeSchool
}

// Requires reports whether the given service id is required.
func (r Requirements) Requires(serviceID string) bool {
	switch serviceID {
	case ServiceSingPath:
		return r.SingPath
	case ServiceCodeCombat:
		return r.CodeCombat
	case ServiceCodeSchool:
		return r.CodeSchool
	}
	return false
}

// SolvedStatus is the per-queue solution state inside a singpath profile.
type SolvedStatus struct {
	Solved bool `json:"solved"`
}

// SolvedProblems is the nested path -> level -> problem -> queue map of a
// participant's singpath solutions.
type SolvedProblems map[string]map[string]map[string]map[string]SolvedStatus

// HasSolved reports whether the exact (path, level, problem, queue) tuple
// is recorded as solved. An empty queue id falls back to DefaultQueue.
func (s SolvedProblems) HasSolved(pathID, levelID, problemID, queueID string) bool {
	if queueID == "" {
		queueID = DefaultQueue
	}
	if pathID == "" || levelID == "" || problemID == "" {
		return false
	}
	return s[pathID][levelID][problemID][queueID].Solved
}

// Count returns the number of solved problem entries across all queues.
func (s SolvedProblems) Count() int {
	n := 0
	for _, levels := range s {
		for _, problems := range levels {
			for _, queues := range problems {
				for _, st := range queues {
					if st.Solved {
						n++
					}
				}
			}
		}
	}
	return n
}

// ServiceDetails is the stored third-party registration of a participant.
type ServiceDetails struct {
	ID string `json:"id"`
}

// Achievements is the per-participant snapshot of resolved external state.
// A nil field means the category was not required or has not resolved
// yet; a non-nil zero value means it resolved to nothing.
type Achievements struct {
	SingPath   SolvedProblems
	CodeCombat *ServiceDetails
	CodeSchool *ServiceDetails
}

// ProfileID returns the external user id registered for the service and
// whether one is present.
func (a Achievements) ProfileID(serviceID string) (string, bool) {
	var d *ServiceDetails
	switch serviceID {
	case ServiceCodeCombat:
		d = a.CodeCombat
	case ServiceCodeSchool:
		d = a.CodeSchool
	default:
		return "", false
	}
	if d == nil || d.ID == "" {
		return "", false
	}
	return d.ID, true
}

// Registered reports whether the participant resolved a presence for the
// service: for singpath the solved set itself, for the badge services a
// non-empty profile id.
func (a Achievements) Registered(serviceID string) bool {
	if serviceID == ServiceSingPath {
		return a.SingPath != nil
	}
	_, ok := a.ProfileID(serviceID)
	return ok
}

// TaskProgress is the recorded completion state of one task.
type TaskProgress struct {
	Completed bool `json:"completed"`
}

// ParticipantProgress maps task ids to their recorded completion state.
type ParticipantProgress map[string]TaskProgress

// CompletedKey returns a deterministic key of the completed task ids,
// used to drop progress updates that do not change any completion flag.
func (p ParticipantProgress) CompletedKey() string {
	keys := make([]string, 0, len(p))
	for id, tp := range p {
		if tp.Completed {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// EventProgress maps participant public ids to their progress.
type EventProgress map[string]ParticipantProgress

// Solution is one submitted (or removed) answer for a task. A nil Value
// marks an explicit removal.
type Solution struct {
	EventID  string
	PublicID string
	TaskID   string
	Value    *string
}

// Patch maps fully qualified feed paths to the value to write there.
type Patch map[string]any

// Merge folds other into p, later values winning per key.
func (p Patch) Merge(other Patch) {
	for k, v := range other {
		p[k] = v
	}
}

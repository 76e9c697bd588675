package simulator

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/singpath/progressd/internal/domain/model"
)

// Task rule families the generator draws from.
const (
	kindText         = "text"
	kindLink         = "link"
	kindRegistration = "registration"
	kindProblem      = "problem"
)

var taskKinds = []string{kindText, kindLink, kindRegistration, kindProblem}

var eventNames = []string{
	"Python Bootcamp", "Intro to Algorithms", "Web Dev Sprint",
	"Code Review Clinic", "Data Structures Lab",
}

// taskRef remembers enough about a generated task to submit and verify
// solutions against it.
type taskRef struct {
	EventID string
	TaskID  string
	Kind    string
}

// world is the generated universe: seeded feed state plus the handles
// the submitter and verifier need.
type world struct {
	Seed         model.Patch
	Participants []string
	Tasks        []taskRef
}

func shortID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// generateWorld builds the seed patch for a simulation: events owned by
// cfg.Owner, a few tasks of every rule family per event, participants
// with singpath profiles so registration and problem tasks can resolve.
func generateWorld(cfg *Config) *world {
	w := &world{Seed: make(model.Patch)}

	for p := 0; p < cfg.Participants; p++ {
		w.Participants = append(w.Participants, shortID("student"))
	}

	for e := 0; e < cfg.NumEvents; e++ {
		eventID := shortID("event")
		w.Seed[model.EventsPath()+"/"+eventID] = map[string]any{
			"name":  eventNames[e%len(eventNames)],
			"owner": map[string]any{"publicId": cfg.Owner},
		}

		for _, kind := range taskKinds {
			taskID := shortID("task")
			w.Tasks = append(w.Tasks, taskRef{EventID: eventID, TaskID: taskID, Kind: kind})
			w.Seed[model.TasksPath(eventID)+"/"+taskID] = generateTask(kind, taskID)
		}

		for _, publicID := range w.Participants {
			w.Seed[model.ParticipantsPath(eventID)+"/"+publicID] = map[string]any{
				"name": publicID,
			}
		}
	}

	// Half of the participants hold a solved singpath problem, so
	// problem tasks split between solved and unsolved outcomes.
	for i, publicID := range w.Participants {
		if i%2 == 0 {
			w.Seed[model.SingPathSolutionsPath(publicID)+"/scripting/basics/hello/default"] = map[string]any{
				"solved": true,
			}
		}
	}

	return w
}

func generateTask(kind, taskID string) map[string]any {
	switch kind {
	case kindLink:
		return map[string]any{
			"title":       "share your repository " + taskID,
			"linkPattern": "^https://github\\.com/",
		}
	case kindRegistration:
		return map[string]any{
			"title":     "register on singpath " + taskID,
			"serviceId": model.ServiceSingPath,
		}
	case kindProblem:
		return map[string]any{
			"title":     "solve the hello problem " + taskID,
			"serviceId": model.ServiceSingPath,
			"singPathProblem": map[string]any{
				"path":    map[string]any{"id": "scripting"},
				"level":   map[string]any{"id": "basics"},
				"problem": map[string]any{"id": "hello"},
			},
		}
	default:
		return map[string]any{
			"title":        "write about " + taskID,
			"textResponse": "essay",
		}
	}
}

// submission is one solution write plus whether it should end up
// recorded as completed.
type submission struct {
	Path     string
	Value    string
	Progress string
	Solved   bool
}

// generateSubmission picks a random participant and task and produces a
// solution that solves it or not, depending on the rule family and a
// coin flip.
func (w *world) generateSubmission(rng *rand.Rand, n int) submission {
	task := w.Tasks[rng.Intn(len(w.Tasks))]
	participant := w.Participants[rng.Intn(len(w.Participants))]

	value := fmt.Sprintf("answer %d", n)
	solved := true
	switch task.Kind {
	case kindLink:
		if rng.Intn(2) == 0 {
			value = "https://github.com/" + participant + "/demo"
		} else {
			value = "http://example.com/" + participant
			solved = false
		}
	case kindProblem:
		// Only even-indexed participants have the solved tuple seeded.
		solved = w.hasSolvedSeed(participant)
	case kindRegistration:
		// The singpath solved-set always resolves, so any submission
		// satisfies a registration task.
	}

	return submission{
		Path:     model.SolutionsPath(task.EventID, participant) + "/" + task.TaskID,
		Value:    value,
		Progress: model.CompletedPath(task.EventID, participant, task.TaskID),
		Solved:   solved,
	}
}

func (w *world) hasSolvedSeed(publicID string) bool {
	for i, p := range w.Participants {
		if p == publicID {
			return i%2 == 0
		}
	}
	return false
}

package model

import "strings"

// Feed path layout. All paths are slash separated and rooted at the feed
// base the daemon was pointed at.

// OwnerField is the child field the owner event query orders by.
const OwnerField = "owner/publicId"

// RankingTotal is the pseudo category holding the summed ranking counter.
const RankingTotal = "total"

func join(parts ...string) string {
	return strings.Join(parts, "/")
}

// EventsPath is the collection of event records.
func EventsPath() string {
	return "events"
}

// TasksPath holds the task map of one event.
func TasksPath(eventID string) string {
	return join("tasks", eventID)
}

// ParticipantsPath holds the participant records of one event.
func ParticipantsPath(eventID string) string {
	return join("participants", eventID)
}

// SolutionsPath holds one participant's solutions, keyed by task id.
func SolutionsPath(eventID, publicID string) string {
	return join("solutions", eventID, publicID)
}

// ProgressPath holds the recorded completion state of one event.
func ProgressPath(eventID string) string {
	return join("progress", eventID)
}

// CompletedPath is the completion flag key written by progress patches.
func CompletedPath(eventID, publicID, taskID string) string {
	return join("progress", eventID, publicID, taskID, "completed")
}

// RankingPath is the ranking counter key for one category, or for
// RankingTotal.
func RankingPath(eventID, publicID, category string) string {
	return join("rankings", eventID, publicID, category)
}

// BadgeCatalogPath holds the tracked badge catalog of a service.
func BadgeCatalogPath(serviceID string) string {
	return join("badges", serviceID)
}

// ProfileDetailsPath holds a participant's registration details for a
// third-party service.
func ProfileDetailsPath(publicID, serviceID string) string {
	return join("profiles", publicID, "services", serviceID, "details")
}

// SingPathSolutionsPath holds a participant's singpath solution tree.
func SingPathSolutionsPath(publicID string) string {
	return join("singpath", "profiles", publicID, "queuedSolutions")
}

// Package feed defines the contract to the hierarchical real-time store
// the monitor observes and patches.
//
// Paths are slash separated. A value observer sees the whole subtree
// below its path as one snapshot; child observers see one snapshot per
// direct child. Writing a nil value removes the subtree at that path.
package feed

import (
	"context"
	"encoding/json"

	"github.com/singpath/progressd/internal/domain/model"
)

// ChildEvent selects which child transitions an observer receives.
type ChildEvent int

const (
	ChildAdded ChildEvent = iota
	ChildChanged
	ChildRemoved
)

// String returns the wire name of the child event kind.
func (e ChildEvent) String() string {
	switch e {
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	case ChildRemoved:
		return "child_removed"
	}
	return "unknown"
}

// Snapshot is one observed value. A nil Value means the node is absent
// (or, on a ChildRemoved stream, that it was removed).
type Snapshot struct {
	Key   string
	Value json.RawMessage
}

// Exists reports whether the snapshot holds a value.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into v. Absent values decode as
// JSON null, leaving v untouched.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.Value, v)
}

// Query is the result of an ordered equality query: the backlog and
// subsequent matches on Added, later unmatches on Removed, and Synced
// closing once the initial backlog has been delivered. The close is
// ordered after the backlog: a consumer receiving from Added that
// observes Synced closed has already received every backlog snapshot.
type Query struct {
	Added   <-chan Snapshot
	Removed <-chan Snapshot
	Synced  <-chan struct{}
}

// Feed is the store collaborator interface. Observation channels close
// when ctx is done or the feed shuts down.
type Feed interface {
	// Value reads the current snapshot at path once.
	Value(ctx context.Context, path string) (Snapshot, error)

	// ObserveValue emits the current snapshot at path and then one
	// snapshot per change.
	ObserveValue(ctx context.Context, path string) (<-chan Snapshot, error)

	// ObserveChildren emits one snapshot per direct-child transition of
	// the given kind. ChildAdded replays the existing children first.
	ObserveChildren(ctx context.Context, path string, kind ChildEvent) (<-chan Snapshot, error)

	// QueryChildren observes the children of path whose value at the
	// orderBy field equals equalTo.
	QueryChildren(ctx context.Context, path, orderBy, equalTo string) (*Query, error)

	// ApplyPatch writes every key of the patch atomically.
	ApplyPatch(ctx context.Context, patch model.Patch) error
}

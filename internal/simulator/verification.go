package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
)

// verify waits until the recorded progress matches the expected
// completion per task, or the settle timeout passes, then fills the
// verification counters.
func verify(ctx context.Context, store *feed.Memory, expected map[string]bool, stats *Stats, timeout time.Duration) error {
	for _, solved := range expected {
		if solved {
			stats.ExpectedCompletions++
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		recorded, missing, spurious, err := scan(ctx, store, expected)
		if err != nil {
			return fmt.Errorf("verification: %w", err)
		}
		if (missing == 0 && spurious == 0) || time.Now().After(deadline) {
			stats.RecordedCompletions = recorded
			stats.MissingCompletions = missing
			stats.SpuriousCompletions = spurious
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

// scan compares every expected progress path against the feed. A task
// counts as missing when a completion should be recorded and is not,
// and as spurious when the opposite holds.
func scan(ctx context.Context, store *feed.Memory, expected map[string]bool) (recorded, missing, spurious int, err error) {
	for path, solved := range expected {
		snap, verr := store.Value(ctx, path)
		if verr != nil {
			return 0, 0, 0, verr
		}
		completed := string(snap.Value) == "true"
		if completed {
			recorded++
		}
		switch {
		case solved && !completed:
			missing++
		case !solved && completed:
			spurious++
		}
	}
	return recorded, missing, spurious, nil
}

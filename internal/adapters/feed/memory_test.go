package feed_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func recv(t *testing.T, ch <-chan feed.Snapshot) feed.Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return feed.Snapshot{}
}

func noRecv(ch <-chan feed.Snapshot, wait time.Duration) bool {
	select {
	case <-ch:
		return false
	case <-time.After(wait):
		return true
	}
}

func TestMemoryValues(t *testing.T) {
	Convey("Given an in-memory feed", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		m := feed.NewMemory()
		defer m.Close()

		Convey("When observing a value path", func() {
			ch, err := m.ObserveValue(ctx, "tasks/e1")
			So(err, ShouldBeNil)

			Convey("Then the current (absent) snapshot is replayed", func() {
				s := recv(t, ch)
				So(s.Key, ShouldEqual, "e1")
				So(s.Exists(), ShouldBeFalse)
			})

			Convey("Then writes below the path re-emit the whole subtree", func() {
				recv(t, ch) // initial

				So(m.Set(ctx, "tasks/e1/t1", map[string]any{"textResponse": "x"}), ShouldBeNil)
				s := recv(t, ch)
				var tasks model.TaskSet
				So(s.Decode(&tasks), ShouldBeNil)
				So(tasks["t1"].TextResponse, ShouldEqual, "x")

				So(m.Set(ctx, "tasks/e1/t2/archived", true), ShouldBeNil)
				s = recv(t, ch)
				tasks = model.TaskSet{}
				So(s.Decode(&tasks), ShouldBeNil)
				So(len(tasks), ShouldEqual, 2)
				So(tasks["t2"].Archived, ShouldBeTrue)
			})

			Convey("Then an identical write does not re-emit", func() {
				recv(t, ch)
				So(m.Set(ctx, "tasks/e1", map[string]any{"t1": map[string]any{"archived": true}}), ShouldBeNil)
				recv(t, ch)
				So(m.Set(ctx, "tasks/e1/t1/archived", true), ShouldBeNil)
				So(noRecv(ch, 100*time.Millisecond), ShouldBeTrue)
			})

			Convey("Then writing nil removes the subtree", func() {
				recv(t, ch)
				So(m.Set(ctx, "tasks/e1", map[string]any{"t1": map[string]any{"archived": true}}), ShouldBeNil)
				recv(t, ch)
				So(m.Set(ctx, "tasks/e1", nil), ShouldBeNil)
				s := recv(t, ch)
				So(s.Exists(), ShouldBeFalse)
			})
		})

		Convey("When reading a value once", func() {
			So(m.Set(ctx, "progress/e1/bob/t1/completed", true), ShouldBeNil)
			s, err := m.Value(ctx, "progress/e1/bob")
			So(err, ShouldBeNil)

			var p model.ParticipantProgress
			So(s.Decode(&p), ShouldBeNil)
			So(p["t1"].Completed, ShouldBeTrue)
		})

		Convey("When the feed is closed", func() {
			So(m.Close(), ShouldBeNil)
			_, err := m.ObserveValue(ctx, "tasks/e1")
			So(err, ShouldEqual, feed.ErrClosed)
			So(m.Set(ctx, "x", 1), ShouldEqual, feed.ErrClosed)
		})

		Convey("When a path is malformed", func() {
			_, err := m.ObserveValue(ctx, "//")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMemoryChildren(t *testing.T) {
	Convey("Given an in-memory feed with participants", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		m := feed.NewMemory(feed.WithSeed(model.Patch{
			"participants/e1/alice": map[string]any{"name": "Alice"},
		}))
		defer m.Close()

		Convey("When observing child additions", func() {
			added, err := m.ObserveChildren(ctx, "participants/e1", feed.ChildAdded)
			So(err, ShouldBeNil)

			Convey("Then existing children are replayed", func() {
				s := recv(t, added)
				So(s.Key, ShouldEqual, "alice")
			})

			Convey("Then later joins are emitted", func() {
				recv(t, added)
				So(m.Set(ctx, "participants/e1/bob", map[string]any{"name": "Bob"}), ShouldBeNil)
				s := recv(t, added)
				So(s.Key, ShouldEqual, "bob")
			})

			Convey("Then changes to an existing child are not added again", func() {
				recv(t, added)
				So(m.Set(ctx, "participants/e1/alice/name", "Alice B"), ShouldBeNil)
				So(noRecv(added, 100*time.Millisecond), ShouldBeTrue)
			})
		})

		Convey("When observing child changes and removals", func() {
			changed, err := m.ObserveChildren(ctx, "participants/e1", feed.ChildChanged)
			So(err, ShouldBeNil)
			removed, err := m.ObserveChildren(ctx, "participants/e1", feed.ChildRemoved)
			So(err, ShouldBeNil)

			So(m.Set(ctx, "participants/e1/alice/name", "Alice B"), ShouldBeNil)
			s := recv(t, changed)
			So(s.Key, ShouldEqual, "alice")

			So(m.Set(ctx, "participants/e1/alice", nil), ShouldBeNil)
			s = recv(t, removed)
			So(s.Key, ShouldEqual, "alice")
			So(s.Exists(), ShouldBeTrue) // removal carries the old value
		})

		Convey("When the observer context ends", func() {
			obsCtx, obsCancel := context.WithCancel(ctx)
			added, err := m.ObserveChildren(obsCtx, "participants/e1", feed.ChildAdded)
			So(err, ShouldBeNil)
			recv(t, added)
			obsCancel()

			Convey("Then the channel closes", func() {
				select {
				case _, ok := <-added:
					So(ok, ShouldBeFalse)
				case <-time.After(2 * time.Second):
					So("timeout", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestMemoryQuery(t *testing.T) {
	Convey("Given events owned by two users", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		m := feed.NewMemory(feed.WithSeed(model.Patch{
			"events/e1": map[string]any{"name": "Go 101", "owner": map[string]any{"publicId": "alice"}},
			"events/e2": map[string]any{"name": "Rust 101", "owner": map[string]any{"publicId": "bob"}},
		}))
		defer m.Close()

		Convey("When querying events by owner", func() {
			q, err := m.QueryChildren(ctx, "events", "owner/publicId", "alice")
			So(err, ShouldBeNil)

			Convey("Then only matching children are replayed and synced closes", func() {
				s := recv(t, q.Added)
				So(s.Key, ShouldEqual, "e1")
				var details model.EventDetails
				So(s.Decode(&details), ShouldBeNil)
				So(details.Name, ShouldEqual, "Go 101")

				select {
				case <-q.Synced:
				case <-time.After(time.Second):
					So("synced never closed", ShouldBeEmpty)
				}
			})

			Convey("Then a new matching event is emitted", func() {
				recv(t, q.Added)
				So(m.Set(ctx, "events/e3", map[string]any{"name": "Later", "owner": map[string]any{"publicId": "alice"}}), ShouldBeNil)
				s := recv(t, q.Added)
				So(s.Key, ShouldEqual, "e3")
			})

			Convey("Then a non-matching event is not emitted", func() {
				recv(t, q.Added)
				So(m.Set(ctx, "events/e4", map[string]any{"owner": map[string]any{"publicId": "carol"}}), ShouldBeNil)
				So(noRecv(q.Added, 100*time.Millisecond), ShouldBeTrue)
			})

			Convey("Then removing a matching event emits on Removed", func() {
				recv(t, q.Added)
				So(m.Set(ctx, "events/e1", nil), ShouldBeNil)
				s := recv(t, q.Removed)
				So(s.Key, ShouldEqual, "e1")
			})
		})
	})
}

func TestMemoryQuerySyncOrder(t *testing.T) {
	Convey("Given several events matching one owner", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		m := feed.NewMemory(feed.WithSeed(model.Patch{
			"events/e1": map[string]any{"name": "One", "owner": map[string]any{"publicId": "alice"}},
			"events/e2": map[string]any{"name": "Two", "owner": map[string]any{"publicId": "alice"}},
			"events/e3": map[string]any{"name": "Three", "owner": map[string]any{"publicId": "alice"}},
		}))
		defer m.Close()

		Convey("Then Synced never wins a select before the backlog arrived", func() {
			// a fresh subscription per trial exercises the scheduling of
			// the backlog delivery against the sync signal
			for trial := 0; trial < 50; trial++ {
				q, err := m.QueryChildren(ctx, "events", "owner/publicId", "alice")
				So(err, ShouldBeNil)

				got := 0
			loop:
				for {
					select {
					case <-q.Synced:
						break loop
					case _, ok := <-q.Added:
						if !ok {
							break loop
						}
						got++
					case <-time.After(time.Second):
						break loop
					}
				}
				So(got, ShouldEqual, 3)
			}
		})
	})
}

func TestSnapshotDecode(t *testing.T) {
	Convey("Given snapshots", t, func() {
		Convey("Then absent ones decode as a no-op", func() {
			var v map[string]any
			s := feed.Snapshot{Key: "x"}
			So(s.Exists(), ShouldBeFalse)
			So(s.Decode(&v), ShouldBeNil)
			So(v, ShouldBeNil)
		})

		Convey("Then JSON null counts as absent", func() {
			s := feed.Snapshot{Key: "x", Value: json.RawMessage("null")}
			So(s.Exists(), ShouldBeFalse)
		})

		Convey("Then present ones decode into the target", func() {
			s := feed.Snapshot{Key: "x", Value: json.RawMessage(`{"completed":true}`)}
			var p model.TaskProgress
			So(s.Decode(&p), ShouldBeNil)
			So(p.Completed, ShouldBeTrue)
		})
	})
}

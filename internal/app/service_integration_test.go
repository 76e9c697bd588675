package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	service "github.com/singpath/progressd/internal/app"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingLogger counts the per-event lines list mode reports.
type recordingLogger struct {
	mu     sync.Mutex
	events int
}

func (l *recordingLogger) record(msg string) {
	if msg != "event" {
		return
	}
	l.mu.Lock()
	l.events++
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...logger.Field) { l.record(msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...logger.Field)  { l.record(msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...logger.Field)  { l.record(msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...logger.Field) { l.record(msg) }
func (l *recordingLogger) Named(string) logger.Logger                             { return l }
func (l *recordingLogger) With(...logger.Field) logger.Logger                     { return l }

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events
}

func awaitValue(store *feed.Memory, path, want string, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		snap, err := store.Value(context.Background(), path)
		if err == nil && string(snap.Value) == want {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service over a seeded feed", t, func() {
		store := feed.NewMemory(feed.WithSeed(model.Patch{
			"events/E1": map[string]any{
				"name":  "Bootcamp",
				"owner": map[string]any{"publicId": "alice"},
			},
			"tasks/E1/t1":         map[string]any{"title": "essay", "textResponse": "essay"},
			"participants/E1/bob": map[string]any{"name": "Bob"},
		}))
		defer store.Close()

		svc := service.New(store,
			service.WithOwner("alice"),
			service.WithFlushInterval(30*time.Millisecond),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("A submitted solution ends up as recorded progress", func() {
			ctx := context.Background()
			So(store.Set(ctx, "solutions/E1/bob/t1", "my essay"), ShouldBeNil)

			So(awaitValue(store, "progress/E1/bob/t1/completed", "true", 3*time.Second), ShouldBeTrue)

			Convey("And removing it revokes the completion", func() {
				// let the recorded completion propagate back into the
				// monitor's view before revoking
				time.Sleep(100 * time.Millisecond)
				So(store.Set(ctx, "solutions/E1/bob/t1", nil), ShouldBeNil)
				So(awaitValue(store, "progress/E1/bob/t1/completed", "false", 3*time.Second), ShouldBeTrue)
			})
		})

		Convey("Starting twice is a no-op", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Stats()["started"], ShouldEqual, true)
		})
	})

	Convey("Given a service in list mode", t, func() {
		store := feed.NewMemory(feed.WithSeed(model.Patch{
			"events/E1": map[string]any{
				"name":  "Bootcamp",
				"owner": map[string]any{"publicId": "alice"},
			},
			"events/E2": map[string]any{
				"name":  "Workshop",
				"owner": map[string]any{"publicId": "alice"},
			},
			"events/E3": map[string]any{
				"name":  "Retreat",
				"owner": map[string]any{"publicId": "alice"},
			},
			"events/E4": map[string]any{
				"name":  "Not mine",
				"owner": map[string]any{"publicId": "carol"},
			},
		}))
		defer store.Close()

		log := &recordingLogger{}
		svc := service.New(store,
			service.WithOwner("alice"),
			service.WithListOnly(true),
			service.WithLogger(log),
		)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then it reports every existing event and finishes", func() {
			finished := make(chan struct{})
			go func() {
				svc.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(3 * time.Second):
				So("list mode never finished", ShouldBeEmpty)
			}
			So(log.count(), ShouldEqual, 3)
			svc.Stop()
		})
	})
}

package cache_test

import (
	"testing"
	"time"

	"github.com/singpath/progressd/pkg/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCache(t *testing.T) {
	Convey("Given a cache with a controllable clock", t, func() {
		now := time.Unix(1000, 0)
		clock := func() time.Time { return now }
		c := cache.New(cache.WithTTL(time.Minute), cache.WithClock(clock))

		Convey("When a value is stored", func() {
			c.Put("k", 42)

			Convey("Then it is visible before the TTL elapses", func() {
				v, ok := c.Get("k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 42)

				now = now.Add(59 * time.Second)
				_, ok = c.Get("k")
				So(ok, ShouldBeTrue)
			})

			Convey("Then it expires after the TTL", func() {
				now = now.Add(61 * time.Second)
				_, ok := c.Get("k")
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("Then Put refreshes the expiry", func() {
				now = now.Add(50 * time.Second)
				c.Put("k", 43)
				now = now.Add(50 * time.Second)
				v, ok := c.Get("k")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 43)
			})
		})

		Convey("When entries are removed", func() {
			c.Put("a", 1)
			c.Put("b", 2)
			c.Remove("a")

			Convey("Then only the removed entry is gone", func() {
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				_, ok = c.Get("b")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When GC runs over a mixed population", func() {
			c.Put("old", 1)
			now = now.Add(2 * time.Minute)
			c.Put("fresh", 2)
			c.GC()

			Convey("Then only stale entries are swept", func() {
				So(c.Len(), ShouldEqual, 1)
				_, ok := c.Get("fresh")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a missing key is read", func() {
			_, ok := c.Get("missing")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given request signatures", t, func() {
		Convey("Then parameters are sorted into a stable key", func() {
			a := cache.Key("https://example.com/u/1", map[string]string{"b": "2", "a": "1"})
			b := cache.Key("https://example.com/u/1", map[string]string{"a": "1", "b": "2"})
			So(a, ShouldEqual, b)
			So(a, ShouldEqual, "https://example.com/u/1:a=1:b=2")
		})

		Convey("Then different urls or params produce different keys", func() {
			a := cache.Key("https://example.com/u/1", nil)
			b := cache.Key("https://example.com/u/2", nil)
			So(a, ShouldNotEqual, b)

			c := cache.Key("https://example.com/u/1", map[string]string{"x": "1"})
			So(a, ShouldNotEqual, c)
		})
	})
}

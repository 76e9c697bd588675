package config_test

import (
	"testing"
	"time"

	"github.com/singpath/progressd/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.OpsAddr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ListOnly, convey.ShouldBeFalse)
			convey.So(cfg.FlushIntervalMS, convey.ShouldEqual, 500)
			convey.So(cfg.RetryAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.CacheTTLMS, convey.ShouldEqual, 60_000)
		})

		convey.Convey("Then the duration accessors should convert", func() {
			convey.So(cfg.FlushInterval(), convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.ProviderTimeout(), convey.ShouldEqual, 10*time.Second)
		})

		convey.Convey("Then the retry curve should grow cubically", func() {
			b := cfg.RetryBackoff()
			convey.So(b.Delay(1), convey.ShouldEqual, time.Second)
			convey.So(b.Delay(2), convey.ShouldEqual, 8*time.Second)
			convey.So(b.Delay(3), convey.ShouldEqual, 27*time.Second)
		})
	})
}

package providers

import (
	"net/http"
	"time"

	"github.com/singpath/progressd/pkg/cache"
	"github.com/singpath/progressd/pkg/logger"
)

const defaultTimeout = 10 * time.Second

type config struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	log     logger.Logger
}

func newOptions() config {
	return config{
		client: &http.Client{Timeout: defaultTimeout},
		cache:  cache.New(),
		log:    logger.Get(),
	}
}

// Option applies a configuration option to a provider.
type Option func(*config)

// WithBaseURL overrides the provider endpoint, mostly for tests.
func WithBaseURL(base string) Option {
	return func(c *config) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		if client != nil {
			c.client = client
		}
	}
}

// WithCache sets the TTL cache requests go through.
func WithCache(c2 *cache.Cache) Option {
	return func(c *config) {
		if c2 != nil {
			c.cache = c2
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

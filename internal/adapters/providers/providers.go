// Package providers implements the third-party achievement lookups.
//
// Each provider fetches badge data over HTTP behind a process-wide TTL
// cache keyed by request signature. Cached entries are never invalidated
// early: callers may observe stale results within the TTL window.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/cache"
	"github.com/singpath/progressd/pkg/metrics"
)

// BadgeFetcher returns the normalized badges a user has earned on one
// third-party service.
type BadgeFetcher interface {
	FetchBadges(ctx context.Context, userID string) ([]model.Badge, error)
}

// CatalogSource provides one-shot reads of the tracked badge catalogs.
// The feed adapter satisfies it.
type CatalogSource interface {
	Value(ctx context.Context, path string) (feed.Snapshot, error)
}

// getJSON performs a cached GET and decodes the body into target.
func getJSON(ctx context.Context, client *http.Client, c *cache.Cache, service, rawURL string, params map[string]string, target any) error {
	key := cache.Key(rawURL, params)
	if body, ok := c.Get(key); ok {
		metrics.RecordProviderCacheHit(service)
		return json.Unmarshal(body.([]byte), target)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	metrics.RecordProviderRequest(service, latency)
	if err != nil {
		metrics.RecordProviderError(service)
		return fmt.Errorf("%s request: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordProviderError(service)
		return fmt.Errorf("%w: %s returned %d", ErrUpstreamStatus, service, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordProviderError(service)
		return fmt.Errorf("%s body: %w", service, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		metrics.RecordProviderError(service)
		return fmt.Errorf("%s decode: %w", service, err)
	}
	c.Put(key, body)
	return nil
}

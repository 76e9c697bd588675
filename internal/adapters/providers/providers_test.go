package providers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singpath/progressd/internal/adapters/feed"
	"github.com/singpath/progressd/internal/adapters/providers"
	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/cache"
)

func catalogFeed(t *testing.T) *feed.Memory {
	t.Helper()
	return feed.NewMemory(feed.WithSeed(model.Patch{
		"badges/codeCombat": map[string]any{
			"dungeons-of-kithgard": map[string]any{
				"id":      "dungeons-of-kithgard",
				"name":    "Dungeons of Kithgard",
				"url":     "http://codecombat.com/play/level/dungeons-of-kithgard",
				"iconUrl": "http://codecombat.com/icon.png",
			},
		},
	}))
}

func TestCodeCombatFetchBadges(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/db/user/cc1/level.sessions", r.URL.Path)
		assert.Equal(t, "state.complete,levelID,levelName", r.URL.Query().Get("project"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"levelID":"dungeons-of-kithgard","levelName":"Dungeons of Kithgard","state":{"complete":true}},
			{"levelID":"untracked-level","state":{"complete":true}},
			{"levelID":"dungeons-of-kithgard","state":{"complete":false}}
		]`))
	}))
	defer srv.Close()

	store := catalogFeed(t)
	defer store.Close()

	p := providers.NewCodeCombat(store,
		providers.WithBaseURL(srv.URL),
		providers.WithCache(cache.New()),
	)

	badges, err := p.FetchBadges(context.Background(), "cc1")
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "dungeons-of-kithgard", badges[0].ID)
	assert.Equal(t, "Dungeons of Kithgard", badges[0].Name)

	// second fetch is served from the cache
	_, err = p.FetchBadges(context.Background(), "cc1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCodeCombatMissingUserID(t *testing.T) {
	store := catalogFeed(t)
	defer store.Close()

	p := providers.NewCodeCombat(store)
	_, err := p.FetchBadges(context.Background(), "")
	assert.ErrorIs(t, err, providers.ErrMissingUserID)
}

func TestCodeCombatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := catalogFeed(t)
	defer store.Close()

	p := providers.NewCodeCombat(store, providers.WithBaseURL(srv.URL))
	_, err := p.FetchBadges(context.Background(), "cc1")
	assert.ErrorIs(t, err, providers.ErrUpstreamStatus)
}

func TestCodeSchoolFetchBadges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/cs1.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"badges":[
			{"name":"Level 1 Complete","badge":"https://img/1.png","course_url":"https://www.codeschool.com/courses/front-end-foundations"},
			{"name":"Old Level","badge":"https://img/2.png","course_url":"http://www.codeschool.com/courses/try-git"},
			{"name":"Broken","badge":"https://img/3.png","course_url":"https://example.com/elsewhere"},
			{"name":"No URL","badge":"https://img/4.png","course_url":""}
		]}`))
	}))
	defer srv.Close()

	p := providers.NewCodeSchool(providers.WithBaseURL(srv.URL))

	badges, err := p.FetchBadges(context.Background(), "cs1")
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, "front-end-foundations-level-1-complete", badges[0].ID)
	assert.Equal(t, "try-git-old-level", badges[1].ID)
	assert.Equal(t, "https://img/1.png", badges[0].IconURL)
}

func TestCodeSchoolMissingUserID(t *testing.T) {
	p := providers.NewCodeSchool()
	badges, err := p.FetchBadges(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, badges)
}

func TestCacheExpiryTriggersRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"badges":[]}`))
	}))
	defer srv.Close()

	now := time.Unix(0, 0)
	c := cache.New(cache.WithTTL(time.Minute), cache.WithClock(func() time.Time { return now }))
	p := providers.NewCodeSchool(providers.WithBaseURL(srv.URL), providers.WithCache(c))

	_, err := p.FetchBadges(context.Background(), "cs1")
	require.NoError(t, err)
	_, err = p.FetchBadges(context.Background(), "cs1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	now = now.Add(2 * time.Minute)
	_, err = p.FetchBadges(context.Background(), "cs1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

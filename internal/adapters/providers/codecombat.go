package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/cache"
	"github.com/singpath/progressd/pkg/logger"
)

const defaultCodeCombatBase = "https://codecombat.com"

// levelSession is one entry of the Code Combat level.sessions payload.
type levelSession struct {
	LevelID   string `json:"levelID"`
	LevelName string `json:"levelName"`
	State     struct {
		Complete bool `json:"complete"`
	} `json:"state"`
}

// CodeCombat fetches a user's completed level sessions and maps them to
// tracked badges via the badge catalog stored on the feed.
type CodeCombat struct {
	base    string
	client  *http.Client
	cache   *cache.Cache
	catalog CatalogSource
	log     logger.Logger

	mu        sync.Mutex
	badges    map[string]model.Badge
	hasBadges bool
}

// NewCodeCombat creates the Code Combat provider.
func NewCodeCombat(catalog CatalogSource, opts ...Option) *CodeCombat {
	cfg := newOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CodeCombat{
		base:    firstNonEmpty(cfg.baseURL, defaultCodeCombatBase),
		client:  cfg.client,
		cache:   cfg.cache,
		catalog: catalog,
		log:     cfg.log.Named("codecombat"),
	}
}

// FetchBadges returns the tracked badges the user completed. The user id
// must be set: the caller only reaches here with a resolved profile.
func (p *CodeCombat) FetchBadges(ctx context.Context, userID string) ([]model.Badge, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	available, err := p.availableBadges(ctx)
	if err != nil {
		return nil, err
	}

	var sessions []levelSession
	url := fmt.Sprintf("%s/db/user/%s/level.sessions", p.base, userID)
	params := map[string]string{"project": "state.complete,levelID,levelName"}
	if err := getJSON(ctx, p.client, p.cache, model.ServiceCodeCombat, url, params, &sessions); err != nil {
		return nil, err
	}

	earned := make([]model.Badge, 0, len(sessions))
	for _, s := range sessions {
		if s.LevelID == "" || !s.State.Complete {
			continue
		}
		badge, tracked := available[s.LevelID]
		if !tracked {
			continue
		}
		earned = append(earned, badge)
	}
	return earned, nil
}

// availableBadges reads the tracked badge catalog once and memoizes it.
func (p *CodeCombat) availableBadges(ctx context.Context) (map[string]model.Badge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasBadges {
		return p.badges, nil
	}

	snap, err := p.catalog.Value(ctx, model.BadgeCatalogPath(model.ServiceCodeCombat))
	if err != nil {
		return nil, fmt.Errorf("badge catalog: %w", err)
	}
	catalog := make(map[string]model.Badge)
	if err := snap.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("badge catalog: %w", err)
	}
	p.badges = catalog
	p.hasBadges = true
	return p.badges, nil
}

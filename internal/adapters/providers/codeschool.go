package providers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/singpath/progressd/internal/domain/model"
	"github.com/singpath/progressd/pkg/cache"
	"github.com/singpath/progressd/pkg/logger"
)

const defaultCodeSchoolBase = "https://www.codeschool.com"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// codeSchoolProfile is the user payload returned by the Code School API.
type codeSchoolProfile struct {
	Badges []codeSchoolBadge `json:"badges"`
}

type codeSchoolBadge struct {
	Name      string `json:"name"`
	Badge     string `json:"badge"`
	CourseURL string `json:"course_url"`
}

// CodeSchool fetches a user's profile badges and normalizes their ids
// from the course url and badge name.
type CodeSchool struct {
	base   string
	client *http.Client
	cache  *cache.Cache
	log    logger.Logger
}

// NewCodeSchool creates the Code School provider.
func NewCodeSchool(opts ...Option) *CodeSchool {
	cfg := newOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CodeSchool{
		base:   firstNonEmpty(cfg.baseURL, defaultCodeSchoolBase),
		client: cfg.client,
		cache:  cfg.cache,
		log:    cfg.log.Named("codeschool"),
	}
}

// FetchBadges returns the user's normalized badges. A missing user id
// resolves to an empty list: the participant simply has not registered.
func (p *CodeSchool) FetchBadges(ctx context.Context, userID string) ([]model.Badge, error) {
	if userID == "" {
		return []model.Badge{}, nil
	}

	var profile codeSchoolProfile
	url := fmt.Sprintf("%s/users/%s.json", p.base, userID)
	if err := getJSON(ctx, p.client, p.cache, model.ServiceCodeSchool, url, nil, &profile); err != nil {
		return nil, err
	}

	badges := make([]model.Badge, 0, len(profile.Badges))
	for _, b := range profile.Badges {
		id := p.badgeID(ctx, b.CourseURL, b.Name)
		if id == "" {
			continue
		}
		badges = append(badges, model.Badge{
			ID:      id,
			Name:    b.Name,
			URL:     b.CourseURL,
			IconURL: b.Badge,
		})
	}
	return badges, nil
}

// badgeID derives a stable badge id from the badge course url and name.
// Badges with unusable urls are skipped rather than failing the fetch.
func (p *CodeSchool) badgeID(ctx context.Context, courseURL, name string) string {
	if courseURL == "" {
		p.log.Error(ctx, "badge has no course url", logger.String("name", name))
		return ""
	}

	var course string
	switch {
	case strings.HasPrefix(courseURL, "http://www.codeschool.com/courses/"):
		course = courseURL[len("http://www.codeschool.com/courses/"):]
	case strings.HasPrefix(courseURL, "https://www.codeschool.com/courses/"):
		course = courseURL[len("https://www.codeschool.com/courses/"):]
	default:
		p.log.Error(ctx, "badge course url is not a codeschool course",
			logger.String("url", courseURL),
		)
		return ""
	}

	id := strings.ToLower(course + "-" + name)
	return nonAlnum.ReplaceAllString(id, "-")
}

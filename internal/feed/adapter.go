package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-resty/resty/v2"

	"github.com/bilgisen/newsauto/internal/models"
)

// ErrUnsupportedSourceType is returned for a source whose type has no adapter
var ErrUnsupportedSourceType = errors.New("unsupported source type")

// Adapter fetches and normalizes items for one source type.
//
// ParseItem returns nil, nil when the raw item should be skipped without
// counting as a failure (stickied posts, dead stories, filtered scores).
type Adapter interface {
	FetchRaw(ctx context.Context, src models.ContentSource) ([]models.RawItem, error)
	ParseItem(src models.ContentSource, raw models.RawItem) (*models.ParsedItem, error)
}

// Registry maps source types to adapters
type Registry struct {
	adapters map[models.SourceType]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.SourceType]Adapter)}
}

// NewDefaultRegistry registers the built-in adapters against their public endpoints
func NewDefaultRegistry(client *resty.Client, parser *Parser) *Registry {
	r := NewRegistry()
	r.Register(models.SourceRSS, NewRSSAdapter(client, parser))
	r.Register(models.SourceHackerNews, NewHackerNewsAdapter(client, DefaultHackerNewsBaseURL))
	r.Register(models.SourceReddit, NewRedditAdapter(client, DefaultRedditBaseURL))
	r.Register(models.SourceDevTo, NewDevToAdapter(client, DefaultDevToBaseURL))
	r.Register(models.SourceGitHub, NewGitHubAdapter(client, DefaultGitHubTrendingURL))
	return r
}

// Register installs or replaces the adapter for t
func (r *Registry) Register(t models.SourceType, a Adapter) {
	r.adapters[t] = a
}

// Get returns the adapter for t or ErrUnsupportedSourceType
func (r *Registry) Get(t models.SourceType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSourceType, t)
	}
	return a, nil
}

// Types lists the registered source types in sorted order
func (r *Registry) Types() []models.SourceType {
	out := make([]models.SourceType, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

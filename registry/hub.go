// Package registry suggests container image names by searching Docker Hub.
//
// Hub implements compose.ImageSuggester: the completion router hands it the
// partial image reference typed after `image:` and gets back value items
// ready for the editor.
package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/lo"
	"github.com/teranos/composels/compose"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/internal/httpclient"
	"github.com/teranos/composels/version"
	"go.uber.org/zap"
)

const searchPath = "/v2/search/repositories/"

// Repository is one Docker Hub search result.
type Repository struct {
	Name        string `json:"repo_name"`
	Description string `json:"short_description"`
	StarCount   int    `json:"star_count"`
	IsOfficial  bool   `json:"is_official"`
	IsAutomated bool   `json:"is_automated"`
}

type searchResponse struct {
	Count   int          `json:"count"`
	Results []Repository `json:"results"`
}

// DefaultCacheSize bounds the number of cached queries when Options leaves
// CacheSize unset.
const DefaultCacheSize = 256

// Options configures a Hub.
type Options struct {
	BaseURL   string
	PageSize  int
	CacheTTL  time.Duration // 0 disables caching
	CacheSize int
	Logger    *zap.SugaredLogger
}

// Hub searches a Docker Hub compatible index.
type Hub struct {
	client   *httpclient.Client
	baseURL  string
	pageSize int
	ttl      time.Duration
	log      *zap.SugaredLogger

	// nil when caching is disabled. Every keystroke after `image:` is a new
	// query, so entries are capped and swept once they expire.
	cache *expirable.LRU[string, []Repository]
}

// NewHub creates a Hub that issues requests through client.
func NewHub(client *httpclient.Client, opts Options) *Hub {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	h := &Hub{
		client:   client,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		pageSize: opts.PageSize,
		ttl:      opts.CacheTTL,
		log:      opts.Logger,
	}
	if h.ttl > 0 {
		h.cache = expirable.NewLRU[string, []Repository](opts.CacheSize, nil, h.ttl)
	}
	return h
}

// New builds the image suggester described by cfg: a Hub, or Disabled when
// registry lookups are turned off.
func New(cfg config.RegistryConfig, log *zap.SugaredLogger) compose.ImageSuggester {
	if !cfg.Enabled {
		return Disabled{}
	}
	client := httpclient.New(httpclient.Options{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         "composels/" + version.ServerVersion(),
	})
	return NewHub(client, Options{
		BaseURL:   cfg.BaseURL,
		PageSize:  cfg.PageSize,
		CacheTTL:  time.Duration(cfg.CacheTTLSeconds) * time.Second,
		CacheSize: cfg.CacheSize,
		Logger:    log,
	})
}

// SuggestImages returns one value item per repository matching partial.
func (h *Hub) SuggestImages(ctx context.Context, partial string) ([]compose.CompletionItem, error) {
	query := QueryFor(partial)
	if query == "" {
		return []compose.CompletionItem{}, nil
	}

	repos, err := h.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "image search for %q", query)
	}
	return lo.Map(repos, func(r Repository, _ int) compose.CompletionItem {
		return compose.CompletionItem{
			Label:         r.Name,
			Kind:          compose.KindValue,
			InsertText:    r.Name,
			Detail:        Detail(r),
			Documentation: r.Description,
		}
	}), nil
}

// Search queries the index, serving repeated queries from the cache until
// their entry expires. Failed searches are not cached.
func (h *Hub) Search(ctx context.Context, query string) ([]Repository, error) {
	if repos, ok := h.cached(query); ok {
		h.log.Debugw("Registry cache hit", "query", query, "results", len(repos))
		return repos, nil
	}

	u := h.baseURL + searchPath + "?" + url.Values{
		"query":     {query},
		"page_size": {strconv.Itoa(h.pageSize)},
	}.Encode()

	start := time.Now()
	var resp searchResponse
	if err := h.client.GetJSON(ctx, u, &resp); err != nil {
		h.log.Warnw("Registry search failed", "query", query, "error", err)
		return nil, err
	}
	h.log.Debugw("Registry search",
		"query", query,
		"results", len(resp.Results),
		"duration", time.Since(start),
	)

	h.store(query, resp.Results)
	return resp.Results, nil
}

func (h *Hub) cached(query string) ([]Repository, bool) {
	if h.cache == nil {
		return nil, false
	}
	return h.cache.Get(query)
}

func (h *Hub) store(query string, repos []Repository) {
	if h.cache == nil {
		return
	}
	h.cache.Add(query, repos)
}

// Close releases idle connections held by the Hub's HTTP client.
func (h *Hub) Close() {
	h.client.CloseIdleConnections()
}

// QueryFor turns a partial image reference into a search query: surrounding
// whitespace, a digest and a trailing tag are dropped. A colon that belongs
// to a registry host (before the last slash) is kept.
//
//	ubuntu:14             -> ubuntu
//	library/redis:7-alpine -> library/redis
//	localhost:5000/app    -> localhost:5000/app
func QueryFor(partial string) string {
	q := strings.TrimSpace(partial)
	if i := strings.Index(q, "@"); i >= 0 {
		q = q[:i]
	}
	if i := strings.LastIndex(q, ":"); i > strings.LastIndex(q, "/") {
		q = q[:i]
	}
	return q
}

// Detail renders the badges and star count shown next to a suggestion,
// e.g. "Official 1 star" or "Automated 12 stars".
func Detail(r Repository) string {
	var badges []string
	if r.IsAutomated {
		badges = append(badges, "Automated")
	}
	if r.IsOfficial {
		badges = append(badges, "Official")
	}
	detail := strings.Join(badges, " ")
	switch {
	case r.StarCount == 1:
		detail += " 1 star"
	case r.StarCount > 1:
		detail += fmt.Sprintf(" %d stars", r.StarCount)
	}
	return strings.TrimSpace(detail)
}

// Disabled is the suggester used when registry lookups are turned off.
type Disabled struct{}

// SuggestImages always returns an empty list.
func (Disabled) SuggestImages(context.Context, string) ([]compose.CompletionItem, error) {
	return []compose.CompletionItem{}, nil
}

package fetch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"threadscope/internal/cache"
	"threadscope/internal/metrics"
	"threadscope/internal/model"
	"threadscope/internal/reddit"
	"threadscope/internal/resolve"
)

// CategoryOptions tunes a CategoryCache.
type CategoryOptions struct {
	// Store, when set, keeps the list across processes for TTL.
	Store   cache.Cache
	TTL     time.Duration
	Metrics *metrics.Fetch
}

// CategoryCache fetches the category list at most once per process.
// Concurrent callers share one transport call; failures are not remembered.
type CategoryCache struct {
	transport Transport
	target    resolve.Target
	norm      reddit.Normalizer
	store     cache.Cache
	ttl       time.Duration
	metrics   *metrics.Fetch

	group singleflight.Group
	ch    *Channel[[]model.Category]

	mu     sync.Mutex
	cats   []model.Category
	loaded bool
	lastID uint64
}

func NewCategoryCache(t Transport, r resolve.Resolver, opts CategoryOptions) *CategoryCache {
	return &CategoryCache{
		transport: t,
		target:    r.Categories(),
		norm:      reddit.NewNormalizer(r),
		store:     opts.Store,
		ttl:       opts.TTL,
		metrics:   opts.Metrics,
		ch:        NewChannel[[]model.Category](ChannelCategories),
	}
}

// Channel publishes the cache's loading and result states.
func (c *CategoryCache) Channel() *Channel[[]model.Category] { return c.ch }

// Get returns the memoized list, fetching it if no call has succeeded yet.
func (c *CategoryCache) Get(ctx context.Context) ([]model.Category, error) {
	c.mu.Lock()
	if c.loaded {
		cats := c.cats
		c.mu.Unlock()
		return cats, nil
	}
	c.mu.Unlock()

	res := c.group.DoChan(c.target.CacheKey, func() (any, error) {
		return c.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]model.Category), nil
	}
}

func (c *CategoryCache) load(ctx context.Context) ([]model.Category, error) {
	c.mu.Lock()
	if c.loaded {
		cats := c.cats
		c.mu.Unlock()
		return cats, nil
	}
	c.lastID++
	id := c.lastID
	c.mu.Unlock()

	c.ch.begin(id)
	key := cache.Key("categories", c.target.CacheKey)

	if cats, ok := c.fromStore(ctx, key); ok {
		c.remember(id, cats)
		return cats, nil
	}

	c.metrics.Request(ChannelCategories)
	start := time.Now()
	cats, err := c.fetch(ctx)
	c.metrics.Observe(ChannelCategories, time.Since(start))
	if err != nil {
		kind := Classify(err)
		c.metrics.Error(ChannelCategories, kind.String())
		slog.Warn("fetch: categories failed", "kind", kind.String(), "error", err)
		c.ch.fail(id, kind, err)
		return nil, err
	}

	if c.store != nil {
		if b, err := json.Marshal(cats); err == nil {
			if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
				slog.Warn("fetch: cache categories", "error", err)
			}
		}
	}
	c.remember(id, cats)
	return cats, nil
}

func (c *CategoryCache) fetch(ctx context.Context) ([]model.Category, error) {
	doc, err := c.transport.FetchJSON(ctx, c.target.URL)
	if err != nil {
		return nil, err
	}
	return c.norm.NormalizeCategories(doc)
}

func (c *CategoryCache) fromStore(ctx context.Context, key string) ([]model.Category, bool) {
	if c.store == nil {
		return nil, false
	}
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("fetch: read cached categories", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var cats []model.Category
	if err := json.Unmarshal(b, &cats); err != nil {
		slog.Warn("fetch: decode cached categories", "error", err)
		return nil, false
	}
	slog.Debug("fetch: categories from cache", "count", len(cats))
	return cats, true
}

func (c *CategoryCache) remember(id uint64, cats []model.Category) {
	if cats == nil {
		cats = []model.Category{}
	}
	c.mu.Lock()
	c.cats, c.loaded = cats, true
	c.mu.Unlock()
	c.ch.succeed(id, cats)
}

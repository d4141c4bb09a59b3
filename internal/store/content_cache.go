package store

import (
	"context"
	"errors"
	"time"

	"herald/pkg/cache"
)

type ContentGetter interface {
	GetContentItem(ctx context.Context, id string) (*ContentItem, error)
}

// CachedContent fronts a ContentGetter. Misses are not cached so a post
// published after a failed lookup is found on the next call.
type CachedContent struct {
	next  ContentGetter
	cache *cache.Cache[*ContentItem]
}

func NewCachedContent(next ContentGetter, ttl time.Duration, maxEntries int, hooks cache.MetricsHooks) *CachedContent {
	return &CachedContent{
		next:  next,
		cache: cache.New[*ContentItem](cache.Options{TTL: ttl, MaxEntries: maxEntries}, hooks),
	}
}

func (c *CachedContent) GetContentItem(ctx context.Context, id string) (*ContentItem, error) {
	item, ok, err := c.cache.Get(ctx, id, func(ctx context.Context, key string) (*ContentItem, bool, error) {
		item, err := c.next.GetContentItem(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return item, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

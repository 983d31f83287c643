package taxonomy

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedFinder memoizes another Finder. Lookups are keyed by the label set,
// so order and letter case do not matter. Empty answers are not cached.
type CachedFinder struct {
	inner  Finder
	paths  pathLister
	cache  *cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

type pathLister interface {
	Path(label string) []string
}

type contextFinder interface {
	CommonAncestorContext(ctx context.Context, labels []string) string
}

// NewCachedFinder wraps inner. A non-positive ttl caches forever.
func NewCachedFinder(inner Finder, ttl time.Duration) *CachedFinder {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl*2
	}
	f := &CachedFinder{
		inner: inner,
		cache: cache.New(expiration, cleanup),
	}
	if p, ok := inner.(pathLister); ok {
		f.paths = p
	}
	return f
}

// CommonAncestor implements Finder.
func (f *CachedFinder) CommonAncestor(labels []string) string {
	return f.CommonAncestorContext(context.Background(), labels)
}

// CommonAncestorContext answers from the cache, or asks the inner finder
// with ctx when it accepts one.
func (f *CachedFinder) CommonAncestorContext(ctx context.Context, labels []string) string {
	key := cacheKey(labels)
	if v, ok := f.cache.Get(key); ok {
		if ancestor, ok := v.(string); ok {
			f.hits.Add(1)
			return ancestor
		}
	}
	f.misses.Add(1)

	// "" may be a transient remote failure
	var ancestor string
	if cf, ok := f.inner.(contextFinder); ok {
		ancestor = cf.CommonAncestorContext(ctx, labels)
	} else {
		ancestor = f.inner.CommonAncestor(labels)
	}
	if ancestor != "" {
		f.cache.SetDefault(key, ancestor)
	}
	return ancestor
}

// Path returns the root-to-label path from the local hierarchy, or nil
// when none is attached.
func (f *CachedFinder) Path(label string) []string {
	if f.paths == nil {
		return nil
	}
	return f.paths.Path(label)
}

// Stats returns cache hit and miss counts since creation.
func (f *CachedFinder) Stats() (hits, misses int64) {
	return f.hits.Load(), f.misses.Load()
}

// Size returns the number of memoized answers.
func (f *CachedFinder) Size() int {
	return f.cache.ItemCount()
}

// Flush drops every memoized answer.
func (f *CachedFinder) Flush() {
	f.cache.Flush()
}

func cacheKey(labels []string) string {
	keys := make([]string, 0, len(labels))
	for _, l := range labels {
		keys = append(keys, normalize(l))
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	return strings.Join(keys, "\x1f")
}

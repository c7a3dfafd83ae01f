package resolver

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached remembers successful resolutions for a fixed TTL. Failures are not cached.
type Cached struct {
	inner Resolver
	items *cache.Cache
}

// NewCached wraps inner with a cache. A non-positive ttl returns inner unchanged.
func NewCached(inner Resolver, ttl time.Duration) Resolver {
	if ttl <= 0 {
		return inner
	}
	return &Cached{
		inner: inner,
		items: cache.New(ttl, 2*ttl),
	}
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	key := strings.ToLower(strings.TrimSpace(host))
	if v, ok := c.items.Get(key); ok {
		return v.(netip.Addr), nil
	}
	addr, err := c.inner.Resolve(ctx, host)
	if err != nil {
		return addr, err
	}
	c.items.Set(key, addr, cache.DefaultExpiration)
	return addr, nil
}

// Flush drops every cached entry.
func (c *Cached) Flush() {
	c.items.Flush()
}

// Copyright (c) 2026 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package publish

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/metric"

	"github.com/mmuarc/hostap/internal/noob"
)

const (
	defaultResolverCacheSize = 64
	defaultResolverCacheTTL  = time.Minute
)

// Resolver looks up the server metadata of a network.
type Resolver interface {
	ServerInfo(ctx context.Context, ssid string) (*noob.ServerInfo, error)
}

type resolverStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// CachedResolver keeps resolved ServerInfo for a limited time. Failed
// lookups are not cached.
type CachedResolver struct {
	next  Resolver
	cache *expirable.LRU[string, noob.ServerInfo]
	stats resolverStats
}

type CachedResolverOption func(*cachedResolverConfig)

type cachedResolverConfig struct {
	meter metric.Meter
	size  int
	ttl   time.Duration
}

func WithCacheSize(size int) CachedResolverOption {
	return func(c *cachedResolverConfig) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithCacheTTL(ttl time.Duration) CachedResolverOption {
	return func(c *cachedResolverConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewCachedResolver(next Resolver, options ...CachedResolverOption) *CachedResolver {
	cfg := cachedResolverConfig{
		size: defaultResolverCacheSize,
		ttl:  defaultResolverCacheTTL,
	}

	for _, opt := range options {
		opt(&cfg)
	}

	r := &CachedResolver{
		next:  next,
		cache: expirable.NewLRU[string, noob.ServerInfo](cfg.size, nil, cfg.ttl),
	}

	if cfg.meter != nil {
		r.registerMetrics(cfg.meter)
	}

	return r
}

func (r *CachedResolver) ServerInfo(ctx context.Context, ssid string) (*noob.ServerInfo, error) {
	if info, ok := r.cache.Get(ssid); ok {
		r.stats.hits.Add(1)
		return &info, nil
	}

	r.stats.misses.Add(1)

	info, err := r.next.ServerInfo(ctx, ssid)
	if err != nil {
		return nil, err
	}

	r.cache.Add(ssid, *info)

	return info, nil
}

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

func WithCacheMetrics(meter metric.Meter) CachedResolverOption {
	return func(c *cachedResolverConfig) {
		c.meter = meter
	}
}

func (r *CachedResolver) registerMetrics(meter metric.Meter) {
	hits := attribute.String("type", "hits")
	misses := attribute.String("type", "misses")

	must(meter.Int64ObservableCounter("noob.server_info.cache.usage",
		metric.WithUnit("{count}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(r.stats.hits.Load(), metric.WithAttributes(hits))
			o.Observe(r.stats.misses.Load(), metric.WithAttributes(misses))

			return nil
		})))

	must(meter.Int64ObservableGauge("noob.server_info.cache.size",
		metric.WithUnit("{count}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.cache.Len()))

			return nil
		})))
}

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

package session

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type managerStats struct {
	issued   atomic.Int64
	reused   atomic.Int64
	failures atomic.Int64
	ticks    atomic.Int64
}

type loopStats struct {
	authChecks    atomic.Int64
	authFailures  atomic.Int64
	publishErrors atomic.Int64
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

func WithMetrics(meter metric.Meter) ManagerOption {
	return func(m *Manager) {
		issued := attribute.String("type", "issued")
		reused := attribute.String("type", "reused")
		failed := attribute.String("type", "failed")

		must(meter.Int64ObservableCounter("noob.attempts",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(m.stats.issued.Load(), metric.WithAttributes(issued))
				o.Observe(m.stats.reused.Load(), metric.WithAttributes(reused))
				o.Observe(m.stats.failures.Load(), metric.WithAttributes(failed))

				return nil
			})))

		must(meter.Int64ObservableCounter("noob.ticks",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(m.stats.ticks.Load())

				return nil
			})))
	}
}

func WithLoopMetrics(meter metric.Meter) LoopOption {
	return func(l *Loop) {
		checks := attribute.String("type", "checks")
		failures := attribute.String("type", "failures")

		must(meter.Int64ObservableCounter("noob.auth",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(l.stats.authChecks.Load(), metric.WithAttributes(checks))
				o.Observe(l.stats.authFailures.Load(), metric.WithAttributes(failures))

				return nil
			})))

		must(meter.Int64ObservableCounter("noob.publish.errors",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(l.stats.publishErrors.Load())

				return nil
			})))
	}
}

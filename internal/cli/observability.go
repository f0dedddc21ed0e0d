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

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/mmuarc/hostap/internal/daemon"
)

const serviceName = "noob.agent"

// telemetry carries the providers handed to the agent components.
type telemetry struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	// handler serves /metrics, nil when metrics are disabled
	handler  http.Handler
	shutdown []func(context.Context) error
}

// Shutdown flushes and stops the exporters.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	for _, fn := range t.shutdown {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

func setupTelemetry(ctx context.Context, cfg daemon.ObservabilityConfig) (*telemetry, error) {
	t := &telemetry{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}

	r, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		if err := setupMetrics(t, r); err != nil {
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
	}

	if cfg.Tracing.Enabled {
		if err := setupTracer(ctx, t, r, cfg.Tracing); err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
	}

	return t, nil
}

func setupMetrics(t *telemetry, r *resource.Resource) error {
	registry := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r),
		sdkmetric.WithReader(exporter),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	t.meterProvider = provider
	t.handler = mux
	t.shutdown = append(t.shutdown, provider.Shutdown)

	return nil
}

func setupTracer(ctx context.Context, t *telemetry, r *resource.Resource, cfg daemon.TracingConfig) error {
	if cfg.Endpoint == nil {
		return errors.New("tracing endpoint is not configured")
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint.String()))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExporter),
	)

	// Set global propagator to tracecontext (the default is no-op).
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.tracerProvider = provider
	t.shutdown = append(t.shutdown, provider.Shutdown)

	return nil
}

// Package obsv provides the OpenTelemetry-based metrics exporter for
// Equilibrium, bridged to Prometheus, adapted from the teacher's
// internal/metrics/exporter.go (which bridged to controller-runtime's
// shared registry) to a framework with no Kubernetes manager process:
// this package owns its own prometheus.Registry and HTTP handler
// instead.
package obsv

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds every counter/histogram a Context emits across reconcile
// sweeps and rules-engine evaluations.
type Metrics struct {
	Registry *prometheus.Registry

	ReconcileSweepsTotal    metric.Int64Counter
	ReconcileErrorsTotal    metric.Int64Counter
	ReconcileSweepDuration  metric.Float64Histogram
	ResourcesReconciledSize metric.Int64UpDownCounter

	RulesEvaluationsTotal metric.Int64Counter
	RulesCacheHitsTotal   metric.Int64Counter
	RulesCacheMissesTotal metric.Int64Counter
	RulesResolveDuration  metric.Float64Histogram
}

// New wires an OTel meter provider to a fresh Prometheus registry and
// creates every Equilibrium metric instrument, mirroring the teacher's
// InitOTLPExporter wiring but against a process-local registry rather
// than controller-runtime's shared one.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("equilibrium")

	m := &Metrics{Registry: registry}

	if m.ReconcileSweepsTotal, err = meter.Int64Counter("equilibrium_reconcile_sweeps_total"); err != nil {
		return nil, err
	}
	if m.ReconcileErrorsTotal, err = meter.Int64Counter("equilibrium_reconcile_errors_total"); err != nil {
		return nil, err
	}
	if m.ReconcileSweepDuration, err = meter.Float64Histogram("equilibrium_reconcile_sweep_duration_seconds"); err != nil {
		return nil, err
	}
	if m.ResourcesReconciledSize, err = meter.Int64UpDownCounter("equilibrium_resources_tracked"); err != nil {
		return nil, err
	}
	if m.RulesEvaluationsTotal, err = meter.Int64Counter("equilibrium_rules_evaluations_total"); err != nil {
		return nil, err
	}
	if m.RulesCacheHitsTotal, err = meter.Int64Counter("equilibrium_rules_cache_hits_total"); err != nil {
		return nil, err
	}
	if m.RulesCacheMissesTotal, err = meter.Int64Counter("equilibrium_rules_cache_misses_total"); err != nil {
		return nil, err
	}
	if m.RulesResolveDuration, err = meter.Float64Histogram("equilibrium_rules_resolve_duration_seconds"); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler returns the HTTP handler serving this Metrics' Prometheus
// registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordSweep records one reconcile sweep's outcome and duration.
func (m *Metrics) RecordSweep(ctx context.Context, err error, seconds float64) {
	m.ReconcileSweepsTotal.Add(ctx, 1)
	m.ReconcileSweepDuration.Record(ctx, seconds)
	if err != nil {
		m.ReconcileErrorsTotal.Add(ctx, 1)
	}
}

// RecordRulesResolve records one rules-engine Get evaluation's cache
// outcome and resolve duration.
func (m *Metrics) RecordRulesResolve(ctx context.Context, cacheHit bool, seconds float64) {
	m.RulesEvaluationsTotal.Add(ctx, 1)
	if cacheHit {
		m.RulesCacheHitsTotal.Add(ctx, 1)
	} else {
		m.RulesCacheMissesTotal.Add(ctx, 1)
	}
	m.RulesResolveDuration.Record(ctx, seconds)
}

package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	reportOutcomes      metric.Int64Counter
	uploadVerifyFailure metric.Int64Counter
	mlDuration          metric.Float64Histogram
	apiDuration         metric.Float64Histogram
	apiInflight         metric.Int64UpDownCounter
}

func NewMetrics() *Metrics {
	meter := Meter("mockly/pipeline")
	outcomes, _ := meter.Int64Counter("mockly.report.outcomes",
		metric.WithDescription("Report generation results by final status"),
	)
	verify, _ := meter.Int64Counter("mockly.upload.verification_failures",
		metric.WithDescription("Upload completions rejected by size or existence checks"),
	)
	mlDur, _ := meter.Float64Histogram("mockly.ml.duration",
		metric.WithDescription("ML scoring call latency (ms)"),
		metric.WithUnit("ms"),
	)
	apiDur, _ := meter.Float64Histogram("mockly.http.duration",
		metric.WithDescription("API request latency (ms)"),
		metric.WithUnit("ms"),
	)
	inflight, _ := meter.Int64UpDownCounter("mockly.http.in_flight",
		metric.WithDescription("API requests being served"),
	)
	return &Metrics{
		reportOutcomes:      outcomes,
		uploadVerifyFailure: verify,
		mlDuration:          mlDur,
		apiDuration:         apiDur,
		apiInflight:         inflight,
	}
}

func (m *Metrics) ReportOutcome(ctx context.Context, status string) {
	if m == nil || m.reportOutcomes == nil {
		return
	}
	m.reportOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) UploadVerificationFailed(ctx context.Context, reason string) {
	if m == nil || m.uploadVerifyFailure == nil {
		return
	}
	m.uploadVerifyFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) MLCall(ctx context.Context, ms float64, ok bool) {
	if m == nil || m.mlDuration == nil {
		return
	}
	m.mlDuration.Record(ctx, ms, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *Metrics) APIInflight(ctx context.Context, delta int64) {
	if m == nil || m.apiInflight == nil {
		return
	}
	m.apiInflight.Add(ctx, delta)
}

func (m *Metrics) ObserveAPI(ctx context.Context, method, route, status string, d time.Duration) {
	if m == nil || m.apiDuration == nil {
		return
	}
	m.apiDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", status),
	))
}

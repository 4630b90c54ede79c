package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/datahub-healthcheck"

// Recorder turns check records and DataHub requests into metrics
type Recorder struct {
	checks      metric.Int64Counter
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	lastFailed  metric.Int64Gauge
	lastSuccess metric.Int64Gauge
	requestTime metric.Float64Histogram
}

// NewRecorder registers the health check instruments on provider
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)
	r := &Recorder{}
	var err error

	if r.checks, err = meter.Int64Counter("healthcheck_checks_total",
		metric.WithDescription("Check records produced, by group and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create checks counter: %w", err)
	}
	if r.runs, err = meter.Int64Counter("healthcheck_runs_total",
		metric.WithDescription("Completed health check runs, by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}
	if r.runDuration, err = meter.Float64Histogram("healthcheck_run_duration_seconds",
		metric.WithDescription("Wall time of a full health check run"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(60, 90, 120, 180, 300, 600)); err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}
	if r.lastFailed, err = meter.Int64Gauge("healthcheck_last_run_failed_checks",
		metric.WithDescription("Failed checks in the most recent run")); err != nil {
		return nil, fmt.Errorf("failed to create failed checks gauge: %w", err)
	}
	if r.lastSuccess, err = meter.Int64Gauge("healthcheck_last_run_success",
		metric.WithDescription("1 when the most recent run passed every check")); err != nil {
		return nil, fmt.Errorf("failed to create success gauge: %w", err)
	}
	if r.requestTime, err = meter.Float64Histogram("datahub_request_duration_seconds",
		metric.WithDescription("Latency of requests to the DataHub backend"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create request histogram: %w", err)
	}

	return r, nil
}

// ObserveRecord counts a single check record
func (r *Recorder) ObserveRecord(ctx context.Context, group string, rec domain.Record) {
	r.checks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.Bool("success", rec.Success),
	))
}

// ObserveRun records the outcome of a finished run
func (r *Recorder) ObserveRun(ctx context.Context, run *domain.Run, elapsed time.Duration) {
	outcome := metric.WithAttributes(attribute.Bool("success", run.Success))
	r.runs.Add(ctx, 1, outcome)
	r.runDuration.Record(ctx, elapsed.Seconds(), outcome)
	r.lastFailed.Record(ctx, int64(run.Failed))

	var success int64
	if run.Success {
		success = 1
	}
	r.lastSuccess.Record(ctx, success)
}

// ObserveRequest records the latency of one DataHub call.
// A zero status means the request never got a response.
func (r *Recorder) ObserveRequest(ctx context.Context, method, endpoint string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requestTime.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("status", code),
	))
}

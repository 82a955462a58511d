package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"resumefit/internal/errors"
	"resumefit/internal/workflow"
)

// Metrics holds all custom metrics
type Metrics struct {
	// Workflow operation metrics
	OperationDuration  metric.Float64Histogram
	OperationCount     metric.Int64Counter
	OperationErrors    metric.Int64Counter
	BackgroundFailures metric.Int64Counter

	// Business metrics
	ATSScores metric.Int64Histogram
	WatchRuns metric.Int64Counter

	// Web UI metrics
	RateLimitHits  metric.Int64Counter
	ActiveVisitors metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.OperationDuration, err = meter.Float64Histogram(
		"resumefit_operation_duration_seconds",
		metric.WithDescription("Time spent in backend calls per workflow operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration metric: %w", err)
	}

	m.OperationCount, err = meter.Int64Counter(
		"resumefit_operations_total",
		metric.WithDescription("Total number of workflow operations that reached the backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation count metric: %w", err)
	}

	m.OperationErrors, err = meter.Int64Counter(
		"resumefit_operation_errors_total",
		metric.WithDescription("Total number of failed workflow operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation error metric: %w", err)
	}

	m.BackgroundFailures, err = meter.Int64Counter(
		"resumefit_background_failures_total",
		metric.WithDescription("Background fetches that failed and were not shown to the user"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create background failure metric: %w", err)
	}

	m.ATSScores, err = meter.Int64Histogram(
		"resumefit_ats_score",
		metric.WithDescription("Distribution of ATS scores returned by analyses"),
		metric.WithExplicitBucketBoundaries(40, 50, 60, 70, 80, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ATS score metric: %w", err)
	}

	m.WatchRuns, err = meter.Int64Counter(
		"resumefit_watch_runs_total",
		metric.WithDescription("Total number of re-analyses triggered by file changes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watch run metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"resumefit_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.ActiveVisitors, err = meter.Int64UpDownCounter(
		"resumefit_active_visitors",
		metric.WithDescription("Number of web UI visitors with a live session"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active visitors metric: %w", err)
	}

	return m, nil
}

// GetMetrics returns the metrics instance, or nil when metrics are disabled
func (om *Manager) GetMetrics() *Metrics {
	return om.metrics
}

// OperationCompleted records the outcome of a backend call
func (om *Manager) OperationCompleted(ctx context.Context, op workflow.Operation, duration time.Duration, err error) {
	if om.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.Bool("success", err == nil),
	)
	om.metrics.OperationDuration.Record(ctx, duration.Seconds(), attrs)
	om.metrics.OperationCount.Add(ctx, 1, attrs)
	if err != nil {
		om.metrics.OperationErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", string(op)),
			attribute.String("code", errorCode(err)),
		))
	}
}

// BackgroundFailure counts a failed background fetch
func (om *Manager) BackgroundFailure(ctx context.Context, op workflow.Operation, err error) {
	if om.metrics == nil {
		return
	}
	om.metrics.BackgroundFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("code", errorCode(err)),
	))
}

// RecordScore records the ATS score of a finished analysis
func (om *Manager) RecordScore(ctx context.Context, score int) {
	if om.metrics == nil {
		return
	}
	om.metrics.ATSScores.Record(ctx, int64(score))
}

// RecordWatchRun counts a re-analysis triggered by the file watcher
func (om *Manager) RecordWatchRun(ctx context.Context, success bool) {
	if om.metrics == nil {
		return
	}
	om.metrics.WatchRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (om *Manager) RecordRateLimitHit(ctx context.Context, keyType string) {
	if om.metrics == nil {
		return
	}
	om.metrics.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key_type", keyType)))
}

// VisitorsChanged adjusts the live visitor gauge by delta
func (om *Manager) VisitorsChanged(ctx context.Context, delta int64) {
	if om.metrics == nil {
		return
	}
	om.metrics.ActiveVisitors.Add(ctx, delta)
}

func errorCode(err error) string {
	if appErr, ok := errors.As(err); ok && appErr.Code != "" {
		return appErr.Code
	}
	return "UNKNOWN"
}

var _ workflow.Telemetry = (*Manager)(nil)

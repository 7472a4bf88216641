package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IssuanceMetrics holds the business-level counters for license issuance.
type IssuanceMetrics struct {
	LicensesIssued   metric.Int64Counter
	IssuanceFailures metric.Int64Counter
	WebhooksIgnored  metric.Int64Counter
}

// CreateIssuanceMetrics registers the issuance counters on the given meter.
func CreateIssuanceMetrics(meter metric.Meter) (*IssuanceMetrics, error) {
	issued, err := meter.Int64Counter("licenses_issued_total",
		metric.WithDescription("Licenses issued, by edition and issuance path"))
	if err != nil {
		return nil, fmt.Errorf("create licenses_issued_total: %w", err)
	}

	failures, err := meter.Int64Counter("issuance_failures_total",
		metric.WithDescription("Rejected or failed issuance attempts, by reason"))
	if err != nil {
		return nil, fmt.Errorf("create issuance_failures_total: %w", err)
	}

	ignored, err := meter.Int64Counter("webhook_events_ignored_total",
		metric.WithDescription("Webhook events acknowledged but not processed"))
	if err != nil {
		return nil, fmt.Errorf("create webhook_events_ignored_total: %w", err)
	}

	return &IssuanceMetrics{
		LicensesIssued:   issued,
		IssuanceFailures: failures,
		WebhooksIgnored:  ignored,
	}, nil
}

// RecordIssued increments the issued counter.
func (m *IssuanceMetrics) RecordIssued(ctx context.Context, edition, path string) {
	if m == nil || m.LicensesIssued == nil {
		return
	}
	m.LicensesIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("edition", edition),
		attribute.String("path", path),
	))
}

// RecordFailure increments the failure counter with a rejection reason.
func (m *IssuanceMetrics) RecordFailure(ctx context.Context, path, reason string) {
	if m == nil || m.IssuanceFailures == nil {
		return
	}
	m.IssuanceFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("reason", reason),
	))
}

// HTTPMetrics holds the transport-level instruments recorded by the
// tracing middleware.
type HTTPMetrics struct {
	RequestsTotal   metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ActiveRequests  metric.Int64UpDownCounter
}

// CreateHTTPMetrics registers the HTTP server instruments on the given meter.
func CreateHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requests, err := meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests served, by method, route and status"))
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	duration, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"))
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds: %w", err)
	}

	active, err := meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("HTTP requests currently in flight"))
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	return &HTTPMetrics{
		RequestsTotal:   requests,
		RequestDuration: duration,
		ActiveRequests:  active,
	}, nil
}

// RecordIgnoredWebhook increments the ignored-event counter.
func (m *IssuanceMetrics) RecordIgnoredWebhook(ctx context.Context, eventName string) {
	if m == nil || m.WebhooksIgnored == nil {
		return
	}
	m.WebhooksIgnored.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventName),
	))
}

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsActive  metric.Int64UpDownCounter

	// Event pipeline metrics
	EventsReceivedTotal     metric.Int64Counter
	EventsProcessedTotal    metric.Int64Counter
	EventProcessingDuration metric.Float64Histogram
	DuplicatesBlockedTotal  metric.Int64Counter
	HandshakesServedTotal   metric.Int64Counter
	SignatureRejectedTotal  metric.Int64Counter

	// Answer generation metrics
	GenerationsTotal   metric.Int64Counter
	GenerationDuration metric.Float64Histogram
	GenerationErrors   metric.Int64Counter
	TokensUsedTotal    metric.Int64Counter

	// Delivery metrics
	PostsSentTotal  metric.Int64Counter
	PostDuration    metric.Float64Histogram
	PostErrorsTotal metric.Int64Counter

	// Dedup store metrics
	DedupLookupsTotal   metric.Int64Counter
	DedupLookupDuration metric.Float64Histogram
}

// NewMetrics creates and registers all application metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	var err error

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}

	m.HTTPRequestsActive, err = meter.Int64UpDownCounter(
		"http.server.requests.active",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating http_requests_active: %w", err)
	}

	// Event pipeline metrics
	m.EventsReceivedTotal, err = meter.Int64Counter(
		"events.received.total",
		metric.WithDescription("Total number of webhook events accepted for processing"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events_received_total: %w", err)
	}

	m.EventsProcessedTotal, err = meter.Int64Counter(
		"events.processed.total",
		metric.WithDescription("Total number of events processed end to end"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events_processed_total: %w", err)
	}

	m.EventProcessingDuration, err = meter.Float64Histogram(
		"events.processing.duration",
		metric.WithDescription("Event processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating event_processing_duration: %w", err)
	}

	m.DuplicatesBlockedTotal, err = meter.Int64Counter(
		"events.duplicates.blocked.total",
		metric.WithDescription("Total number of redelivered events suppressed"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duplicates_blocked_total: %w", err)
	}

	m.HandshakesServedTotal, err = meter.Int64Counter(
		"events.handshakes.served.total",
		metric.WithDescription("Total number of url_verification challenges answered"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handshakes_served_total: %w", err)
	}

	m.SignatureRejectedTotal, err = meter.Int64Counter(
		"events.signature.rejected.total",
		metric.WithDescription("Total number of requests rejected by signature verification"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating signature_rejected_total: %w", err)
	}

	// Answer generation metrics
	m.GenerationsTotal, err = meter.Int64Counter(
		"generation.requests.total",
		metric.WithDescription("Total number of answer generation calls"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generations_total: %w", err)
	}

	m.GenerationDuration, err = meter.Float64Histogram(
		"generation.duration",
		metric.WithDescription("Answer generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generation_duration: %w", err)
	}

	m.GenerationErrors, err = meter.Int64Counter(
		"generation.errors.total",
		metric.WithDescription("Total number of failed generation calls"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generation_errors: %w", err)
	}

	m.TokensUsedTotal, err = meter.Int64Counter(
		"generation.tokens.total",
		metric.WithDescription("Total model tokens consumed"),
		metric.WithUnit("{tokens}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tokens_used_total: %w", err)
	}

	// Delivery metrics
	m.PostsSentTotal, err = meter.Int64Counter(
		"posts.sent.total",
		metric.WithDescription("Total number of replies posted"),
		metric.WithUnit("{posts}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating posts_sent_total: %w", err)
	}

	m.PostDuration, err = meter.Float64Histogram(
		"posts.duration",
		metric.WithDescription("Reply delivery duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating post_duration: %w", err)
	}

	m.PostErrorsTotal, err = meter.Int64Counter(
		"posts.errors.total",
		metric.WithDescription("Total number of failed reply deliveries"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating post_errors_total: %w", err)
	}

	// Dedup store metrics
	m.DedupLookupsTotal, err = meter.Int64Counter(
		"dedup.lookups.total",
		metric.WithDescription("Total number of duplicate-suppression lookups"),
		metric.WithUnit("{operations}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dedup_lookups_total: %w", err)
	}

	m.DedupLookupDuration, err = meter.Float64Histogram(
		"dedup.lookup.duration",
		metric.WithDescription("Duplicate-suppression lookup duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dedup_lookup_duration: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventReceived records an accepted webhook event.
func (m *Metrics) RecordEventReceived(ctx context.Context, eventType string) {
	m.EventsReceivedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", eventType),
	))
}

// RecordEventProcessed records one completed processing attempt.
func (m *Metrics) RecordEventProcessed(ctx context.Context, eventType string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("event.type", eventType),
		attribute.Bool("success", success),
	}

	m.EventsProcessedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.EventProcessingDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDuplicateBlocked records a suppressed redelivery.
func (m *Metrics) RecordDuplicateBlocked(ctx context.Context) {
	m.DuplicatesBlockedTotal.Add(ctx, 1)
}

// RecordHandshakeServed records an answered url_verification challenge.
func (m *Metrics) RecordHandshakeServed(ctx context.Context) {
	m.HandshakesServedTotal.Add(ctx, 1)
}

// RecordSignatureRejected records a request that failed verification.
func (m *Metrics) RecordSignatureRejected(ctx context.Context, reason string) {
	m.SignatureRejectedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordGeneration records one answer generation call.
func (m *Metrics) RecordGeneration(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int64, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.Bool("success", success),
	}

	m.GenerationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.GenerationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.GenerationErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
		return
	}

	m.TokensUsedTotal.Add(ctx, inputTokens, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "input"),
	))
	m.TokensUsedTotal.Add(ctx, outputTokens, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "output"),
	))
}

// RecordPost records one reply delivery attempt.
func (m *Metrics) RecordPost(ctx context.Context, threaded bool, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("threaded", threaded),
		attribute.Bool("success", success),
	}

	m.PostsSentTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.PostDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.PostErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordDedupLookup records one duplicate-suppression lookup.
func (m *Metrics) RecordDedupLookup(ctx context.Context, store string, duration time.Duration, duplicate bool) {
	attrs := []attribute.KeyValue{
		attribute.String("store", store),
		attribute.Bool("duplicate", duplicate),
	}

	m.DedupLookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.DedupLookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/go-alumni-api"

// Metrics holds the counters recorded by the code issuance, redemption and
// delivery paths. A nil *Metrics records nothing.
type Metrics struct {
	codesIssued    metric.Int64Counter
	codesRedeemed  metric.Int64Counter
	deliveryFailed metric.Int64Counter
	deadLetters    metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var (
		out Metrics
		err error
	)
	if out.codesIssued, err = m.Int64Counter("auth.codes.issued",
		metric.WithDescription("Verification codes persisted")); err != nil {
		return nil, err
	}
	if out.codesRedeemed, err = m.Int64Counter("auth.codes.redeemed",
		metric.WithDescription("Verification code redemption attempts by outcome")); err != nil {
		return nil, err
	}
	if out.deliveryFailed, err = m.Int64Counter("delivery.attempts.failed",
		metric.WithDescription("Failed code delivery attempts")); err != nil {
		return nil, err
	}
	if out.deadLetters, err = m.Int64Counter("delivery.dead_letters",
		metric.WithDescription("Code deliveries abandoned after retries")); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Metrics) CodeIssued(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.codesIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// CodeRedeemed records one redemption attempt; outcome is an error kind or "ok".
func (m *Metrics) CodeRedeemed(ctx context.Context, purpose, outcome string) {
	if m == nil {
		return
	}
	m.codesRedeemed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) DeliveryAttemptFailed(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.deliveryFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

func (m *Metrics) DeadLettered(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.deadLetters.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

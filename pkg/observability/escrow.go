package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// EscrowMetrics counts payment state transitions and processor calls.
// Instruments come from the global meter provider, so a zero-config
// process records into a no-op provider.
type EscrowMetrics struct {
	transitions    metric.Int64Counter
	processorCalls metric.Int64Counter
	tracer         trace.Tracer
}

func NewEscrowMetrics() *EscrowMetrics {
	meter := otel.Meter(instrumentationName)

	transitions, _ := meter.Int64Counter(
		"escrow_payment_transition_count",
		metric.WithDescription("Payment status transitions"),
		metric.WithUnit("{transition}"),
	)
	processorCalls, _ := meter.Int64Counter(
		"escrow_processor_call_count",
		metric.WithDescription("Calls made to the payment processor"),
		metric.WithUnit("{call}"),
	)

	return &EscrowMetrics{
		transitions:    transitions,
		processorCalls: processorCalls,
		tracer:         otel.Tracer(instrumentationName),
	}
}

func (m *EscrowMetrics) Transition(ctx context.Context, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// ProcessorCall records one outbound processor request and its outcome
// ("ok" or "error").
func (m *EscrowMetrics) ProcessorCall(ctx context.Context, op string, err error) {
	if m == nil || m.processorCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.processorCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// Start opens a child span for an escrow operation.
func (m *EscrowMetrics) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, name)
}

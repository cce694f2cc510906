package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/sepa-screener/internal/models"
)

// AnalysisTracer provides spans for the screening run, per-symbol
// evaluation and notification delivery.
type AnalysisTracer struct {
	tracer trace.Tracer
}

// NewAnalysisTracer creates a tracer on the global provider.
func NewAnalysisTracer() *AnalysisTracer {
	return &AnalysisTracer{tracer: GetAnalysisTracer()}
}

// TraceRun starts the root span of a batch run.
func (at *AnalysisTracer) TraceRun(ctx context.Context, date string, universe int) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "analysis.run",
		trace.WithAttributes(
			attribute.String("run.date", date),
			attribute.Int("run.universe", universe),
		),
	)
}

// RecordRunReport adds the run counters to span.
func (at *AnalysisTracer) RecordRunReport(span trace.Span, report models.RunReport) {
	span.SetAttributes(
		attribute.String("run.id", report.RunID.String()),
		attribute.Int("run.processed", report.Processed),
		attribute.Int("run.skipped", report.Skipped),
		attribute.Int("run.failed", report.Failed),
		attribute.Int("run.notifications", report.Notifications),
		attribute.Bool("run.cancelled", report.Cancelled),
		attribute.Float64("market.return_90d", report.Composite.Return90d),
	)
	if report.Cancelled {
		span.SetStatus(codes.Error, "run cancelled")
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceSymbol starts a span around one symbol's evaluation.
func (at *AnalysisTracer) TraceSymbol(ctx context.Context, symbol string) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "analysis.symbol",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
}

// RecordScorecard adds the headline results of a scorecard to span.
func (at *AnalysisTracer) RecordScorecard(span trace.Span, card models.Scorecard) {
	attrs := []attribute.KeyValue{
		attribute.Int("stage", int(card.Template.Stage)),
		attribute.Bool("passes_template", card.Template.PassesMinervini),
		attribute.Bool("vcp.detected", card.VCP.Detected),
		attribute.Float64("vcp.score", card.VCP.Score),
		attribute.String("signal.buy", string(card.Buy.Signal)),
		attribute.String("signal.holder", string(card.Holder.Signal)),
	}
	if card.RSRating != nil {
		attrs = append(attrs, attribute.Float64("rs_rating", *card.RSRating))
	}
	span.SetAttributes(attrs...)
}

// TraceNotification starts a span for tracing notification delivery.
func (at *AnalysisTracer) TraceNotification(ctx context.Context, notificationType string, channel string) (context.Context, trace.Span) {
	return at.tracer.Start(ctx, "notification",
		trace.WithAttributes(
			attribute.String("notification_type", notificationType),
			attribute.String("channel", channel),
		),
	)
}

// RecordNotificationResult records the outcome of a delivery attempt.
func (at *AnalysisTracer) RecordNotificationResult(span trace.Span, recipientCount int, err error) {
	span.SetAttributes(
		attribute.Bool("success", err == nil),
		attribute.Int("recipient_count", recipientCount),
	)
	if err != nil {
		RecordError(span, err)
		return
	}
	span.SetStatus(codes.Ok, "")
}

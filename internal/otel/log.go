package otel

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/aitsambajwa-iss/Checkoutly/internal/requestctx"
)

// TraceContextFrom returns trace_id and span_id from the span in ctx, if any.
func TraceContextFrom(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", ""
	}
	return span.SpanContext().TraceID().String(), span.SpanContext().SpanID().String()
}

// LogTraceFields returns a zerolog Func hook that adds chat_id, turn_id,
// trace_id and span_id to the event when they are present in ctx:
//
//	log.Info().Str("tool", name).Func(otel.LogTraceFields(ctx)).Msg("tool_dispatched")
func LogTraceFields(ctx context.Context) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		if chatID := requestctx.ChatID(ctx); chatID != "" {
			e.Str("chat_id", chatID)
		}
		if turnID := requestctx.TurnID(ctx); turnID != "" {
			e.Str("turn_id", turnID)
		}
		traceID, spanID := TraceContextFrom(ctx)
		if traceID != "" {
			e.Str("trace_id", traceID)
		}
		if spanID != "" {
			e.Str("span_id", spanID)
		}
	}
}

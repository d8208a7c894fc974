package llm

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aitsambajwa-iss/Checkoutly/internal/llm"

var (
	tokenHistogram    metric.Int64Histogram
	durationHistogram metric.Float64Histogram
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	tokenHistogram, err = meter.Int64Histogram(
		"checkoutly.llm.tokens",
		metric.WithDescription("Tokens per model call"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return
	}
	durationHistogram, err = meter.Float64Histogram(
		"checkoutly.llm.duration",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// RecordUsageMetrics records token usage and latency after a model call.
func RecordUsageMetrics(ctx context.Context, provider, model string, inputTokens, outputTokens int, elapsed time.Duration) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	base := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("model", model),
	}
	tokenHistogram.Record(ctx, int64(inputTokens),
		metric.WithAttributes(append(base, attribute.String("direction", "input"))...))
	tokenHistogram.Record(ctx, int64(outputTokens),
		metric.WithAttributes(append(base, attribute.String("direction", "output"))...))
	durationHistogram.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(base...))
}

package redact

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	checkoutlyotel "github.com/aitsambajwa-iss/Checkoutly/internal/otel"
)

const meterName = "github.com/aitsambajwa-iss/Checkoutly/internal/redact"

var (
	redactionCounter  metric.Int64Counter
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	var err error
	redactionCounter, err = otel.Meter(meterName).Int64Counter(
		"checkoutly.redactions",
		metric.WithDescription("Sensitive values replaced by tokens, by kind"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

func recordRedaction(ctx context.Context, kind Kind) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	redactionCounter.Add(ctx, 1, metric.WithAttributes(checkoutlyotel.RedactionKind.String(string(kind))))
}

package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskdispatch/task"
)

// meterName is the instrumentation scope name for taskdispatch metrics.
const meterName = "github.com/xraph/taskdispatch"

// Metrics returns middleware that records per-call metrics using the
// global OTel MeterProvider.
//
// Instruments:
//   - taskdispatch.callback.duration (Float64Histogram): seconds, with
//     attributes stage and status ("ok" or "error")
//   - taskdispatch.callback.calls (Int64Counter): with the same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"taskdispatch.callback.duration",
		metric.WithDescription("Duration of dispatcher callback invocations in seconds"),
		metric.WithUnit("s"),
	)
	calls, _ := meter.Int64Counter(
		"taskdispatch.callback.calls",
		metric.WithDescription("Total number of dispatcher callback invocations"),
		metric.WithUnit("{call}"),
	)

	return func(ctx context.Context, it *task.Item, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("stage", string(it.Stage)),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return err
	}
}

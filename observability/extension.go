package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskdispatch/ext"
	"github.com/xraph/taskdispatch/task"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/taskdispatch/observability"

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.ItemsFetched    = (*MetricsExtension)(nil)
	_ ext.FetchFailed     = (*MetricsExtension)(nil)
	_ ext.ItemCompleted   = (*MetricsExtension)(nil)
	_ ext.ItemRetrying    = (*MetricsExtension)(nil)
	_ ext.ItemDropped     = (*MetricsExtension)(nil)
	_ ext.ResultDelivered = (*MetricsExtension)(nil)
)

// MetricsExtension records dispatcher-wide lifecycle metrics through an
// OpenTelemetry meter. Register it as an extension to track fetch volume,
// execution and delivery throughput, retries and drops.
//
// Retry and drop counters carry a "stage" attribute.
type MetricsExtension struct {
	ItemsFetched     metric.Int64Counter
	FetchFailed      metric.Int64Counter
	ItemsCompleted   metric.Int64Counter
	ItemsRetried     metric.Int64Counter
	ItemsDropped     metric.Int64Counter
	ResultsDelivered metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithProvider creates a MetricsExtension from the
// given MeterProvider.
func NewMetricsExtensionWithProvider(mp metric.MeterProvider) *MetricsExtension {
	return NewMetricsExtensionWithMeter(mp.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On error the API returns noop instruments.
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{item}"))
		return c
	}

	return &MetricsExtension{
		ItemsFetched:     counter("taskdispatch.items.fetched", "Items returned by the work source"),
		FetchFailed:      counter("taskdispatch.fetch.failed", "Fetch calls that failed or panicked"),
		ItemsCompleted:   counter("taskdispatch.items.completed", "Items executed successfully"),
		ItemsRetried:     counter("taskdispatch.items.retried", "Items re-queued after a retryable failure"),
		ItemsDropped:     counter("taskdispatch.items.dropped", "Items discarded after a permanent failure"),
		ResultsDelivered: counter("taskdispatch.results.delivered", "Results accepted by the result sink"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Fetch hooks ─────────────────────────────────────

// OnItemsFetched implements ext.ItemsFetched.
func (m *MetricsExtension) OnItemsFetched(ctx context.Context, _ *task.Item, n int) error {
	m.ItemsFetched.Add(ctx, int64(n))
	return nil
}

// OnFetchFailed implements ext.FetchFailed.
func (m *MetricsExtension) OnFetchFailed(ctx context.Context, _ *task.Item, _ error) error {
	m.FetchFailed.Add(ctx, 1)
	return nil
}

// ── Item lifecycle hooks ────────────────────────────

// OnItemCompleted implements ext.ItemCompleted.
func (m *MetricsExtension) OnItemCompleted(ctx context.Context, _ *task.Item, _ time.Duration) error {
	m.ItemsCompleted.Add(ctx, 1)
	return nil
}

// OnItemRetrying implements ext.ItemRetrying.
func (m *MetricsExtension) OnItemRetrying(ctx context.Context, it *task.Item, _ error) error {
	m.ItemsRetried.Add(ctx, 1, stageAttr(it))
	return nil
}

// OnItemDropped implements ext.ItemDropped.
func (m *MetricsExtension) OnItemDropped(ctx context.Context, it *task.Item, _ error) error {
	m.ItemsDropped.Add(ctx, 1, stageAttr(it))
	return nil
}

// OnResultDelivered implements ext.ResultDelivered.
func (m *MetricsExtension) OnResultDelivered(ctx context.Context, _ *task.Item, _ time.Duration) error {
	m.ResultsDelivered.Add(ctx, 1)
	return nil
}

func stageAttr(it *task.Item) metric.AddOption {
	return metric.WithAttributes(attribute.String("stage", string(it.Stage)))
}

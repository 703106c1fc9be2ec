package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskdispatch/task"
)

// tracerName is the instrumentation scope name for taskdispatch tracing.
const tracerName = "github.com/xraph/taskdispatch"

// Tracing returns middleware that wraps each callback in an OpenTelemetry
// span named "taskdispatch.<stage>". If no TracerProvider is configured
// globally, the default noop tracer is used.
//
// Span attributes: taskdispatch.item.id, taskdispatch.stage,
// taskdispatch.attempt, taskdispatch.dispatcher.id.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, it *task.Item, next Handler) error {
		ctx, span := tracer.Start(ctx, "taskdispatch."+string(it.Stage),
			trace.WithAttributes(
				attribute.String("taskdispatch.item.id", it.ID.String()),
				attribute.String("taskdispatch.stage", string(it.Stage)),
				attribute.Int("taskdispatch.attempt", it.Attempt),
				attribute.String("taskdispatch.dispatcher.id", it.DispatcherID.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}

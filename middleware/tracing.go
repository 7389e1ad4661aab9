package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaudehloBiz/planllama-go/job"
)

// tracerName is the instrumentation scope name for client tracing.
const tracerName = "github.com/BaudehloBiz/planllama-go"

// Tracing returns middleware that wraps handler execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: planllama.job.id, planllama.job.name,
// planllama.job.retry_count. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, j *job.Job) (any, error) {
			ctx, span := tracer.Start(ctx, "planllama.job.execute",
				trace.WithAttributes(
					attribute.String("planllama.job.id", j.ID),
					attribute.String("planllama.job.name", j.Name),
					attribute.Int("planllama.job.retry_count", j.RetryCount),
				),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			result, err := next(ctx, j)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}

			return result, err
		}
	}
}

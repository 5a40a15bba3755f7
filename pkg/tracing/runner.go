package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanRunner executes units of work inside named spans. Nested Run calls
// produce child spans parented to the caller's active span because the span
// context travels through the ctx passed to fn; callers never propagate
// spans by hand.
type SpanRunner struct {
	tracer trace.Tracer
}

// NewSpanRunner creates a runner that obtains its tracer from the global
// provider under the given instrumentation name.
func NewSpanRunner(name string) *SpanRunner {
	return &SpanRunner{tracer: otel.Tracer(name)}
}

// NewSpanRunnerWithProvider creates a runner bound to an explicit provider.
// Tests pass an sdktrace provider with an in-memory span recorder.
func NewSpanRunnerWithProvider(tp trace.TracerProvider, name string) *SpanRunner {
	return &SpanRunner{tracer: tp.Tracer(name)}
}

// Run executes fn inside a span with the given name and attributes. The span
// starts before fn is invoked and ends on every exit path, including panics.
// The span's error status is set iff fn returns a non-nil error, and that
// error is returned to the caller unchanged.
func (r *SpanRunner) Run(
	ctx context.Context,
	name string,
	attrs []attribute.KeyValue,
	fn func(ctx context.Context, span trace.Span) error,
) error {
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	defer func() {
		if p := recover(); p != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", p))
			span.End()
			panic(p)
		}
		span.End()
	}()

	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

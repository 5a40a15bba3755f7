package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordedRunner() (*SpanRunner, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewSpanRunnerWithProvider(tp, "runner-test"), sr
}

func TestRunSuccess(t *testing.T) {
	runner, sr := newRecordedRunner()

	err := runner.Run(context.Background(), "op",
		[]attribute.KeyValue{attribute.String("k", "v")},
		func(ctx context.Context, span trace.Span) error {
			return nil
		},
	)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := spans[0].Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, "v", attrs[0].Value.AsString())
}

func TestRunErrorSetsStatusAndReturnsUnchanged(t *testing.T) {
	runner, sr := newRecordedRunner()
	boom := errors.New("boom")

	err := runner.Run(context.Background(), "op", nil,
		func(ctx context.Context, span trace.Span) error {
			return boom
		},
	)
	assert.Same(t, boom, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRunNestingParentsChildSpans(t *testing.T) {
	runner, sr := newRecordedRunner()

	err := runner.Run(context.Background(), "parent", nil,
		func(ctx context.Context, span trace.Span) error {
			return runner.Run(ctx, "child", nil,
				func(ctx context.Context, span trace.Span) error {
					return nil
				},
			)
		},
	)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	// Children end before parents.
	child, parent := spans[0], spans[1]
	assert.Equal(t, "child", child.Name())
	assert.Equal(t, "parent", parent.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestRunChildErrorDoesNotFailSiblings(t *testing.T) {
	runner, sr := newRecordedRunner()

	err := runner.Run(context.Background(), "parent", nil,
		func(ctx context.Context, span trace.Span) error {
			_ = runner.Run(ctx, "failing-child", nil,
				func(ctx context.Context, span trace.Span) error {
					return errors.New("child failed")
				},
			)
			return nil
		},
	)
	require.NoError(t, err)

	for _, s := range sr.Ended() {
		switch s.Name() {
		case "failing-child":
			assert.Equal(t, codes.Error, s.Status().Code)
		case "parent":
			assert.Equal(t, codes.Ok, s.Status().Code)
		}
	}
}

func TestRunEndsSpanOnPanic(t *testing.T) {
	runner, sr := newRecordedRunner()

	assert.Panics(t, func() {
		_ = runner.Run(context.Background(), "op", nil,
			func(ctx context.Context, span trace.Span) error {
				panic("kaboom")
			},
		)
	})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

package otelhelper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpan(t *testing.T, record func(tracer *sdktrace.TracerProvider)) tracetest.SpanStub {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	record(provider)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	return tracetest.SpanStubFromReadOnlySpan(spans[0])
}

func TestSetError_MarksSpanFailed(t *testing.T) {
	stub := recordSpan(t, func(provider *sdktrace.TracerProvider) {
		_, span := StartSpan(t.Context(), provider.Tracer("test"), "workflow.pass")
		SetError(span, errors.New("smtp unavailable"), attribute.String(StepIDKey, "intro"))
		span.End()
	})

	assert.Equal(t, codes.Error, stub.Status.Code)
	assert.Equal(t, "smtp unavailable", stub.Status.Description)
	require.Len(t, stub.Events, 1)
	assert.Contains(t, stub.Events[0].Attributes, attribute.String(StepIDKey, "intro"))
}

func TestSetOutcome_OmitsEmptyReason(t *testing.T) {
	stub := recordSpan(t, func(provider *sdktrace.TracerProvider) {
		_, span := StartSpan(t.Context(), provider.Tracer("test"), "workflow.step")
		SetOutcome(span, "completed", "")
		span.End()
	})

	assert.Contains(t, stub.Attributes, attribute.String(OutcomeKey, "completed"))

	for _, attr := range stub.Attributes {
		assert.NotEqual(t, attribute.Key(ReasonKey), attr.Key)
	}
}

func TestSetOutcome_RecordsReason(t *testing.T) {
	stub := recordSpan(t, func(provider *sdktrace.TracerProvider) {
		_, span := StartSpan(t.Context(), provider.Tracer("test"), "workflow.step")
		SetOutcome(span, "retry_after", "outside sending window")
		span.End()
	})

	assert.Contains(t, stub.Attributes, attribute.String(ReasonKey, "outside sending window"))
}

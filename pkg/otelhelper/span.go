package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError records err on span, attaching attrs to the error event, and marks the span failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetOutcome tags a step span with the evaluation outcome and, when present, its reason.
func SetOutcome(span trace.Span, outcome, reason string) {
	attrs := []attribute.KeyValue{attribute.String(OutcomeKey, outcome)}
	if reason != "" {
		attrs = append(attrs, attribute.String(ReasonKey, reason))
	}

	span.SetAttributes(attrs...)
}

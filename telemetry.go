package genie

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/inspirepan/genie"

// Span types mirror the categories used by LLM tracing backends.
const (
	SpanTypeAgent  = "AGENT"
	SpanTypeTool   = "TOOL"
	SpanTypeParser = "PARSER"
	SpanTypeLLM    = "CHAT_MODEL"
)

var spanTypeKey = attribute.Key("genie.span_type")

// startSpan opens a span on the global tracer provider. The returned finish
// func must be called on every exit path with the operation's error.
func startSpan(ctx context.Context, name, spanType string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(error)) {
	attrs = append(attrs, spanTypeKey.String(spanType))
	ctx, span := otel.Tracer(instrumentationName).Start(
		ctx,
		name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "ok")
		}
		span.End()
	}
	return ctx, span, finish
}

func usageEvent(span trace.Span, usage *Usage) {
	if usage == nil {
		return
	}
	span.AddEvent("model.usage", trace.WithAttributes(
		attribute.Int("input_tokens", usage.InputTokens),
		attribute.Int("output_tokens", usage.OutputTokens),
		attribute.Int("cached_read_tokens", usage.CachedReadTokens),
		attribute.Int("total_tokens", usage.TotalTokens),
	))
}

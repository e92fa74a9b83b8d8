package genie

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReasonRequest configures a single reasoning step.
type ReasonRequest struct {
	Provider  Provider
	Signature *Signature
	Inputs    map[string]any
	// ChainOfThought asks the model for its reasoning before the outputs.
	ChainOfThought bool
}

// Prediction holds the outputs produced by a reasoning step.
type Prediction struct {
	Outputs   map[string]any
	Reasoning string
	Message   AssistantMessage
}

// String returns output name as a string, or "" when absent or not a string.
func (p Prediction) String(name string) string {
	s, _ := p.Outputs[name].(string)
	return s
}

// Reason runs one model call governed by the request's signature. Provider
// errors are returned unchanged; a response that does not satisfy the
// signature yields an *OutputError.
func Reason(ctx context.Context, req ReasonRequest) (Prediction, error) {
	if req.Provider == nil {
		return Prediction{}, ErrNoProvider
	}
	if req.Signature == nil {
		return Prediction{}, ErrNoSignature
	}
	sig := req.Signature
	if req.ChainOfThought {
		sig = sig.WithReasoning()
	}

	user, err := sig.RenderInputs(req.Inputs)
	if err != nil {
		return Prediction{}, err
	}

	ctx, span, finish := startSpan(ctx, "reasoning.step", SpanTypeLLM, trace.SpanKindClient,
		attribute.String("genie.signature", sig.Name),
	)
	msg, err := req.Provider.Generate(ctx, ProviderRequest{
		SystemPrompt: sig.SystemPrompt(),
		History: []Message{
			UserMessage{Parts: []Part{TextPart{Text: user}}, Timestamp: time.Now().UnixMilli()},
		},
	})
	if err != nil {
		finish(err)
		return Prediction{}, err
	}
	usageEvent(span, msg.Usage)
	if msg.StopReason != "" {
		span.SetAttributes(attribute.String("genie.stop_reason", string(msg.StopReason)))
	}

	raw := msg.Text()
	outputs, err := sig.ParseOutputs(raw)
	if err != nil {
		oerr := &OutputError{Signature: sig.Name, Raw: raw, Err: err}
		finish(oerr)
		return Prediction{Message: msg}, oerr
	}
	finish(nil)

	pred := Prediction{Outputs: outputs, Message: msg}
	pred.Reasoning = pred.String(ReasoningField)
	if pred.Reasoning == "" {
		pred.Reasoning = msg.Thinking()
	}
	return pred, nil
}

package genie

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultToolName is the name a QuestionTool advertises to a model.
const DefaultToolName = "ask_genie"

const defaultToolDescription = "Ask a Genie space a natural language question about its data. " +
	"Pass conversation_id to ask a follow up question in an existing conversation."

// QuestionTool asks a Genie space one question per call and normalizes the
// answer. It holds no conversation state.
type QuestionTool struct {
	asker       Asker
	name        string
	description string
}

var _ Tool = (*QuestionTool)(nil)

// ToolOption is a functional option for QuestionTool.
type ToolOption func(*QuestionTool)

// WithToolName overrides the advertised tool name.
func WithToolName(name string) ToolOption {
	return func(t *QuestionTool) { t.name = name }
}

// WithToolDescription sets a description of the underlying space.
func WithToolDescription(desc string) ToolOption {
	return func(t *QuestionTool) { t.description = desc }
}

// NewQuestionTool creates a QuestionTool backed by asker.
func NewQuestionTool(asker Asker, opts ...ToolOption) (*QuestionTool, error) {
	if asker == nil {
		return nil, ErrNoAsker
	}
	t := &QuestionTool{asker: asker, name: DefaultToolName}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Description returns the configured description, falling back to the one
// reported by the asker.
func (t *QuestionTool) Description() string {
	if t.description != "" {
		return t.description
	}
	if d, ok := t.asker.(Describer); ok {
		return d.Description()
	}
	return ""
}

// Ask sends question to the space, continuing conversationID when it is not
// empty. Errors from the asker are returned unchanged.
func (t *QuestionTool) Ask(ctx context.Context, question, conversationID string) (ToolResponse, error) {
	ctx, _, finish := startSpan(ctx, "genie.tool.ask", SpanTypeTool, trace.SpanKindClient,
		attribute.String("genie.conversation_id", conversationID),
	)
	raw, err := t.asker.Ask(ctx, question, conversationID, FormatJSON)
	finish(err)
	if err != nil {
		return ToolResponse{}, err
	}
	return Normalize(ctx, raw), nil
}

// Spec describes the tool to a model.
func (t *QuestionTool) Spec() ToolSpec {
	desc := defaultToolDescription
	if d := t.Description(); d != "" {
		desc = desc + "\n\nSpace: " + d
	}
	return ToolSpec{
		Name:        t.name,
		Description: desc,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question to ask the Genie space",
				},
				"conversation_id": map[string]any{
					"type":        "string",
					"description": "Conversation to continue, omit to start a new one",
				},
			},
			"required": []string{"question"},
		},
	}
}

type askArgs struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

// Execute runs the tool for a model-issued call. Malformed arguments produce
// an error result rather than a Go error.
func (t *QuestionTool) Execute(ctx context.Context, call ToolCallPart) (ToolResult, error) {
	var args askArgs
	if err := json.Unmarshal(call.ArgsJSON, &args); err != nil {
		return errorToolResult(call, "failed to parse arguments: "+err.Error()), nil
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorToolResult(call, "question is required"), nil
	}
	resp, err := t.Ask(ctx, args.Question, args.ConversationID)
	if err != nil {
		return ToolResult{}, err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return ToolResult{}, err
	}
	res := ToolResult{
		CallID: call.CallID,
		Name:   call.Name,
		Parts:  []Part{TextPart{Text: string(b)}},
	}
	if resp.ConversationID != "" {
		res.Details = map[string]any{"conversation_id": resp.ConversationID}
	}
	return res, nil
}

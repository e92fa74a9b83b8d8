package genie

import (
	"context"
)

// ToolSpec is the declarative tool schema exposed to an LLM.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolResult is the normalized tool execution result.
type ToolResult struct {
	CallID  string
	Name    string
	Parts   []Part
	IsError bool
	Details map[string]any
}

// Tool is an executable tool.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, call ToolCallPart) (ToolResult, error)
}

func errorToolResult(call ToolCallPart, text string) ToolResult {
	return ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		IsError: true,
		Parts:   []Part{TextPart{Text: text}},
	}
}

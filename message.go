package genie

import (
	"encoding/json"
	"strings"
)

// Role is the speaker role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the canonical conversation unit sent to a Provider.
type Message interface {
	role() Role
}

// UserMessage represents a user input message.
type UserMessage struct {
	Parts     []Part `json:"parts,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (UserMessage) role() Role { return RoleUser }

func (m UserMessage) MarshalJSON() ([]byte, error) {
	type alias UserMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleUser, alias(m)})
}

// AssistantMessage represents a provider response message.
type AssistantMessage struct {
	Parts      []Part     `json:"parts,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	Usage      *Usage     `json:"usage,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`
}

func (AssistantMessage) role() Role { return RoleAssistant }

func (m AssistantMessage) MarshalJSON() ([]byte, error) {
	type alias AssistantMessage
	return json.Marshal(struct {
		Role Role `json:"role"`
		alias
	}{RoleAssistant, alias(m)})
}

// Text concatenates the text parts of the message.
func (m AssistantMessage) Text() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		switch p := part.(type) {
		case TextPart:
			sb.WriteString(p.Text)
		case *TextPart:
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Thinking concatenates the thinking parts of the message.
func (m AssistantMessage) Thinking() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if p, ok := part.(ThinkingPart); ok {
			sb.WriteString(p.Thinking)
		}
	}
	return sb.String()
}

// NewUserText builds a single-part user message.
func NewUserText(text string) UserMessage {
	return UserMessage{Parts: []Part{TextPart{Text: text}}}
}

// StopReason explains why generation stopped.
type StopReason string

const (
	StopStop    StopReason = "stop"
	StopLength  StopReason = "length"
	StopToolUse StopReason = "tool_use"
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

// Usage reports token accounting.
type Usage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CachedReadTokens int `json:"cached_read_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

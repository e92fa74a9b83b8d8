package genie

import (
	"context"

	"goa.design/clue/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Answer is the final result of one agent turn.
type Answer struct {
	Answer    string
	Reasoning string
	Genie     ToolResponse
	Usage     *Usage
}

// Agent asks a Genie space, then has a language model compose the answer.
// It carries the Genie conversation id from one turn to the next.
//
// An Agent is not safe for concurrent use: Ask reads and writes the held
// conversation id without synchronization.
type Agent struct {
	tool           *QuestionTool
	provider       Provider
	signature      *Signature
	description    string
	conversationID string
}

// AgentOption is a functional option for Agent.
type AgentOption func(*Agent)

// WithSignature replaces the default GenieAgentSignature. The signature must
// accept the inputs question, genie_text, genie_query and genie_data and
// produce answer.
func WithSignature(sig *Signature) AgentOption {
	return func(a *Agent) { a.signature = sig }
}

// WithAgentDescription sets the description reported by Description.
func WithAgentDescription(desc string) AgentOption {
	return func(a *Agent) { a.description = desc }
}

// NewAgent creates an Agent that uses tool to query the space and provider
// for the reasoning step.
func NewAgent(tool *QuestionTool, provider Provider, opts ...AgentOption) (*Agent, error) {
	if tool == nil {
		return nil, ErrNoAsker
	}
	if provider == nil {
		return nil, ErrNoProvider
	}
	a := &Agent{tool: tool, provider: provider}
	for _, opt := range opts {
		opt(a)
	}
	if a.signature == nil {
		a.signature = GenieAgentSignature()
	}
	return a, nil
}

// Description returns the configured description, else the tool's.
func (a *Agent) Description() string {
	if a.description != "" {
		return a.description
	}
	return a.tool.Description()
}

// ConversationID returns the held conversation id, "" when none.
func (a *Agent) ConversationID() string {
	return a.conversationID
}

// Reset forgets the held conversation id so the next Ask starts a new Genie
// conversation.
func (a *Agent) Reset() {
	a.conversationID = ""
}

// Ask runs one turn. Errors from the space or the model are returned
// unchanged and nothing is retried.
func (a *Agent) Ask(ctx context.Context, userInput string) (Answer, error) {
	ctx, span, finish := startSpan(ctx, "genie.agent.ask", SpanTypeAgent, trace.SpanKindInternal,
		attribute.String("genie.conversation_id", a.conversationID),
	)

	resp, err := a.tool.Ask(ctx, userInput, a.conversationID)
	if err != nil {
		finish(err)
		return Answer{}, err
	}
	if resp.ConversationID != "" {
		if resp.ConversationID != a.conversationID {
			log.Debug(ctx,
				log.KV{K: "msg", V: "genie conversation adopted"},
				log.KV{K: "conversation_id", V: resp.ConversationID},
			)
		}
		a.conversationID = resp.ConversationID
		span.SetAttributes(attribute.String("genie.conversation_id", a.conversationID))
	}

	pred, err := Reason(ctx, ReasonRequest{
		Provider:  a.provider,
		Signature: a.signature,
		Inputs: map[string]any{
			"question":    userInput,
			"genie_text":  resp.Text,
			"genie_query": resp.Query,
			"genie_data":  resp.Data,
		},
		ChainOfThought: true,
	})
	if err != nil {
		finish(err)
		return Answer{}, err
	}
	finish(nil)

	return Answer{
		Answer:    pred.String("answer"),
		Reasoning: pred.Reasoning,
		Genie:     resp,
		Usage:     pred.Message.Usage,
	}, nil
}

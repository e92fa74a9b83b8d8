package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/inspirepan/genie"
)

// AskCall records one call made to an Asker.
type AskCall struct {
	Question       string
	ConversationID string
	Format         genie.ResultFormat
}

// Asker is a scripted genie.Asker. Each call pops the next response or error.
type Asker struct {
	mu          sync.Mutex
	Responses   []genie.RawResponse
	Errs        []error
	Calls       []AskCall
	Desc        string
	callCounter int
}

var (
	_ genie.Asker     = (*Asker)(nil)
	_ genie.Describer = (*Asker)(nil)
)

func (a *Asker) Ask(_ context.Context, question, conversationID string, format genie.ResultFormat) (genie.RawResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.callCounter
	a.callCounter++
	a.Calls = append(a.Calls, AskCall{Question: question, ConversationID: conversationID, Format: format})
	if i < len(a.Errs) && a.Errs[i] != nil {
		return genie.RawResponse{}, a.Errs[i]
	}
	if i >= len(a.Responses) {
		return genie.RawResponse{}, fmt.Errorf("testutil: no scripted response for call %d", i)
	}
	return a.Responses[i], nil
}

func (a *Asker) Description() string { return a.Desc }

// Provider is a genie.Provider that records requests and replies with Reply
// (or Err).
type Provider struct {
	mu       sync.Mutex
	Reply    genie.AssistantMessage
	Err      error
	Requests []genie.ProviderRequest
}

var _ genie.Provider = (*Provider)(nil)

// TextProvider returns a Provider replying with a single text part.
func TextProvider(text string) *Provider {
	return &Provider{Reply: genie.AssistantMessage{
		Parts:      []genie.Part{genie.TextPart{Text: text}},
		StopReason: genie.StopStop,
	}}
}

func (p *Provider) Generate(_ context.Context, req genie.ProviderRequest) (genie.AssistantMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return genie.AssistantMessage{}, p.Err
	}
	return p.Reply, nil
}

// LastUserText returns the text of the last user message sent to p.
func (p *Provider) LastUserText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return ""
	}
	history := p.Requests[len(p.Requests)-1].History
	for i := len(history) - 1; i >= 0; i-- {
		if m, ok := history[i].(genie.UserMessage); ok {
			var text string
			for _, part := range m.Parts {
				if tp, ok := part.(genie.TextPart); ok {
					text += tp.Text
				}
			}
			return text
		}
	}
	return ""
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

package genie

import "context"

// ProviderRequest is the provider-agnostic generation input.
type ProviderRequest struct {
	SystemPrompt string
	History      []Message
}

// Provider is the language model client a reasoning step runs against.
type Provider interface {
	Generate(ctx context.Context, req ProviderRequest) (AssistantMessage, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, req ProviderRequest) (AssistantMessage, error)

func (f ProviderFunc) Generate(ctx context.Context, req ProviderRequest) (AssistantMessage, error) {
	return f(ctx, req)
}

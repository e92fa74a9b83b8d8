package chatcompletion

import (
	"github.com/inspirepan/genie"
	"github.com/openai/openai-go/v3"
)

// BuildMessages converts a genie request to OpenAI chat completion params.
func BuildMessages(req genie.ProviderRequest, targetModel string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{}

	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.History {
		switch m := msg.(type) {
		case genie.UserMessage:
			params.Messages = append(params.Messages, convertUserMessage(m))
		case *genie.UserMessage:
			params.Messages = append(params.Messages, convertUserMessage(*m))
		case genie.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(m, targetModel))
		case *genie.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(*m, targetModel))
		}
	}

	return params
}

func convertUserMessage(m genie.UserMessage) openai.ChatCompletionMessageParamUnion {
	var parts []openai.ChatCompletionContentPartUnionParam

	for _, part := range m.Parts {
		switch p := part.(type) {
		case genie.TextPart:
			parts = append(parts, openai.TextContentPart(p.Text))
		case *genie.TextPart:
			parts = append(parts, openai.TextContentPart(p.Text))
		}
	}

	if len(parts) == 0 {
		parts = append(parts, openai.TextContentPart(""))
	}

	return openai.UserMessage(parts)
}

// convertAssistantMessage flattens an earlier turn to text. Thinking produced
// by another model is degraded into the content since Chat Completions has no
// field to carry it.
func convertAssistantMessage(m genie.AssistantMessage, targetModel string) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{
		Role: "assistant",
	}

	var degradedThinking, textContent string
	for _, part := range m.Parts {
		switch p := part.(type) {
		case genie.TextPart:
			textContent += p.Text
		case *genie.TextPart:
			textContent += p.Text
		case genie.ThinkingPart:
			if p.ModelName != "" && p.ModelName != targetModel {
				degradedThinking += p.Thinking
			}
		}
	}

	fullContent := degradedThinking + textContent
	if fullContent != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(fullContent),
		}
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

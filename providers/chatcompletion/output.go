package chatcompletion

import (
	"github.com/inspirepan/genie"
	"github.com/openai/openai-go/v3"
	"github.com/tidwall/gjson"
)

// ConvertCompletion maps the first choice of a completion onto an assistant
// message.
func ConvertCompletion(c *openai.ChatCompletion, modelName string) genie.AssistantMessage {
	msg := genie.AssistantMessage{StopReason: genie.StopStop}
	if c == nil {
		return msg
	}
	if len(c.Choices) > 0 {
		choice := c.Choices[0]
		if reasoning := reasoningContent(choice.Message); reasoning != "" {
			msg.Parts = append(msg.Parts, genie.ThinkingPart{Thinking: reasoning, ModelName: modelName})
		}
		if choice.Message.Content != "" {
			msg.Parts = append(msg.Parts, genie.TextPart{Text: choice.Message.Content})
		}
		msg.StopReason = mapFinishReason(choice.FinishReason)
	}
	if c.Usage.TotalTokens > 0 || c.Usage.PromptTokens > 0 {
		msg.Usage = &genie.Usage{
			InputTokens:      int(c.Usage.PromptTokens),
			OutputTokens:     int(c.Usage.CompletionTokens),
			CachedReadTokens: int(c.Usage.PromptTokensDetails.CachedTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
		}
	}
	return msg
}

// reasoningContent reads the non-standard reasoning_content field some
// OpenAI-compatible servers attach to the message.
func reasoningContent(m openai.ChatCompletionMessage) string {
	return gjson.Get(m.RawJSON(), "reasoning_content").String()
}

func mapFinishReason(reason string) genie.StopReason {
	switch reason {
	case "length":
		return genie.StopLength
	case "tool_calls", "function_call":
		return genie.StopToolUse
	case "content_filter":
		return genie.StopError
	default:
		return genie.StopStop
	}
}

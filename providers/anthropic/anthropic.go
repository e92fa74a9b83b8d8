package anthropic

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
)

const defaultMaxTokens = 4096

// Config configures Anthropic Messages API provider.
type Config struct {
	base.Config

	// Thinking options
	ThinkingEnabled bool
	ThinkingBudget  *int
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTemperature sets the temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = &t }
}

// WithMaxOutputTokens sets the max output tokens.
func WithMaxOutputTokens(n int) Option {
	return func(c *Config) { c.MaxOutputTokens = &n }
}

// WithDebug enables JSONL debug logging to the specified file path.
func WithDebug(path string) Option {
	return func(c *Config) { c.DebugPath = path }
}

// WithExtraHeader adds a custom header to requests.
func WithExtraHeader(key, value string) Option {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		c.ExtraHeaders[key] = value
	}
}

// WithThinking enables extended thinking.
func WithThinking(budget int) Option {
	return func(c *Config) {
		c.ThinkingEnabled = true
		c.ThinkingBudget = &budget
	}
}

// New creates a Provider using Anthropic Messages API.
// It reads ANTHROPIC_API_KEY and ANTHROPIC_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) genie.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// SDK auto-reads env vars; only override if explicitly set
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.ExtraHeaders {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	client := anthropic.NewClient(clientOpts...)
	return &provider{model: model, cfg: cfg, client: client}
}

type provider struct {
	model  string
	cfg    Config
	client anthropic.Client
}

func (p *provider) Generate(ctx context.Context, req genie.ProviderRequest) (genie.AssistantMessage, error) {
	params := BuildParams(req, p.model)
	params.MaxTokens = defaultMaxTokens
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = int64(*p.cfg.MaxOutputTokens)
	}
	if p.cfg.Temperature != nil && !p.cfg.ThinkingEnabled {
		params.Temperature = anthropic.Float(*p.cfg.Temperature)
	}
	if p.cfg.ThinkingEnabled && p.cfg.ThinkingBudget != nil {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(*p.cfg.ThinkingBudget))
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath)
	if err != nil {
		return genie.AssistantMessage{}, err
	}
	defer debug.Close()
	requestID := base.NewRequestID()
	p.log(debug, requestID, "request", params)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.log(debug, requestID, "error", err.Error())
		return genie.AssistantMessage{}, err
	}
	p.log(debug, requestID, "response", resp)

	msg := ConvertMessage(resp, p.model)
	msg.Timestamp = time.Now().UnixMilli()
	return msg, nil
}

func (p *provider) log(debug *base.DebugLogger, requestID, typ string, data any) {
	if debug == nil {
		return
	}
	rec := base.NewDebugRecord(typ, data)
	rec.RequestID = requestID
	rec.Provider = "anthropic"
	rec.Model = p.model
	_ = debug.Log(rec)
}

// BuildParams converts a genie request to Messages API params.
func BuildParams(req genie.ProviderRequest, model string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{Model: anthropic.Model(model)}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	for _, msg := range req.History {
		switch m := msg.(type) {
		case genie.UserMessage:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(textBlocks(m.Parts)...))
		case *genie.UserMessage:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(textBlocks(m.Parts)...))
		case genie.AssistantMessage:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(textBlocks(m.Parts)...))
		case *genie.AssistantMessage:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(textBlocks(m.Parts)...))
		}
	}
	return params
}

func textBlocks(parts []genie.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch p := part.(type) {
		case genie.TextPart:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case *genie.TextPart:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return blocks
}

// ConvertMessage maps a Messages API response onto an assistant message.
func ConvertMessage(m *anthropic.Message, modelName string) genie.AssistantMessage {
	msg := genie.AssistantMessage{StopReason: genie.StopStop}
	if m == nil {
		return msg
	}
	for _, block := range m.Content {
		switch block.Type {
		case "text":
			msg.Parts = append(msg.Parts, genie.TextPart{Text: block.Text})
		case "thinking":
			msg.Parts = append(msg.Parts, genie.ThinkingPart{
				Thinking:  block.Thinking,
				Signature: block.Signature,
				ModelName: modelName,
			})
		}
	}
	switch m.StopReason {
	case anthropic.StopReasonMaxTokens:
		msg.StopReason = genie.StopLength
	case anthropic.StopReasonToolUse:
		msg.StopReason = genie.StopToolUse
	}
	msg.Usage = &genie.Usage{
		InputTokens:      int(m.Usage.InputTokens),
		OutputTokens:     int(m.Usage.OutputTokens),
		CachedReadTokens: int(m.Usage.CacheReadInputTokens),
		TotalTokens:      int(m.Usage.InputTokens + m.Usage.OutputTokens),
	}
	return msg
}

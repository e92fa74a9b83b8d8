package google

import (
	"context"
	"errors"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
	"google.golang.org/api/option"
)

// Config configures Google Generative AI API provider.
type Config struct {
	base.Config
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom endpoint.
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

// New creates a Provider using Google Generative AI API.
// It reads GEMINI_API_KEY (or GOOGLE_API_KEY) and GEMINI_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) genie.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "GEMINI_API_KEY", "GEMINI_BASE_URL")
	if cfg.APIKey == "" {
		base.ApplyEnvDefaults(&cfg.Config, "GOOGLE_API_KEY", "")
	}
	return &provider{model: model, cfg: cfg}
}

type provider struct {
	model string
	cfg   Config
}

func (p *provider) Generate(ctx context.Context, req genie.ProviderRequest) (genie.AssistantMessage, error) {
	if p.cfg.APIKey == "" {
		return genie.AssistantMessage{}, errors.New("genie/providers/google: GEMINI_API_KEY is empty")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(p.cfg.APIKey)}
	if p.cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(p.cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return genie.AssistantMessage{}, err
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if p.cfg.Temperature != nil {
		model.SetTemperature(float32(*p.cfg.Temperature))
	}
	if p.cfg.MaxOutputTokens != nil {
		model.SetMaxOutputTokens(int32(*p.cfg.MaxOutputTokens))
	}

	history, last := BuildContents(req.History)
	if last == nil {
		return genie.AssistantMessage{}, errors.New("genie/providers/google: request has no user message")
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath)
	if err != nil {
		return genie.AssistantMessage{}, err
	}
	defer debug.Close()
	requestID := base.NewRequestID()
	p.log(debug, requestID, "request", map[string]any{"system": req.SystemPrompt, "history": history, "message": last})

	chat := model.StartChat()
	chat.History = history
	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		p.log(debug, requestID, "error", err.Error())
		return genie.AssistantMessage{}, err
	}
	p.log(debug, requestID, "response", resp)

	msg := ConvertResponse(resp)
	msg.Timestamp = time.Now().UnixMilli()
	return msg, nil
}

func (p *provider) log(debug *base.DebugLogger, requestID, typ string, data any) {
	if debug == nil {
		return
	}
	rec := base.NewDebugRecord(typ, data)
	rec.RequestID = requestID
	rec.Provider = "google"
	rec.Model = p.model
	_ = debug.Log(rec)
}

// BuildContents splits the history into the prior turns and the trailing
// user turn that is sent as the new message.
func BuildContents(history []genie.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	for _, msg := range history {
		switch m := msg.(type) {
		case genie.UserMessage:
			contents = append(contents, &genai.Content{Role: "user", Parts: textParts(m.Parts)})
		case *genie.UserMessage:
			contents = append(contents, &genai.Content{Role: "user", Parts: textParts(m.Parts)})
		case genie.AssistantMessage:
			contents = append(contents, &genai.Content{Role: "model", Parts: textParts(m.Parts)})
		case *genie.AssistantMessage:
			contents = append(contents, &genai.Content{Role: "model", Parts: textParts(m.Parts)})
		}
	}
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return contents, nil
	}
	return contents[:len(contents)-1], contents[len(contents)-1]
}

func textParts(parts []genie.Part) []genai.Part {
	var out []genai.Part
	for _, part := range parts {
		switch p := part.(type) {
		case genie.TextPart:
			out = append(out, genai.Text(p.Text))
		case *genie.TextPart:
			out = append(out, genai.Text(p.Text))
		}
	}
	if len(out) == 0 {
		out = append(out, genai.Text(""))
	}
	return out
}

// ConvertResponse maps the first candidate onto an assistant message.
func ConvertResponse(resp *genai.GenerateContentResponse) genie.AssistantMessage {
	msg := genie.AssistantMessage{StopReason: genie.StopStop}
	if resp == nil {
		return msg
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					msg.Parts = append(msg.Parts, genie.TextPart{Text: string(t)})
				}
			}
		}
		switch cand.FinishReason {
		case genai.FinishReasonMaxTokens:
			msg.StopReason = genie.StopLength
		case genai.FinishReasonSafety, genai.FinishReasonRecitation:
			msg.StopReason = genie.StopError
		}
	}
	if u := resp.UsageMetadata; u != nil {
		msg.Usage = &genie.Usage{
			InputTokens:      int(u.PromptTokenCount),
			OutputTokens:     int(u.CandidatesTokenCount),
			CachedReadTokens: int(u.CachedContentTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return msg
}

package chatcompletion

import (
	"context"
	"time"

	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Config configures OpenAI Chat Completions API provider.
type Config struct {
	base.Config
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

// WithExtraBody adds a custom field to the request body.
func WithExtraBody(key string, value any) Option {
	return func(c *Config) {
		if c.ExtraBody == nil {
			c.ExtraBody = make(map[string]any)
		}
		c.ExtraBody[key] = value
	}
}

// New creates a Provider using OpenAI Chat Completions API.
// It reads OPENAI_API_KEY and OPENAI_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) genie.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "OPENAI_API_KEY", "OPENAI_BASE_URL")
	return NewWithConfig("chatcompletion", model, cfg)
}

// NewWithConfig creates a Provider from a fully resolved config without
// consulting the environment. name labels debug records.
func NewWithConfig(name, model string, cfg Config) genie.Provider {
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
	for k, v := range cfg.ExtraBody {
		clientOpts = append(clientOpts, option.WithJSONSet(k, v))
	}
	client := openai.NewClient(clientOpts...)
	return &provider{name: name, model: model, cfg: cfg, client: client}
}

type provider struct {
	name   string
	model  string
	cfg    Config
	client openai.Client
}

func (p *provider) Generate(ctx context.Context, req genie.ProviderRequest) (genie.AssistantMessage, error) {
	params := BuildMessages(req, p.model)
	params.Model = p.model

	// Apply config options
	if p.cfg.Temperature != nil {
		params.Temperature = openai.Float(*p.cfg.Temperature)
	}
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = openai.Int(int64(*p.cfg.MaxOutputTokens))
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath)
	if err != nil {
		return genie.AssistantMessage{}, err
	}
	defer debug.Close()
	requestID := base.NewRequestID()
	p.log(debug, requestID, "request", params)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		p.log(debug, requestID, "error", err.Error())
		return genie.AssistantMessage{}, err
	}
	p.log(debug, requestID, "response", completion)

	msg := ConvertCompletion(completion, p.model)
	msg.Timestamp = time.Now().UnixMilli()
	return msg, nil
}

func (p *provider) log(debug *base.DebugLogger, requestID, typ string, data any) {
	if debug == nil {
		return
	}
	rec := base.NewDebugRecord(typ, data)
	rec.RequestID = requestID
	rec.Provider = p.name
	rec.Model = p.model
	_ = debug.Log(rec)
}

// Package openrouter provides a genie.Provider for models routed through
// OpenRouter's OpenAI-compatible chat API.
package openrouter

import (
	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
	"github.com/inspirepan/genie/providers/chatcompletion"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// ReasoningEffort defines the effort level for reasoning models.
type ReasoningEffort string

const (
	ReasoningEffortHigh    ReasoningEffort = "high"
	ReasoningEffortMedium  ReasoningEffort = "medium"
	ReasoningEffortLow     ReasoningEffort = "low"
	ReasoningEffortMinimal ReasoningEffort = "minimal"
	ReasoningEffortNone    ReasoningEffort = "none"
)

// ProviderSortStrategy defines the sorting strategy for provider routing.
type ProviderSortStrategy string

const (
	ProviderSortPrice      ProviderSortStrategy = "price"
	ProviderSortThroughput ProviderSortStrategy = "throughput"
	ProviderSortLatency    ProviderSortStrategy = "latency"
)

// ProviderRouting configures OpenRouter's provider routing preferences.
type ProviderRouting struct {
	Order  []string             // Preferred provider order
	Only   []string             // Only use these providers
	Ignore []string             // Ignore these providers
	Sort   ProviderSortStrategy // Sorting strategy when order is not specified
}

// Config configures OpenRouter API provider.
type Config struct {
	base.Config

	// ThinkingBudget caps reasoning tokens for Anthropic models. It takes
	// precedence over ReasoningEffort.
	ThinkingBudget  int
	ReasoningEffort ReasoningEffort
	ProviderRouting *ProviderRouting
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the OpenRouter endpoint.
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

// WithThinkingBudget configures thinking/reasoning budget for Anthropic models.
// See: https://openrouter.ai/docs/use-cases/reasoning-tokens#anthropic-models-with-reasoning-tokens
func WithThinkingBudget(maxTokens int) Option {
	return func(c *Config) { c.ThinkingBudget = maxTokens }
}

// WithReasoningEffort sets the reasoning effort level for reasoning models.
func WithReasoningEffort(effort ReasoningEffort) Option {
	return func(c *Config) { c.ReasoningEffort = effort }
}

// WithProviderSorting sets the provider sorting strategy.
func WithProviderSorting(strategy ProviderSortStrategy) Option {
	return func(c *Config) { routing(c).Sort = strategy }
}

// WithProviderOnly restricts to only use the specified providers.
func WithProviderOnly(providers ...string) Option {
	return func(c *Config) { routing(c).Only = providers }
}

// WithProviderOrder sets the preferred provider order.
func WithProviderOrder(providers ...string) Option {
	return func(c *Config) { routing(c).Order = providers }
}

// WithProviderIgnore sets providers to ignore.
func WithProviderIgnore(providers ...string) Option {
	return func(c *Config) { routing(c).Ignore = providers }
}

func routing(c *Config) *ProviderRouting {
	if c.ProviderRouting == nil {
		c.ProviderRouting = &ProviderRouting{}
	}
	return c.ProviderRouting
}

// New creates a Provider using OpenRouter API.
// It reads OPENROUTER_API_KEY from environment if not explicitly set.
func New(model string, opts ...Option) genie.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "OPENROUTER_API_KEY", "")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return chatcompletion.NewWithConfig("openrouter", model, chatcompletion.Config{Config: withRoutingBody(cfg)})
}

// withRoutingBody folds the OpenRouter specific options into the request body.
func withRoutingBody(cfg Config) base.Config {
	out := cfg.Config
	body := make(map[string]any, len(out.ExtraBody)+3)
	// Include usage info to get cache tokens in the response
	body["usage"] = map[string]any{"include": true}

	if cfg.ThinkingBudget > 0 {
		body["reasoning"] = map[string]any{"enable": true, "max_tokens": cfg.ThinkingBudget}
	} else if cfg.ReasoningEffort != "" {
		body["reasoning"] = map[string]any{"effort": string(cfg.ReasoningEffort)}
	}

	if r := cfg.ProviderRouting; r != nil {
		provider := make(map[string]any)
		if len(r.Order) > 0 {
			provider["order"] = r.Order
		}
		if len(r.Only) > 0 {
			provider["only"] = r.Only
		}
		if len(r.Ignore) > 0 {
			provider["ignore"] = r.Ignore
		}
		if r.Sort != "" {
			provider["sort"] = string(r.Sort)
		}
		if len(provider) > 0 {
			body["provider"] = provider
		}
	}

	for k, v := range out.ExtraBody {
		body[k] = v
	}
	out.ExtraBody = body
	return out
}

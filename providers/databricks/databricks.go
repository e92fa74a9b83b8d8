// Package databricks provides a genie.Provider backed by a Databricks model
// serving endpoint through its OpenAI-compatible chat API.
package databricks

import (
	"github.com/inspirepan/genie"
	"github.com/inspirepan/genie/providers/base"
	"github.com/inspirepan/genie/providers/chatcompletion"
)

// Option is a functional option for this provider.
type Option func(*base.Config)

// WithHost sets the workspace host, e.g. https://adb-123.azuredatabricks.net.
func WithHost(host string) Option {
	return func(c *base.Config) { c.BaseURL = host }
}

// WithToken sets the personal access or OAuth token.
func WithToken(token string) Option {
	return func(c *base.Config) { c.APIKey = token }
}

// WithTemperature sets the temperature.
func WithTemperature(t float64) Option {
	return func(c *base.Config) { c.Temperature = &t }
}

// WithMaxOutputTokens sets the max output tokens.
func WithMaxOutputTokens(n int) Option {
	return func(c *base.Config) { c.MaxOutputTokens = &n }
}

// WithDebug enables JSONL debug logging to the specified file path.
func WithDebug(path string) Option {
	return func(c *base.Config) { c.DebugPath = path }
}

// New creates a Provider for the serving endpoint named endpoint.
// It reads DATABRICKS_HOST and DATABRICKS_TOKEN from environment if not explicitly set.
func New(endpoint string, opts ...Option) genie.Provider {
	cfg := base.Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg, base.EnvDatabricksToken, base.EnvDatabricksHost)
	if host := base.HostURL(cfg.BaseURL); host != "" {
		cfg.BaseURL = host + "/serving-endpoints"
	}
	return chatcompletion.NewWithConfig("databricks", endpoint, chatcompletion.Config{Config: cfg})
}

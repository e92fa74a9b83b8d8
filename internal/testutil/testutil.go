// Package testutil provides common testing utilities for provider and agent tests.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/inspirepan/genie"
)

const DefaultTimeout = 60 * time.Second

// SkipIfNoEnv skips the test if the environment variable is not set.
func SkipIfNoEnv(t *testing.T, envVar string) {
	t.Helper()
	if os.Getenv(envVar) == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
}

// Getenv returns the trimmed value of an environment variable.
func Getenv(envVar string) string {
	return strings.TrimSpace(os.Getenv(envVar))
}

// TestConfig holds configuration for a test run.
type TestConfig struct {
	Provider genie.Provider
	Timeout  time.Duration
}

// DefaultConfig returns a TestConfig with default timeout.
func DefaultConfig(provider genie.Provider) TestConfig {
	return TestConfig{
		Provider: provider,
		Timeout:  DefaultTimeout,
	}
}

// TestBasicTextGeneration tests basic text generation capability.
func TestBasicTextGeneration(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	msg, err := cfg.Provider.Generate(ctx, genie.ProviderRequest{
		History: []genie.Message{genie.NewUserText("Write a haiku")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if msg.Text() == "" {
		t.Error("expected non-empty text response")
	}
	if msg.Usage == nil {
		t.Log("warning: usage info not returned")
	} else if msg.Usage.OutputTokens == 0 {
		t.Error("expected non-zero output tokens")
	}
	t.Logf("response: %q", msg.Text())
}

// TestSystemPrompt tests that system prompt is respected.
func TestSystemPrompt(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	msg, err := cfg.Provider.Generate(ctx, genie.ProviderRequest{
		SystemPrompt: "You are a pirate. Always respond like a pirate. Use 'Arrr' in your response.",
		History:      []genie.Message{genie.NewUserText("Hello, how are you?")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	text := strings.ToLower(msg.Text())
	if !strings.Contains(text, "arrr") && !strings.Contains(text, "ahoy") && !strings.Contains(text, "matey") {
		t.Errorf("expected pirate-like response, got: %s", msg.Text())
	}
}

// TestMultiTurn tests multi-turn conversation.
func TestMultiTurn(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	msg, err := cfg.Provider.Generate(ctx, genie.ProviderRequest{
		History: []genie.Message{
			genie.NewUserText("My name is Alice."),
			genie.AssistantMessage{Parts: []genie.Part{genie.TextPart{Text: "Hello Alice! Nice to meet you."}}},
			genie.NewUserText("What is my name?"),
		},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	text := msg.Text()
	if !strings.Contains(strings.ToLower(text), "alice") {
		t.Errorf("expected response to contain 'Alice', got: %s", text)
	}
}

// TestGenieSignature runs the agent signature end to end against a live model.
func TestGenieSignature(t *testing.T, cfg TestConfig) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	pred, err := genie.Reason(ctx, genie.ReasonRequest{
		Provider:  cfg.Provider,
		Signature: genie.GenieAgentSignature(),
		Inputs: map[string]any{
			"question":    "Which region had the most revenue?",
			"genie_text":  "Revenue by region",
			"genie_query": "SELECT region, rev FROM t",
			"genie_data": []map[string]any{
				{"region": "west", "rev": 100},
				{"region": "east", "rev": 40},
			},
		},
		ChainOfThought: true,
	})
	if err != nil {
		t.Fatalf("Reason failed: %v", err)
	}
	answer := pred.String("answer")
	if !strings.Contains(strings.ToLower(answer), "west") {
		t.Errorf("expected answer to mention west, got: %s", answer)
	}
	t.Logf("reasoning: %s", pred.Reasoning)
}

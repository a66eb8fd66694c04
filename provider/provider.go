package provider

import (
	"context"
	"fmt"

	"github.com/fwerner/sitrep/config"
	anthropic_provider "github.com/fwerner/sitrep/provider/anthropic"
	openai_provider "github.com/fwerner/sitrep/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface that all LLM implementations must satisfy.
type Provider interface {
	// Complete sends a system prompt plus a single user message and returns
	// the generated text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates an LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("llm.openai.api_key not set")
		}
		return openai_provider.NewClient(cfg.OpenAI), nil
	case Anthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("llm.anthropic.api_key not set")
		}
		return anthropic_provider.NewClient(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

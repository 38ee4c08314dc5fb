// Package factory builds the configured llm.Provider.
package factory

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/newthinker/analog/internal/config"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/llm"
	"github.com/newthinker/analog/internal/llm/claude"
	"github.com/newthinker/analog/internal/llm/ollama"
	"github.com/newthinker/analog/internal/llm/openai"
)

// New creates an LLM provider based on configuration.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "claude":
		var opts []option.RequestOption
		if cfg.Claude.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Claude.BaseURL))
		}
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model, opts...)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "ollama":
		return ollama.New(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown LLM provider: %q", cfg.Provider))
	}
}

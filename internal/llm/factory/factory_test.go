package factory

import (
	"errors"
	"testing"

	"github.com/newthinker/analog/internal/config"
	"github.com/newthinker/analog/internal/core"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
		want string
	}{
		{"claude", config.LLMConfig{Provider: "claude", Claude: config.ClaudeConfig{APIKey: "k", BaseURL: "http://proxy"}}, "claude"},
		{"openai", config.LLMConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini"}}, "openai"},
		{"ollama", config.LLMConfig{Provider: "ollama", Ollama: config.OllamaConfig{Model: "llama3"}}, "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("expected %s provider, got %s", tt.want, p.Name())
			}
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "unknown"})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestNew_ClaudeMissingKey(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "claude"})
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

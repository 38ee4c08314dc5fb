package claude

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/llm"
)

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "model")
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestParams_JSONModeAddsDirective(t *testing.T) {
	p, _ := New("key", "")
	params := p.params(llm.ChatRequest{
		SystemPrompt: "Classify headlines.",
		Messages:     []llm.Message{{Role: "user", Content: "Fed hikes"}},
		JSONMode:     true,
	})

	if len(params.System) != 1 || !strings.HasSuffix(params.System[0].Text, jsonDirective) {
		t.Errorf("system prompt missing JSON directive: %+v", params.System)
	}
	if params.MaxTokens != llm.DefaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", params.MaxTokens)
	}
	if string(params.Model) != defaultModel {
		t.Errorf("expected default model, got %s", params.Model)
	}
}

func TestChat_AgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Fed hikes") {
			t.Errorf("request body missing message: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"{\"event_type\":\"Monetary Policy\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":7}}`)
	}))
	defer srv.Close()

	p, err := New("key", "m", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "Fed hikes"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"event_type":"Monetary Policy"}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestChat_ServerErrorIsLLMFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New("key", "m", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := p.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed, got %v", err)
	}
}

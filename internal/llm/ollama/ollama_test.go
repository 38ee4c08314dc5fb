package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/llm"
)

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.endpoint != defaultEndpoint {
		t.Errorf("expected default endpoint, got %s", p.endpoint)
	}
	if p.model != defaultModel {
		t.Errorf("expected default model, got %s", p.model)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	p, _ := New("http://custom:8080/", "llama3")
	if p.endpoint != "http://custom:8080" {
		t.Errorf("expected trimmed endpoint, got %s", p.endpoint)
	}
}

func TestChat_SendsJSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("system prompt not first: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Message:         chatMessage{Role: "assistant", Content: `{"sector":"Energy"}`},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 20,
			EvalCount:       6,
		})
	}))
	defer srv.Close()

	p, _ := New(srv.URL, "llama3")
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		SystemPrompt: "classify",
		Messages:     []llm.Message{{Role: "user", Content: "OPEC cuts output"}},
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"sector":"Energy"}` || resp.Usage.OutputTokens != 6 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestChat_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := New(srv.URL, "missing")
	_, err := p.Chat(context.Background(), llm.ChatRequest{})
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("expected ErrLLMFailed, got %v", err)
	}
}

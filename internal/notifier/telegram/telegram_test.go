package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/notifier"
)

var _ notifier.Notifier = (*Telegram)(nil)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ChatID: "1"})
	assert.Error(t, err)
	_, err = New(Config{BotToken: "t"})
	assert.Error(t, err)
}

func TestTelegram_Send(t *testing.T) {
	var path string
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tg, err := New(Config{BotToken: "abc", ChatID: "42", APIBase: server.URL})
	require.NoError(t, err)

	strike := 415.0
	expiry := time.Date(2022, 11, 18, 0, 0, 0, 0, time.UTC)
	rec := core.TradeRecommendation{
		Classification:  core.HeadlineClassification{Headline: core.Headline{Title: "CPI cools"}},
		Ticker:          "QQQ",
		OptionType:      core.OptionCall,
		Strike:          &strike,
		Expiry:          &expiry,
		ExpectedMovePct: 7.4,
		Confidence:      0.55,
		ConfidenceLevel: "medium",
	}
	require.NoError(t, tg.Send(context.Background(), rec))

	assert.Equal(t, "/botabc/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	text, _ := body["text"].(string)
	assert.Contains(t, text, "*QQQ CALL* 415.00 exp 2022-11-18")
	assert.Contains(t, text, "+7.40%")
	assert.NotContains(t, text, "fallback")
}

func TestTelegram_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	tg, err := New(Config{BotToken: "abc", ChatID: "42", APIBase: server.URL})
	require.NoError(t, err)
	assert.ErrorContains(t, tg.Send(context.Background(), core.TradeRecommendation{OptionType: core.OptionCall}), "chat not found")
}

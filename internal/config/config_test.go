package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/analog/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  min_score: 0.6
  max_matches: 3
  enrichment_timeout: 2s
catalog:
  path: "/srv/analog/events.yaml"
storage:
  type: s3
  s3:
    bucket: analog-recs
    region: us-east-1
feeds:
  sources:
    - name: reuters
      url: "https://example.com/rss"
  max_age: 12h
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Engine.MinScore)
	assert.Equal(t, 3, cfg.Engine.MaxMatches)
	assert.Equal(t, 2*time.Second, cfg.Engine.EnrichmentTimeout)
	assert.Equal(t, "/srv/analog/events.yaml", cfg.Catalog.Path)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "analog-recs", cfg.Storage.S3.Bucket)
	require.Len(t, cfg.Feeds.Sources, 1)
	assert.Equal(t, "reuters", cfg.Feeds.Sources[0].Name)
	assert.Equal(t, 12*time.Hour, cfg.Feeds.MaxAge)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.4, cfg.Engine.EventTypeWeight)
	assert.Equal(t, 5, cfg.Engine.ExpiryHorizonDays)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("ANALOG_TEST_CLAUDE_KEY", "sk-test")
	path := writeConfig(t, `
classifier:
  mode: llm
llm:
  provider: claude
  claude:
    api_key: "${ANALOG_TEST_CLAUDE_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.Claude.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Engine.AdjustmentFactor)
	assert.Equal(t, 14, cfg.Engine.ExpiryToleranceDays)
	assert.Equal(t, "keyword", cfg.Classifier.Mode)
	assert.Equal(t, "localfs", cfg.Storage.Type)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"defaults", func(*Config) {}, nil},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"negative weight", func(c *Config) { c.Engine.KeywordWeight = -0.1 }, core.ErrConfigInvalid},
		{"all weights zero", func(c *Config) {
			c.Engine.EventTypeWeight, c.Engine.SentimentWeight, c.Engine.SectorWeight, c.Engine.KeywordWeight = 0, 0, 0, 0
		}, core.ErrConfigInvalid},
		{"min score above one", func(c *Config) { c.Engine.MinScore = 1.5 }, core.ErrConfigInvalid},
		{"no matches", func(c *Config) { c.Engine.MaxMatches = 0 }, core.ErrConfigInvalid},
		{"zero horizon", func(c *Config) { c.Engine.ExpiryHorizonDays = 0 }, core.ErrConfigInvalid},
		{"adjustment factor zero", func(c *Config) { c.Engine.AdjustmentFactor = 0 }, core.ErrConfigInvalid},
		{"adjustment factor above one", func(c *Config) { c.Engine.AdjustmentFactor = 1.2 }, core.ErrConfigInvalid},
		{"inverted volatility band", func(c *Config) { c.Engine.VolScaleMin, c.Engine.VolScaleMax = 2, 1 }, core.ErrConfigInvalid},
		{"zero enrichment timeout", func(c *Config) { c.Engine.EnrichmentTimeout = 0 }, core.ErrConfigInvalid},
		{"no catalog", func(c *Config) { c.Catalog.Path = "" }, core.ErrConfigMissing},
		{"unknown market data", func(c *Config) { c.MarketData.Provider = "bloomberg" }, core.ErrConfigInvalid},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, core.ErrConfigMissing},
		{"notify confidence above one", func(c *Config) { c.Notify.MinConfidence = 1.5 }, core.ErrConfigInvalid},
		{"telegram without chat", func(c *Config) { c.Notify.Telegram.BotToken = "t" }, core.ErrConfigMissing},
		{"llm mode without provider", func(c *Config) { c.Classifier.Mode = "llm" }, core.ErrConfigMissing},
		{"claude without key", func(c *Config) { c.LLM.Provider = "claude" }, core.ErrConfigMissing},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "palm" }, core.ErrConfigInvalid},
		{"ollama with endpoint", func(c *Config) {
			c.Classifier.Mode = "llm"
			c.LLM.Provider = "ollama"
			c.LLM.Ollama.Endpoint = "http://localhost:11434"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngineConfig_ComponentConfigs(t *testing.T) {
	e := Defaults().Engine
	e.EnrichmentTimeout = 3 * time.Second
	e.EnrichmentAttempts = 3

	m := e.MatcherConfig()
	assert.Equal(t, 7, m.AnalysisDays)
	assert.Equal(t, 3*time.Second, m.Retry.Timeout)
	assert.Equal(t, 3, m.Retry.Attempts)

	a := e.AdjusterConfig()
	assert.Equal(t, 0.7, a.RealizedWeight)
	assert.Equal(t, 0.5, a.ScaleMin)
	assert.Equal(t, 2.0, a.ScaleMax)

	r := e.RecommenderConfig()
	assert.Equal(t, 0.5, r.AdjustmentFactor)
	assert.NotNil(t, r.Now)

	p := e.PipelineConfig()
	assert.Equal(t, 5, p.MaxMatches)
	assert.Equal(t, 5, p.HorizonDays)

	w := e.ScorerWeights()
	assert.Equal(t, 0.3, w.Sentiment)
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/analog/internal/classifier"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/evaluate"
	"github.com/newthinker/analog/internal/feed"
	"github.com/newthinker/analog/internal/logger"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/marketdata/yahoo"
	"github.com/newthinker/analog/internal/match"
	"github.com/newthinker/analog/internal/notifier"
	"github.com/newthinker/analog/internal/notifier/telegram"
	"github.com/newthinker/analog/internal/notifier/webhook"
	"github.com/newthinker/analog/internal/pipeline"
	"github.com/newthinker/analog/internal/recommend"
	"github.com/newthinker/analog/internal/storage/archive"
	"github.com/newthinker/analog/internal/volatility"
)

type Config struct {
	Engine     EngineConfig     `mapstructure:"engine"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Feeds      feed.Config      `mapstructure:"feeds"`
	Evaluate   EvaluateConfig   `mapstructure:"evaluate"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        logger.Config    `mapstructure:"log"`
}

// EngineConfig holds the matching and recommendation tunables.
type EngineConfig struct {
	EventTypeWeight     float64       `mapstructure:"event_type_weight"`
	SentimentWeight     float64       `mapstructure:"sentiment_weight"`
	SectorWeight        float64       `mapstructure:"sector_weight"`
	KeywordWeight       float64       `mapstructure:"keyword_weight"`
	MismatchCap         float64       `mapstructure:"mismatch_cap"`
	MinScore            float64       `mapstructure:"min_score"`
	MaxMatches          int           `mapstructure:"max_matches"`
	AnalysisDays        int           `mapstructure:"analysis_days"`
	ExpiryHorizonDays   int           `mapstructure:"expiry_horizon_days"`
	ExpiryToleranceDays int           `mapstructure:"expiry_tolerance_days"`
	AdjustmentFactor    float64       `mapstructure:"adjustment_factor"`
	MinConfidence       float64       `mapstructure:"min_confidence"`
	RealizedWeight      float64       `mapstructure:"realized_weight"`
	VolScaleMin         float64       `mapstructure:"volatility_scale_min"`
	VolScaleMax         float64       `mapstructure:"volatility_scale_max"`
	EnrichmentTimeout   time.Duration `mapstructure:"enrichment_timeout"`
	EnrichmentAttempts  int           `mapstructure:"enrichment_attempts"`
	Workers             int           `mapstructure:"workers"`
	BatchWorkers        int           `mapstructure:"batch_workers"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// MarketDataConfig selects the market data vendor. "mock" serves an empty
// in-memory provider, which makes every run take the fallback paths.
type MarketDataConfig struct {
	Provider string       `mapstructure:"provider"` // "yahoo" or "mock"
	Yahoo    yahoo.Config `mapstructure:"yahoo"`
}

// ClassifierConfig picks how headlines are tagged. With mode "llm" the
// keyword classifier still backs up a failing model when Fallback is set.
type ClassifierConfig struct {
	Mode        string        `mapstructure:"mode"` // "keyword" or "llm"
	Fallback    bool          `mapstructure:"fallback"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// StorageConfig selects where recommendations are kept.
type StorageConfig struct {
	Type       string           `mapstructure:"type"` // "memory", "localfs" or "s3"
	Path       string           `mapstructure:"path"` // for localfs
	S3         archive.S3Config `mapstructure:"s3"`
	MaxRecords int              `mapstructure:"max_records"` // for memory
}

type EvaluateConfig struct {
	Days            int     `mapstructure:"days"`
	ThresholdPct    float64 `mapstructure:"threshold_pct"`
	ExcludeDegraded bool    `mapstructure:"exclude_degraded"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	APIKey       string        `mapstructure:"api_key"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NotifyConfig selects the channels that receive CALL and PUT
// recommendations. A channel is enabled once its URL or token is set.
type NotifyConfig struct {
	notifier.Config `mapstructure:",squash"`
	Webhook         webhook.Config  `mapstructure:"webhook"`
	Telegram        telegram.Config `mapstructure:"telegram"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	w := match.DefaultWeights()
	rec := recommend.DefaultConfig()
	vol := volatility.DefaultConfig()
	ev := evaluate.DefaultConfig()
	llmCls := classifier.DefaultLLMConfig()

	return &Config{
		Engine: EngineConfig{
			EventTypeWeight:     w.EventType,
			SentimentWeight:     w.Sentiment,
			SectorWeight:        w.Sector,
			KeywordWeight:       w.Keyword,
			MismatchCap:         match.DefaultMismatchCap,
			MinScore:            0.5,
			MaxMatches:          5,
			AnalysisDays:        match.DefaultAnalysisDays,
			ExpiryHorizonDays:   5,
			ExpiryToleranceDays: rec.ExpiryToleranceDays,
			AdjustmentFactor:    rec.AdjustmentFactor,
			MinConfidence:       rec.MinConfidence,
			RealizedWeight:      vol.RealizedWeight,
			VolScaleMin:         vol.ScaleMin,
			VolScaleMax:         vol.ScaleMax,
			EnrichmentTimeout:   5 * time.Second,
			EnrichmentAttempts:  2,
			Workers:             8,
			BatchWorkers:        4,
		},
		Catalog: CatalogConfig{
			Path: "data/historical_events.json",
		},
		MarketData: MarketDataConfig{
			Provider: "yahoo",
			Yahoo: yahoo.Config{
				Timeout:           10 * time.Second,
				RequestsPerSecond: 2,
			},
		},
		Classifier: ClassifierConfig{
			Mode:      "keyword",
			Fallback:  true,
			Timeout:   llmCls.Timeout,
			MaxTokens: llmCls.MaxTokens,
		},
		Storage: StorageConfig{
			Type:       "localfs",
			Path:       "data/archive",
			MaxRecords: 1000,
		},
		Feeds: feed.Config{
			Timeout:        15 * time.Second,
			MaxItems:       20,
			MaxAge:         24 * time.Hour,
			MaxConcurrency: 4,
		},
		Evaluate: EvaluateConfig{
			Days:         ev.Days,
			ThresholdPct: ev.ThresholdPct,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Notify: NotifyConfig{
			Config: notifier.Config{MinConfidence: 0.5, Cooldown: time.Hour},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: logger.Config{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Catalog.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("catalog.path required"))
	}

	switch c.MarketData.Provider {
	case "yahoo", "mock":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown market_data provider %q", c.MarketData.Provider))
	}

	switch c.Storage.Type {
	case "memory":
	case "localfs":
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.path required for localfs"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.s3.bucket required for s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if c.Notify.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notify.cooldown must not be negative"))
	}
	if c.Notify.MinConfidence < 0 || c.Notify.MinConfidence > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("notify.min_confidence must be in [0, 1], got %v", c.Notify.MinConfidence))
	}
	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("notify.telegram needs both bot_token and chat_id"))
	}

	if c.Evaluate.Days < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("evaluate.days must be positive, got %d", c.Evaluate.Days))
	}

	switch c.Classifier.Mode {
	case "keyword":
	case "llm":
		if c.LLM.Provider == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("llm.provider required when classifier mode is llm"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown classifier mode %q", c.Classifier.Mode))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
		}
	}

	return nil
}

// Validate checks the engine tunables by building each component config.
func (e EngineConfig) Validate() error {
	if _, err := match.NewScorer(e.ScorerWeights(), e.MismatchCap); err != nil {
		return err
	}
	if e.MinScore < 0 || e.MinScore > 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("min_score must be in [0, 1], got %v", e.MinScore))
	}
	if e.MaxMatches < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("max_matches must be positive, got %d", e.MaxMatches))
	}
	if e.ExpiryHorizonDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("expiry_horizon_days must be positive, got %d", e.ExpiryHorizonDays))
	}
	if e.EnrichmentTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("enrichment_timeout must be positive, got %s", e.EnrichmentTimeout))
	}
	if err := e.AdjusterConfig().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if err := e.RecommenderConfig().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	return nil
}

func (e EngineConfig) ScorerWeights() match.Weights {
	return match.Weights{
		EventType: e.EventTypeWeight,
		Sentiment: e.SentimentWeight,
		Sector:    e.SectorWeight,
		Keyword:   e.KeywordWeight,
	}
}

// RetryPolicy bounds every market data fetch made by the engine.
func (e EngineConfig) RetryPolicy() marketdata.RetryPolicy {
	p := marketdata.DefaultRetryPolicy()
	p.Timeout = e.EnrichmentTimeout
	if e.EnrichmentAttempts > 0 {
		p.Attempts = e.EnrichmentAttempts
	}
	return p
}

func (e EngineConfig) MatcherConfig() match.Config {
	return match.Config{
		AnalysisDays: e.AnalysisDays,
		Workers:      e.Workers,
		Retry:        e.RetryPolicy(),
	}
}

func (e EngineConfig) AdjusterConfig() volatility.Config {
	return volatility.Config{
		RealizedWeight: e.RealizedWeight,
		AnalysisDays:   e.AnalysisDays,
		ScaleMin:       e.VolScaleMin,
		ScaleMax:       e.VolScaleMax,
		Retry:          e.RetryPolicy(),
	}
}

func (e EngineConfig) RecommenderConfig() recommend.Config {
	return recommend.Config{
		MinConfidence:       e.MinConfidence,
		AdjustmentFactor:    e.AdjustmentFactor,
		ExpiryToleranceDays: e.ExpiryToleranceDays,
		Retry:               e.RetryPolicy(),
		Now:                 time.Now,
	}
}

func (e EngineConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxMatches:  e.MaxMatches,
		MinScore:    e.MinScore,
		HorizonDays: e.ExpiryHorizonDays,
		Workers:     e.BatchWorkers,
	}
}

// LLMClassifierConfig returns the classifier call settings.
func (c ClassifierConfig) LLMClassifierConfig() classifier.LLMConfig {
	return classifier.LLMConfig{
		Timeout:     c.Timeout,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

func (e EvaluateConfig) EvaluatorConfig(retry marketdata.RetryPolicy) evaluate.Config {
	cfg := evaluate.DefaultConfig()
	cfg.Days = e.Days
	cfg.ThresholdPct = e.ThresholdPct
	cfg.ExcludeDegraded = e.ExcludeDegraded
	cfg.Retry = retry
	return cfg
}

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/catalog"
	"github.com/newthinker/analog/internal/classifier"
	"github.com/newthinker/analog/internal/config"
	"github.com/newthinker/analog/internal/llm/factory"
	"github.com/newthinker/analog/internal/logger"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/marketdata/mock"
	"github.com/newthinker/analog/internal/marketdata/yahoo"
	"github.com/newthinker/analog/internal/match"
	"github.com/newthinker/analog/internal/metrics"
	"github.com/newthinker/analog/internal/notifier"
	"github.com/newthinker/analog/internal/notifier/telegram"
	"github.com/newthinker/analog/internal/notifier/webhook"
	"github.com/newthinker/analog/internal/pipeline"
	"github.com/newthinker/analog/internal/recommend"
	"github.com/newthinker/analog/internal/storage/archive"
	"github.com/newthinker/analog/internal/storage/recommendation"
	"github.com/newthinker/analog/internal/volatility"
)

// loadConfig reads --config or falls back to defaults, then validates.
func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setup loads config and builds the logger every command starts with.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	return cfg, log, nil
}

// engine bundles the wired components of one process.
type engine struct {
	cfg      *config.Config
	log      *zap.Logger
	catalog  *catalog.Holder
	market   marketdata.Provider
	store    recommendation.Store
	metrics  *metrics.Registry
	notifier *notifier.Registry // nil when no channel is configured
	pipeline *pipeline.Pipeline
}

// buildEngine wires catalog, market data, classifier, storage and pipeline.
// A catalog that fails to load is fatal.
func buildEngine(cfg *config.Config, log *zap.Logger) (*engine, error) {
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	holder := catalog.NewHolder(cat, cfg.Catalog.Path, log.Named("catalog"))
	log.Info("catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("templates", cat.Len()))

	market := newMarketData(cfg, log)

	store, err := newStore(cfg, log)
	if err != nil {
		return nil, err
	}

	cls, err := newClassifier(cfg, log)
	if err != nil {
		return nil, err
	}

	scorer, err := match.NewScorer(cfg.Engine.ScorerWeights(), cfg.Engine.MismatchCap)
	if err != nil {
		return nil, err
	}

	notify, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	reg.SetCatalogSize(cat.Len())

	p, err := pipeline.New(cfg.Engine.PipelineConfig(), pipeline.Deps{
		Classifier:  cls,
		Catalog:     holder,
		Matcher:     match.NewMatcher(scorer, market, cfg.Engine.MatcherConfig(), log.Named("match")),
		Adjuster:    volatility.NewAdjuster(market, cfg.Engine.AdjusterConfig(), log.Named("volatility")),
		Recommender: recommend.NewRecommender(market, cfg.Engine.RecommenderConfig(), log.Named("recommend")),
		Chains:      market,
		Store:       store,
		Notifier:    notify,
		Metrics:     reg,
		Logger:      log.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		log:      log,
		catalog:  holder,
		market:   market,
		store:    store,
		metrics:  reg,
		notifier: notify,
		pipeline: p,
	}, nil
}

func newMarketData(cfg *config.Config, log *zap.Logger) marketdata.Provider {
	if cfg.MarketData.Provider == "mock" {
		log.Warn("using empty mock market data; every recommendation will be degraded")
		return mock.New()
	}
	return yahoo.New(cfg.MarketData.Yahoo, log.Named("yahoo"))
}

// newStore opens the configured recommendation store without touching the
// catalog or market data, so read-only commands can use it alone.
func newStore(cfg *config.Config, log *zap.Logger) (recommendation.Store, error) {
	var backend archive.Storage
	switch cfg.Storage.Type {
	case "memory":
		return recommendation.NewMemoryStore(cfg.Storage.MaxRecords), nil
	case "localfs":
		fs, err := archive.NewLocalFS(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		backend = fs
	case "s3":
		s3, err := archive.NewS3(cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		backend = s3
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	return recommendation.NewArchiveStore(backend, log.Named("store")), nil
}

// newClassifier returns the keyword classifier, or the LLM classifier with
// the keyword rules as backup when fallback is enabled.
func newClassifier(cfg *config.Config, log *zap.Logger) (classifier.Classifier, error) {
	keyword := classifier.NewKeywordClassifier()
	if cfg.Classifier.Mode != "llm" {
		return keyword, nil
	}

	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	llmCls := classifier.NewLLMClassifier(provider, cfg.Classifier.LLMClassifierConfig(), log.Named("classifier"))
	if !cfg.Classifier.Fallback {
		return llmCls, nil
	}
	return classifier.NewChain(log.Named("classifier"), llmCls, keyword)
}

// newNotifier registers every configured channel. It returns nil when none
// is configured.
func newNotifier(cfg *config.Config, log *zap.Logger) (*notifier.Registry, error) {
	reg := notifier.NewRegistry(cfg.Notify.Config)
	if cfg.Notify.Webhook.URL != "" {
		w, err := webhook.New(cfg.Notify.Webhook)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(w); err != nil {
			return nil, err
		}
	}
	if cfg.Notify.Telegram.BotToken != "" {
		tg, err := telegram.New(cfg.Notify.Telegram)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tg); err != nil {
			return nil, err
		}
	}
	if reg.Len() == 0 {
		return nil, nil
	}
	log.Info("notifications enabled", zap.Strings("notifiers", reg.Names()))
	return reg, nil
}

// Package feed pulls headlines from RSS and Atom feeds.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/analog/internal/core"
)

// Source is one configured feed.
type Source struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Config controls a fetch.
type Config struct {
	Sources        []Source      `mapstructure:"sources"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxItems       int           `mapstructure:"max_items"` // per feed, 0 means all
	MaxAge         time.Duration `mapstructure:"max_age"`   // 0 keeps everything
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// Ingestor fetches configured feeds once per call.
type Ingestor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewIngestor creates an ingestor.
func NewIngestor(cfg Config, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Ingestor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// Fetch returns de-duplicated headlines from every reachable feed, newest
// first. Unreachable feeds are logged and skipped; Fetch fails only when
// every feed fails.
func (in *Ingestor) Fetch(ctx context.Context) ([]core.Headline, error) {
	if len(in.cfg.Sources) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no feeds configured"))
	}

	results := make([][]core.Headline, len(in.cfg.Sources))
	errs := make([]error, len(in.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.MaxConcurrency)
	for i, src := range in.cfg.Sources {
		g.Go(func() error {
			items, err := in.fetchOne(gctx, src)
			if err != nil {
				in.logger.Warn("feed fetch failed", zap.String("feed", src.Name), zap.String("url", src.URL), zap.Error(err))
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(in.cfg.Sources) {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("all %d feeds failed: %w", failed, errs[0]))
	}

	out := dedupe(slices.Concat(results...))
	slices.SortStableFunc(out, func(a, b core.Headline) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	in.logger.Info("feeds fetched",
		zap.Int("feeds", len(in.cfg.Sources)),
		zap.Int("failed", failed),
		zap.Int("headlines", len(out)),
	)
	return out, nil
}

func (in *Ingestor) fetchOne(ctx context.Context, src Source) ([]core.Headline, error) {
	parser := gofeed.NewParser()
	parser.Client = in.client
	parser.UserAgent = "analog/1.0"

	f, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}

	name := src.Name
	if name == "" {
		name = f.Title
	}

	cutoff := time.Time{}
	if in.cfg.MaxAge > 0 {
		cutoff = in.now().Add(-in.cfg.MaxAge)
	}

	var out []core.Headline
	for _, item := range f.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		published := itemTime(item)
		if !cutoff.IsZero() && !published.IsZero() && published.Before(cutoff) {
			continue
		}
		out = append(out, core.Headline{
			Title:       title,
			Source:      name,
			URL:         item.Link,
			PublishedAt: published,
		})
		if in.cfg.MaxItems > 0 && len(out) >= in.cfg.MaxItems {
			break
		}
	}
	return out, nil
}

func itemTime(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

// dedupe keeps the first headline for each normalised title.
func dedupe(hs []core.Headline) []core.Headline {
	seen := make(map[string]bool, len(hs))
	out := make([]core.Headline, 0, len(hs))
	for _, h := range hs {
		key := strings.Join(strings.Fields(strings.ToLower(h.Title)), " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}

// Package classifier tags headlines with the controlled vocabulary.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
)

// Classifier turns a headline into a validated classification.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, h core.Headline) (core.HeadlineClassification, error)
}

// Chain tries each classifier in order and returns the first success.
type Chain struct {
	classifiers []Classifier
	logger      *zap.Logger
}

// NewChain builds a chain. It needs at least one classifier.
func NewChain(logger *zap.Logger, classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no classifiers configured"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{classifiers: classifiers, logger: logger}, nil
}

func (c *Chain) Name() string {
	return c.classifiers[0].Name()
}

func (c *Chain) Classify(ctx context.Context, h core.Headline) (core.HeadlineClassification, error) {
	var lastErr error
	for _, cl := range c.classifiers {
		out, err := cl.Classify(ctx, h)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return core.HeadlineClassification{}, core.WrapError(core.ErrClassification, ctx.Err())
		}
		c.logger.Warn("classifier failed, trying next",
			zap.String("classifier", cl.Name()),
			zap.String("headline", h.Title),
			zap.Error(err),
		)
		lastErr = err
	}
	return core.HeadlineClassification{}, lastErr
}

// Package recommendation persists trade recommendations.
package recommendation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/analog/internal/core"
)

// Store defines the interface for recommendation persistence.
type Store interface {
	// Save persists rec, assigning ID and CreatedAt when they are empty.
	Save(ctx context.Context, rec *core.TradeRecommendation) error

	// GetByID retrieves a recommendation by its ID.
	GetByID(ctx context.Context, id string) (*core.TradeRecommendation, error)

	// List retrieves recommendations matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.TradeRecommendation, error)

	// Count returns the number of recommendations matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing recommendations.
type ListFilter struct {
	Ticker     string
	OptionType core.OptionType
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

func (f ListFilter) matches(rec core.TradeRecommendation) bool {
	if f.Ticker != "" && rec.Ticker != f.Ticker {
		return false
	}
	if f.OptionType != "" && rec.OptionType != f.OptionType {
		return false
	}
	if !f.From.IsZero() && rec.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// page applies offset and limit.
func (f ListFilter) page(recs []core.TradeRecommendation) []core.TradeRecommendation {
	if f.Offset >= len(recs) {
		return []core.TradeRecommendation{}
	}
	if f.Offset > 0 {
		recs = recs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(recs) {
		recs = recs[:f.Limit]
	}
	return recs
}

func assignIdentity(rec *core.TradeRecommendation, now time.Time) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
}

func newestFirst(a, b core.TradeRecommendation) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

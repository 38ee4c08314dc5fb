// Package notifier pushes actionable recommendations to external channels.
package notifier

import (
	"context"

	"github.com/newthinker/analog/internal/core"
)

// Notifier delivers one recommendation to a channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers rec. Implementations must honor ctx cancellation.
	Send(ctx context.Context, rec core.TradeRecommendation) error
}

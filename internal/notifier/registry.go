package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/analog/internal/core"
)

// Config controls which recommendations reach the notifiers.
type Config struct {
	MinConfidence float64       `mapstructure:"min_confidence"`
	Cooldown      time.Duration `mapstructure:"cooldown"` // per ticker and direction, 0 disables
}

// Registry fans a recommendation out to every registered notifier.
// Only CALL and PUT recommendations at or above MinConfidence are sent, and
// at most one per ticker and direction within Cooldown.
type Registry struct {
	cfg Config
	now func() time.Time

	mu        sync.RWMutex
	notifiers map[string]Notifier
	cooldowns map[string]time.Time // ticker/direction -> last sent
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:       cfg,
		now:       time.Now,
		notifiers: make(map[string]Notifier),
		cooldowns: make(map[string]time.Time),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}
	r.notifiers[name] = n
	return nil
}

// Names returns the registered notifier names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered notifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

func cooldownKey(rec core.TradeRecommendation) string {
	return rec.Ticker + "/" + string(rec.OptionType)
}

// claim reports whether rec passes the confidence and cooldown filters and,
// if so, starts its cooldown. Callers hold r.mu.
func (r *Registry) claim(rec core.TradeRecommendation) bool {
	if rec.OptionType == core.OptionAbstain || rec.Confidence < r.cfg.MinConfidence {
		return false
	}
	now := r.now()
	key := cooldownKey(rec)
	if last, ok := r.cooldowns[key]; ok && r.cfg.Cooldown > 0 && now.Sub(last) < r.cfg.Cooldown {
		return false
	}
	r.cooldowns[key] = now
	return true
}

// NotifyAll sends rec to every notifier and returns the failures by name.
// Filtered recommendations are dropped and yield nil; a sent one yields a
// non-nil, possibly empty, map.
func (r *Registry) NotifyAll(ctx context.Context, rec core.TradeRecommendation) map[string]error {
	r.mu.Lock()
	if !r.claim(rec) {
		r.mu.Unlock()
		return nil
	}
	targets := make(map[string]Notifier, len(r.notifiers))
	for name, n := range r.notifiers {
		targets[name] = n
	}
	r.mu.Unlock()

	errs := make(map[string]error)
	for name, n := range targets {
		if err := n.Send(ctx, rec); err != nil {
			errs[name] = err
		}
	}
	return errs
}

// CleanupExpiredCooldowns drops entries older than twice the cooldown and
// returns how many were removed. With no cooldown every entry goes.
func (r *Registry) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-2 * r.cfg.Cooldown)
	removed := 0
	for key, last := range r.cooldowns {
		if last.Before(cutoff) {
			delete(r.cooldowns, key)
			removed++
		}
	}
	return removed
}

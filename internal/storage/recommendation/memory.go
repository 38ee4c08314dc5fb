package recommendation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/newthinker/analog/internal/core"
)

// MemoryStore is an in-memory recommendation store holding at most maxSize records.
type MemoryStore struct {
	recs    []core.TradeRecommendation
	maxSize int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		recs:    make([]core.TradeRecommendation, 0, min(maxSize, 64)),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Save adds a recommendation to the store.
func (m *MemoryStore) Save(ctx context.Context, rec *core.TradeRecommendation) error {
	if rec == nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("nil recommendation"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	assignIdentity(rec, m.now())
	m.recs = append(m.recs, *rec)

	// Oldest records go first once over capacity.
	if len(m.recs) > m.maxSize {
		m.recs = m.recs[len(m.recs)-m.maxSize:]
	}
	return nil
}

// GetByID retrieves a recommendation by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.TradeRecommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.recs {
		if m.recs[i].ID == id {
			rec := m.recs[i]
			return &rec, nil
		}
	}
	return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("recommendation %s", id))
}

// List returns recommendations matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.TradeRecommendation, error) {
	m.mu.RLock()
	result := []core.TradeRecommendation{}
	for _, rec := range m.recs {
		if filter.matches(rec) {
			result = append(result, rec)
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(result, newestFirst)
	return filter.page(result), nil
}

// Count returns the count of matching recommendations.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.recs {
		if filter.matches(rec) {
			count++
		}
	}
	return count, nil
}

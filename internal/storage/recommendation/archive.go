package recommendation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/storage/archive"
)

const rootPrefix = "recommendations"

// ArchiveStore keeps one JSON document per recommendation in an archive.Storage.
type ArchiveStore struct {
	storage archive.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewArchiveStore wraps storage.
func NewArchiveStore(storage archive.Storage, logger *zap.Logger) *ArchiveStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveStore{storage: storage, logger: logger, now: time.Now}
}

// Key returns the storage path for a recommendation.
func Key(rec core.TradeRecommendation) string {
	return path.Join(rootPrefix, rec.CreatedAt.UTC().Format("2006/01/02"), rec.ID+".json")
}

func (a *ArchiveStore) Save(ctx context.Context, rec *core.TradeRecommendation) error {
	if rec == nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("nil recommendation"))
	}
	assignIdentity(rec, a.now())
	if strings.ContainsAny(rec.ID, `/\`) {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("invalid recommendation id %q", rec.ID))
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := a.storage.Write(ctx, Key(*rec), data); err != nil {
		return err
	}
	a.logger.Debug("recommendation archived", zap.String("id", rec.ID), zap.String("key", Key(*rec)))
	return nil
}

func (a *ArchiveStore) GetByID(ctx context.Context, id string) (*core.TradeRecommendation, error) {
	keys, err := a.storage.List(ctx, rootPrefix)
	if err != nil {
		return nil, err
	}
	suffix := "/" + id + ".json"
	for _, key := range keys {
		if strings.HasSuffix(key, suffix) {
			return a.read(ctx, key)
		}
	}
	return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("recommendation %s", id))
}

func (a *ArchiveStore) List(ctx context.Context, filter ListFilter) ([]core.TradeRecommendation, error) {
	recs, err := a.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, newestFirst)
	return filter.page(recs), nil
}

func (a *ArchiveStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	recs, err := a.scan(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// scan reads every document and keeps those matching filter. Unreadable
// documents are logged and skipped.
func (a *ArchiveStore) scan(ctx context.Context, filter ListFilter) ([]core.TradeRecommendation, error) {
	keys, err := a.storage.List(ctx, rootPrefix)
	if err != nil {
		return nil, err
	}

	result := []core.TradeRecommendation{}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		rec, err := a.read(ctx, key)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			a.logger.Warn("skipping unreadable recommendation", zap.String("key", key), zap.Error(err))
			continue
		}
		if filter.matches(*rec) {
			result = append(result, *rec)
		}
	}
	return result, nil
}

func (a *ArchiveStore) read(ctx context.Context, key string) (*core.TradeRecommendation, error) {
	data, err := a.storage.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	var rec core.TradeRecommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", key, err))
	}
	return &rec, nil
}

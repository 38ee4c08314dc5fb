package catalog

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Holder publishes the current catalog and swaps it atomically on reload.
// Readers take a snapshot with Current and keep using it for a whole run.
type Holder struct {
	current atomic.Pointer[Catalog]
	path    string
	logger  *zap.Logger
}

// NewHolder wraps an already loaded catalog. path is used by Reload.
func NewHolder(c *Catalog, path string, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Holder{path: path, logger: logger}
	h.current.Store(c)
	return h
}

// Current returns the catalog snapshot.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Reload rebuilds the catalog from disk. On failure the previous catalog
// stays in place.
func (h *Holder) Reload() error {
	c, err := LoadFile(h.path)
	if err != nil {
		h.logger.Error("catalog reload failed", zap.String("path", h.path), zap.Error(err))
		return err
	}
	h.current.Store(c)
	h.logger.Info("catalog reloaded", zap.String("path", h.path), zap.Int("templates", c.Len()))
	return nil
}

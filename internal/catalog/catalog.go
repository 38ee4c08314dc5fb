// Package catalog holds the in-memory library of historical event templates.
package catalog

import (
	"fmt"
	"strings"

	"github.com/newthinker/analog/internal/core"
)

// Catalog is an immutable, ordered set of historical event templates.
// It is built wholesale by Load and never modified afterwards.
type Catalog struct {
	templates []core.HistoricalEventTemplate
	byID      map[string]int
}

// Load validates templates and builds a catalog preserving input order.
// Any invalid template fails the whole load with core.ErrCatalogLoad.
func Load(templates []core.HistoricalEventTemplate) (*Catalog, error) {
	c := &Catalog{
		templates: make([]core.HistoricalEventTemplate, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}

	for i, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, core.WrapError(core.ErrCatalogLoad, fmt.Errorf("template %d (%s): %w", i, t.ID, err))
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, core.WrapError(core.ErrCatalogLoad, fmt.Errorf("template %d: duplicate id %q", i, t.ID))
		}

		t.Date = core.Day(t.Date)
		t.Keywords = append([]string(nil), t.Keywords...)
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}

	return c, nil
}

func validateTemplate(t core.HistoricalEventTemplate) error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("missing id")
	case t.Date.IsZero():
		return fmt.Errorf("missing date")
	case strings.TrimSpace(t.Summary) == "":
		return fmt.Errorf("missing summary")
	case strings.TrimSpace(t.Ticker) == "":
		return fmt.Errorf("missing ticker")
	}
	if !t.EventType.Valid() {
		return fmt.Errorf("unknown event type %q", t.EventType)
	}
	if err := t.Sentiment.Validate(); err != nil {
		return err
	}
	if !t.Sector.Valid() {
		return fmt.Errorf("unknown sector %q", t.Sector)
	}
	if !core.IsTradingDay(t.Date) {
		return fmt.Errorf("date %s is not a trading day", t.Date.Format("2006-01-02"))
	}
	if t.ExpectedMaxDrawdownPct > 0 {
		return fmt.Errorf("expected max drawdown %v must not be positive", t.ExpectedMaxDrawdownPct)
	}
	return nil
}

// All returns a copy of every template in insertion order.
func (c *Catalog) All() []core.HistoricalEventTemplate {
	out := make([]core.HistoricalEventTemplate, len(c.templates))
	for i, t := range c.templates {
		t.Keywords = append([]string(nil), t.Keywords...)
		out[i] = t
	}
	return out
}

// Get looks a template up by id.
func (c *Catalog) Get(id string) (core.HistoricalEventTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return core.HistoricalEventTemplate{}, false
	}
	t := c.templates[i]
	t.Keywords = append([]string(nil), t.Keywords...)
	return t, true
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/newthinker/analog/internal/core"
)

// Record is the on-disk shape of a template.
type Record struct {
	ID                     string   `json:"id" yaml:"id" validate:"required"`
	Date                   string   `json:"date" yaml:"date" validate:"required,datetime=2006-01-02,tradingday"`
	Summary                string   `json:"summary" yaml:"summary" validate:"required"`
	EventType              string   `json:"event_type" yaml:"event_type" validate:"required,eventtype"`
	Sentiment              string   `json:"sentiment" yaml:"sentiment" validate:"required,sentiment"`
	SentimentScore         float64  `json:"sentiment_score,omitempty" yaml:"sentiment_score,omitempty" validate:"gte=-1,lte=1"`
	Sector                 string   `json:"sector" yaml:"sector" validate:"required,sector"`
	Ticker                 string   `json:"ticker" yaml:"ticker" validate:"required"`
	ExpectedChangePct      *float64 `json:"expected_change_pct" yaml:"expected_change_pct" validate:"required"`
	ExpectedMaxDrawdownPct *float64 `json:"expected_max_drawdown_pct" yaml:"expected_max_drawdown_pct" validate:"required,lte=0"`
	Keywords               []string `json:"keywords,omitempty" yaml:"keywords,omitempty" validate:"dive,required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return core.EventType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("sentiment", func(fl validator.FieldLevel) bool {
		return core.SentimentLabel(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("sector", func(fl validator.FieldLevel) bool {
		return core.Sector(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("tradingday", func(fl validator.FieldLevel) bool {
		d, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil && core.IsTradingDay(d)
	})
	return v
}

// Template converts a validated record.
func (r Record) Template() (core.HistoricalEventTemplate, error) {
	d, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return core.HistoricalEventTemplate{}, fmt.Errorf("parsing date: %w", err)
	}
	t := core.HistoricalEventTemplate{
		ID:        r.ID,
		Date:      d,
		Summary:   r.Summary,
		EventType: core.EventType(r.EventType),
		Sentiment: core.Sentiment{Label: core.SentimentLabel(r.Sentiment), Score: r.SentimentScore},
		Sector:    core.Sector(r.Sector),
		Ticker:    r.Ticker,
		Keywords:  r.Keywords,
	}
	if r.ExpectedChangePct != nil {
		t.ExpectedChangePct = *r.ExpectedChangePct
	}
	if r.ExpectedMaxDrawdownPct != nil {
		t.ExpectedMaxDrawdownPct = *r.ExpectedMaxDrawdownPct
	}
	return t, nil
}

// ParseRecords decodes a JSON or YAML list of records.
func ParseRecords(data []byte, format string) ([]Record, error) {
	var records []Record
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case "json", "":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	return records, nil
}

// FromRecords validates records and builds a catalog.
func FromRecords(records []Record) (*Catalog, error) {
	v := newValidator()
	templates := make([]core.HistoricalEventTemplate, 0, len(records))
	for i, r := range records {
		if err := v.Struct(r); err != nil {
			return nil, core.WrapError(core.ErrCatalogLoad, fmt.Errorf("record %d (%s): %w", i, r.ID, err))
		}
		t, err := r.Template()
		if err != nil {
			return nil, core.WrapError(core.ErrCatalogLoad, fmt.Errorf("record %d (%s): %w", i, r.ID, err))
		}
		templates = append(templates, t)
	}
	return Load(templates)
}

// LoadFile reads a catalog from a .json, .yaml or .yml file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.ErrCatalogLoad, fmt.Errorf("reading %s: %w", path, err))
	}
	records, err := ParseRecords(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, core.WrapError(core.ErrCatalogLoad, err)
	}
	return FromRecords(records)
}

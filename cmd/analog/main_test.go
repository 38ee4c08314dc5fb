package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/config"
	"github.com/newthinker/analog/internal/core"
)

func TestReadHeadlines(t *testing.T) {
	in := strings.NewReader("Fed hikes 75bp\n\n# skipped\n  OPEC cuts output  \n")

	got, err := readHeadlines(in, "-")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Fed hikes 75bp", got[0].Title)
	assert.Equal(t, "OPEC cuts output", got[1].Title)
	assert.Equal(t, "batch", got[1].Source)
	assert.False(t, got[0].PublishedAt.IsZero())
}

func TestReadHeadlines_MissingFile(t *testing.T) {
	_, err := readHeadlines(nil, filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestParseWhen(t *testing.T) {
	d, err := parseWhen("2022-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC), d)

	ts, err := parseWhen("2022-06-15T14:00:00-04:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 6, 15, 18, 0, 0, 0, time.UTC), ts)

	_, err = parseWhen("last tuesday")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestClassificationFromFlags(t *testing.T) {
	recEventType, recSentiment, recSector, recScore, recTicker = "monetary policy", "bearish", "financials", -0.6, "xlf"
	t.Cleanup(func() { recEventType, recSentiment, recSector, recScore, recTicker = "", "", "", 0, "" })

	c, err := classificationFromFlags(core.Headline{Title: "Fed hikes"})
	require.NoError(t, err)
	assert.Equal(t, core.EventMonetaryPolicy, c.EventType)
	assert.Equal(t, core.Bearish, c.Sentiment.Label)
	assert.Equal(t, core.SectorFinancials, c.Sector)
	assert.Equal(t, "XLF", c.Ticker)

	recScore = 0.4
	_, err = classificationFromFlags(core.Headline{Title: "Fed hikes"})
	assert.Error(t, err)
}

func TestCatalogValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: fed-2022-06-15
  date: "2022-06-15"
  summary: Fed raises rates 75 basis points
  event_type: Monetary Policy
  sentiment: Bearish
  sector: Financials
  ticker: XLF
  expected_change_pct: -5.6
  expected_max_drawdown_pct: -7.2
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"catalog", "validate", path})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "1 templates OK")
}

func TestShippedCatalogIsValid(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"catalog", "list", "../../data/historical_events.json", "--event-type", "monetary policy"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "fed-2022-06-15")
	assert.NotContains(t, out.String(), "cpi-2022-09-13")
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(0))
	assert.Equal(t, time.Minute, sweepInterval(10*time.Second))
	assert.Equal(t, time.Hour, sweepInterval(time.Hour))
}

func TestNewNotifier(t *testing.T) {
	cfg := config.Defaults()
	reg, err := newNotifier(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, reg, "no channels configured")

	cfg.Notify.Webhook.URL = "http://127.0.0.1:9/hook"
	reg, err = newNotifier(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, []string{"webhook"}, reg.Names())
}

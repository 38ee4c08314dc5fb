package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

var (
	recPublished string
	recSource    string
	recEventType string
	recSentiment string
	recScore     float64
	recSector    string
	recTicker    string
	recJSON      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <headline>",
	Short: "Recommend a trade for one headline",
	Long: `Classify a headline, match it against the historical catalog and print the
recommended option trade. Pass --event-type, --sentiment and --sector together
to skip the classifier.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

func init() {
	f := recommendCmd.Flags()
	f.StringVar(&recPublished, "published", "", "publish time, RFC 3339 or YYYY-MM-DD (default now)")
	f.StringVar(&recSource, "source", "cli", "headline source")
	f.StringVar(&recEventType, "event-type", "", "pre-classified event type")
	f.StringVar(&recSentiment, "sentiment", "", "pre-classified sentiment label")
	f.Float64Var(&recScore, "sentiment-score", 0, "pre-classified sentiment intensity in [-1, 1]")
	f.StringVar(&recSector, "sector", "", "pre-classified sector")
	f.StringVar(&recTicker, "ticker", "", "ticker to trade (default inferred)")
	f.BoolVar(&recJSON, "json", false, "print the full recommendation as JSON")

	recommendCmd.MarkFlagsRequiredTogether("event-type", "sentiment", "sector")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	h := core.Headline{
		Title:       strings.Join(args, " "),
		Source:      recSource,
		PublishedAt: time.Now().UTC(),
	}
	if recPublished != "" {
		if h.PublishedAt, err = parseWhen(recPublished); err != nil {
			return err
		}
	}

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	var rec core.TradeRecommendation
	if recEventType != "" {
		c, err := classificationFromFlags(h)
		if err != nil {
			return err
		}
		rec, err = eng.pipeline.RunClassified(cmd.Context(), c)
		if err != nil {
			return err
		}
	} else {
		rec, err = eng.pipeline.Run(cmd.Context(), h)
		if err != nil {
			return err
		}
	}

	if recJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	printRecommendation(cmd.OutOrStdout(), rec)
	return nil
}

func classificationFromFlags(h core.Headline) (core.HeadlineClassification, error) {
	et, err := core.ParseEventType(recEventType)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	label, err := core.ParseSentimentLabel(recSentiment)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	s, err := core.NewSentiment(label, recScore)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	sector, err := core.ParseSector(recSector)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	c := core.HeadlineClassification{
		Headline:     h,
		EventType:    et,
		Sentiment:    s,
		Sector:       sector,
		ClassifiedBy: "cli",
	}
	if recTicker != "" {
		c.Ticker = marketdata.StandardizeTicker(recTicker)
	}
	return c, nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (expected RFC 3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

func printRecommendation(out io.Writer, rec core.TradeRecommendation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	c := rec.Classification
	fmt.Fprintf(w, "Headline:\t%s\n", c.Headline.Title)
	fmt.Fprintf(w, "Classified:\t%s / %s / %s (%s)\n", c.EventType, c.Sentiment.Label, c.Sector, c.ClassifiedBy)
	fmt.Fprintf(w, "Recommendation:\t%s %s\n", rec.OptionType, rec.Ticker)
	if rec.Strike != nil && rec.Expiry != nil {
		fmt.Fprintf(w, "Strike:\t%.2f (spot %.2f)\n", *rec.Strike, rec.SpotPrice)
		fmt.Fprintf(w, "Expiry:\t%s\n", rec.Expiry.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Expected move:\t%+.2f%%\n", rec.ExpectedMovePct)
	fmt.Fprintf(w, "Confidence:\t%.2f (%s)\n", rec.Confidence, rec.ConfidenceLevel)
	if rec.Degraded() {
		fmt.Fprintf(w, "Degraded:\tchain=%t enrichment=%t volatility=%t\n",
			rec.ChainUnavailable, rec.EnrichmentFailed, rec.VolatilityUnavailable)
	}
	fmt.Fprintf(w, "ID:\t%s\n", rec.ID)
	w.Flush()

	if len(rec.Matches) > 0 {
		fmt.Fprintln(out, "\nMatched events:")
		mw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(mw, "SCORE\tDATE\tTICKER\tMOVE\tSUMMARY")
		for _, m := range rec.Matches {
			move := fmt.Sprintf("%+.2f%% expected", m.Template.ExpectedChangePct)
			if m.Outcome.Live {
				move = fmt.Sprintf("%+.2f%% realized", m.Outcome.Value.ChangePct)
			}
			fmt.Fprintf(mw, "%.2f\t%s\t%s\t%s\t%s\n",
				m.Score, m.Template.Date.Format("2006-01-02"), m.Template.Ticker, move, m.Template.Summary)
		}
		mw.Flush()
	}

	fmt.Fprintf(out, "\n%s\n", rec.Rationale)
}

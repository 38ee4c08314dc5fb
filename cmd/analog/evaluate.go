package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/evaluate"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/storage/recommendation"
)

var (
	evalTicker          string
	evalFrom            string
	evalTo              string
	evalLimit           int
	evalExcludeDegraded bool
	evalJSON            bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score stored recommendations against what the market did",
	Long: `Fetch prices for the trading days after each stored recommendation and report
whether the CALL or PUT direction was right. ABSTAIN records are skipped.`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalTicker, "ticker", "", "only this ticker")
	f.StringVar(&evalFrom, "from", "", "created on or after, RFC 3339 or YYYY-MM-DD")
	f.StringVar(&evalTo, "to", "", "created on or before, RFC 3339 or YYYY-MM-DD")
	f.IntVar(&evalLimit, "limit", 0, "evaluate at most this many of the newest records")
	f.BoolVar(&evalExcludeDegraded, "exclude-degraded", false, "skip records built on fallback data")
	f.BoolVar(&evalJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	filter := recommendation.ListFilter{Limit: evalLimit}
	if evalTicker != "" {
		filter.Ticker = marketdata.StandardizeTicker(evalTicker)
	}
	if evalFrom != "" {
		if filter.From, err = parseWhen(evalFrom); err != nil {
			return err
		}
	}
	if evalTo != "" {
		if filter.To, err = parseWhen(evalTo); err != nil {
			return err
		}
		if len(evalTo) == len("2006-01-02") {
			filter.To = filter.To.Add(24*time.Hour - time.Nanosecond)
		}
	}

	store, err := newStore(cfg, log)
	if err != nil {
		return err
	}
	recs, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	ecfg := cfg.Evaluate.EvaluatorConfig(cfg.Engine.RetryPolicy())
	if evalExcludeDegraded {
		ecfg.ExcludeDegraded = true
	}
	evaluator := evaluate.NewEvaluator(newMarketData(cfg, log), ecfg, log.Named("evaluate"))

	report, err := evaluator.EvaluateAll(cmd.Context(), recs)
	if err != nil {
		return err
	}

	if evalJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(out io.Writer, r evaluate.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKER\tTYPE\tSTART\tMOVE\tMAX GAIN\tMAX DD\tRESULT\tNOTES")
	for _, e := range r.Evaluations {
		result := "wrong"
		if e.DirectionCorrect {
			result = "right"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%+.2f%%\t%+.2f%%\t%+.2f%%\t%s\t%s\n",
			shortID(e.RecommendationID), e.Ticker, e.OptionType, e.Start.Format("2006-01-02"),
			e.ActualMovePct, e.MaxGainPct, e.MaxDrawdownPct, result, e.Notes)
	}
	w.Flush()

	s := r.Summary
	fmt.Fprintf(out, "\nEvaluated %d (skipped %d, failed %d)\n", s.Total, r.Skipped, r.Failed)
	fmt.Fprintf(out, "Success rate: %.1f%% (%d/%d), average move %+.2f%%\n", s.SuccessRate, s.Successful, s.Total, s.AverageMovePct)
	fmt.Fprintf(out, "%s: %.1f%% of %d   %s: %.1f%% of %d\n",
		core.OptionCall, s.CallSuccessRate, s.CallTrades, core.OptionPut, s.PutSuccessRate, s.PutTrades)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

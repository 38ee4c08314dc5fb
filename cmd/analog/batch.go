package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/feed"
	"github.com/newthinker/analog/internal/pipeline"
)

var (
	batchFile  string
	batchFeeds bool
	batchJSON  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Recommend trades for many headlines",
	Long: `Run a batch of headlines through the engine concurrently. Headlines come from
a file with one title per line ("-" reads stdin) or, with --feeds, from the
RSS feeds in the config.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one headline per line, - for stdin")
	batchCmd.Flags().BoolVar(&batchFeeds, "feeds", false, "fetch headlines from configured RSS feeds")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as JSON lines")
	batchCmd.MarkFlagsMutuallyExclusive("file", "feeds")
	batchCmd.MarkFlagsOneRequired("file", "feeds")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	var headlines []core.Headline
	if batchFeeds {
		headlines, err = feed.NewIngestor(cfg.Feeds, log.Named("feed")).Fetch(cmd.Context())
	} else {
		headlines, err = readHeadlines(cmd.InOrStdin(), batchFile)
	}
	if err != nil {
		return err
	}
	if len(headlines) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no headlines")
		return nil
	}

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	start := time.Now()
	results := eng.pipeline.RunBatch(cmd.Context(), headlines)
	log.Info("batch finished", zap.Int("headlines", len(headlines)), zap.Duration("duration", time.Since(start)))

	if batchJSON {
		return printBatchJSON(cmd.OutOrStdout(), results)
	}
	printBatch(cmd.OutOrStdout(), results)
	return nil
}

// readHeadlines reads one headline per non-blank line. Lines starting with # are skipped.
func readHeadlines(stdin io.Reader, path string) ([]core.Headline, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening headlines: %w", err)
		}
		defer f.Close()
		r = f
	}

	now := time.Now().UTC()
	var out []core.Headline
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, core.Headline{Title: line, Source: "batch", PublishedAt: now})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading headlines: %w", err)
	}
	return out, nil
}

func printBatch(out io.Writer, results []pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tRESULT\tTICKER\tSTRIKE\tEXPIRY\tCONF\tHEADLINE")

	counts := map[string]int{}
	for i, r := range results {
		title := truncate(r.Headline.Title, 70)
		if r.Err != nil {
			counts["failed"]++
			fmt.Fprintf(w, "%d\tERROR\t-\t-\t-\t-\t%s (%v)\n", i+1, title, r.Err)
			continue
		}
		rec := r.Recommendation
		counts[string(rec.OptionType)]++
		strike, expiry := "-", "-"
		if rec.Strike != nil && rec.Expiry != nil {
			strike = fmt.Sprintf("%.2f", *rec.Strike)
			expiry = rec.Expiry.Format("2006-01-02")
		}
		result := string(rec.OptionType)
		if rec.OptionType == core.OptionAbstain {
			result += " " + rec.AbstainReason
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n", i+1, result, rec.Ticker, strike, expiry, rec.Confidence, title)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d headlines: %d CALL, %d PUT, %d ABSTAIN, %d failed\n",
		len(results), counts[string(core.OptionCall)], counts[string(core.OptionPut)],
		counts[string(core.OptionAbstain)], counts["failed"])
}

func printBatchJSON(out io.Writer, results []pipeline.Result) error {
	enc := json.NewEncoder(out)
	for _, r := range results {
		line := struct {
			Headline       core.Headline             `json:"headline"`
			Recommendation *core.TradeRecommendation `json:"recommendation,omitempty"`
			Error          string                    `json:"error,omitempty"`
		}{Headline: r.Headline}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			line.Recommendation = &r.Recommendation
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

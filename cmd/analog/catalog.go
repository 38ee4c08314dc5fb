package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/analog/internal/catalog"
	"github.com/newthinker/analog/internal/core"
)

var (
	listEventType string
	listSector    string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the historical event catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog file",
	Long:  "Load a JSON or YAML catalog and report the first invalid record. Defaults to catalog.path from the config.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

var catalogListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List catalog templates",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogList,
}

func init() {
	catalogListCmd.Flags().StringVar(&listEventType, "event-type", "", "only templates of this event type")
	catalogListCmd.Flags().StringVar(&listSector, "sector", "", "only templates of this sector")

	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}

func catalogPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Catalog.Path, nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	path, err := catalogPath(args)
	if err != nil {
		return err
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d templates OK\n", path, c.Len())
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	path, err := catalogPath(args)
	if err != nil {
		return err
	}

	var et core.EventType
	if listEventType != "" {
		if et, err = core.ParseEventType(listEventType); err != nil {
			return err
		}
	}
	var sector core.Sector
	if listSector != "" {
		if sector, err = core.ParseSector(listSector); err != nil {
			return err
		}
	}

	c, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tEVENT TYPE\tSENTIMENT\tSECTOR\tTICKER\tEXPECTED\tSUMMARY")
	shown := 0
	for _, t := range c.All() {
		if et != "" && t.EventType != et {
			continue
		}
		if sector != "" && t.Sector != sector {
			continue
		}
		shown++
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%+.2f%%\t%s\n",
			t.ID, t.Date.Format("2006-01-02"), t.EventType, t.Sentiment.Label, t.Sector,
			t.Ticker, t.ExpectedChangePct, truncate(t.Summary, 60))
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d templates\n", shown, c.Len())
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation API server",
	Long:  "Serve the HTTP API. SIGHUP reloads the catalog; SIGINT or SIGTERM shuts down.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		APIKey:       cfg.Server.APIKey,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MetricsPath:  metricsPath,
	}, api.Dependencies{
		Runner:  eng.pipeline,
		Store:   eng.store,
		Catalog: eng.catalog,
		Metrics: eng.metrics,
	}, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	var sweep <-chan time.Time
	if eng.notifier != nil {
		t := time.NewTicker(sweepInterval(cfg.Notify.Cooldown))
		defer t.Stop()
		sweep = t.C
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case err := <-errCh:
			return err
		case <-sweep:
			if n := eng.notifier.CleanupExpiredCooldowns(); n > 0 {
				log.Debug("notification cooldowns pruned", zap.Int("removed", n))
			}
		case s := <-sig:
			if s == syscall.SIGHUP {
				if err := eng.catalog.Reload(); err == nil {
					eng.metrics.SetCatalogSize(eng.catalog.Current().Len())
				}
				continue
			}
			log.Info("shutting down", zap.String("signal", s.String()))

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		}
	}
}

// sweepInterval is how often expired notification cooldowns are pruned.
func sweepInterval(cooldown time.Duration) time.Duration {
	if cooldown < time.Minute {
		return time.Minute
	}
	return cooldown
}

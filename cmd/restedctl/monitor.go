package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/rested/internal/logging"
	"github.com/fruitsalade/rested/internal/metrics"
	"github.com/fruitsalade/rested/pkg/rested"
)

var metricsAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch server health and expose metrics",
	Long: `Ping the health endpoint on an interval, switching the client between
online and offline, and serve Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics listen address (empty to disable)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}

		go func() {
			logging.Info("metrics server starting", logging.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server error", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	m := rested.NewMonitor(app.Client, rested.MonitorConfig{
		HealthPath: app.Config.HealthPath,
		Interval:   app.Config.HealthInterval,
	})
	logging.Info("monitoring server health",
		logging.String("path", app.Config.HealthPath),
		logging.Duration("interval", app.Config.HealthInterval))
	m.Run(ctx)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/metrics"
	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/ui"
)

const shutdownTimeout = 5 * time.Second

var (
	listenAddr       string
	exporterInterval time.Duration
)

// exporterCmd serves Prometheus metrics for one mower
var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve mower status as Prometheus metrics",
	Long: `Keep a session open to the mower, poll its status on an interval and
serve the results on /metrics.

Exported series include battery_percent, charging, state and activity info
gauges, next_start_timestamp_seconds and decode_total by kind and result,
all under the automower_ namespace.`,
	Example: `  automower exporter -a "Front lawn" --listen :9110 --interval 1m`,
	Args:    cobra.NoArgs,
	RunE:    runExporter,
}

func init() {
	exporterCmd.Flags().StringVar(&listenAddr, "listen", ":9110", "Address to serve /metrics on")
	exporterCmd.Flags().DurationVar(&exporterInterval, "interval", 0, "Poll interval (default from config)")
	rootCmd.AddCommand(exporterCmd)
}

func runExporter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if mowerAddress == "" {
		return fmt.Errorf("no mower given (use --address)")
	}
	address := registry.Resolve(mowerAddress)

	reg := metrics.NewRegistry()
	mm := metrics.NewMowerMetrics(reg, address)

	s, err := openSession(ctx, mower.WithObserver(mm.Observer()))
	if err != nil {
		return err
	}
	defer s.close()

	interval := exporterInterval
	if interval <= 0 {
		interval = registry.Preferences.PollIntervalDuration()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info("Serving metrics", zap.String("listen", listenAddr))
		serveErr <- server.ListenAndServe()
	}()

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go func() {
		_ = mm.Poll(pollCtx, s.client, interval)
	}()

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Exporter running",
		ui.F("Mower", s.displayName()),
		ui.F("Metrics", "http://"+listenAddr+"/metrics"),
		ui.F("Interval", interval.String()),
	)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	stopPoll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

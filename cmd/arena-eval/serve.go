package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/crsarena/arena-eval/internal/bus"
	"github.com/crsarena/arena-eval/internal/server"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation HTTP server",
		Long: `Load the gold annotations and baselines once, then serve:
  POST /v1/evaluations            evaluate an uploaded run
  POST /v1/evaluations/compare    compare a run with a baseline
  POST /v1/evaluations/export     download a run's report as XLSX
  GET  /v1/evaluations/recent     recent evaluation outcomes
  GET  /v1/catalog                aspects, datasets and metrics
  GET  /v1/baselines              baseline series per dataset
  GET  /healthz, /v1/version, /metrics`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	cmd.Flags().String("bus", "", "event bus type (memory, kafka)")
	cmd.Flags().String("cache", "", "report cache type (memory, redis, none)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	appCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Override from flags
	if cmd.Flags().Changed("port") {
		appCfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		appCfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("bus") {
		appCfg.Bus.Type, _ = cmd.Flags().GetString("bus")
	}
	if cmd.Flags().Changed("cache") {
		appCfg.Cache.Type, _ = cmd.Flags().GetString("cache")
	}
	if err := appCfg.Validate(); err != nil {
		return err
	}

	log := cliLogger(cmd, appCfg)
	log.Info("Starting arena-eval server", "version", version, "addr", appCfg.Address())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.Build(ctx, appCfg, version, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		_ = srv.Stop(context.Background())
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List evaluation events from the event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path := appCfg.Bus.JournalPath
			if cmd.Flags().Changed("journal") {
				path, _ = cmd.Flags().GetString("journal")
			}
			if path == "" {
				return fmt.Errorf("no event journal configured (set --journal or ARENA_EVENT_JOURNAL)")
			}
			window, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")

			var since time.Time
			if window > 0 {
				since = time.Now().Add(-window)
			}
			entries, err := bus.ReadJournal(path, since, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Time", "Topic", "Event", "Correlation"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.Timestamp.Format(time.RFC3339), e.Topic, e.Event.ID, e.Event.CorrelationID})
			}
			t.AppendFooter(table.Row{"", "", "Total", strconv.Itoa(len(entries))})
			t.Render()
			return nil
		},
	}

	cmd.Flags().String("journal", "", "event journal path (overrides config)")
	cmd.Flags().Duration("since", 0, "only events newer than this window, e.g. 24h")
	cmd.Flags().Int("limit", 0, "maximum number of events (0 = all)")

	return cmd
}

// commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gewnthar/agendawatch/export"
	"github.com/gewnthar/agendawatch/handlers"
	"github.com/gewnthar/agendawatch/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one check cycle and exit",
	RunE:  runCycle,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only meetings API",
	Long:  `Serves /api/meetings, /api/stats, /api/health and /metrics. With --admin, POST /api/admin/run-cycle runs a check cycle on demand.`,
	RunE:  runServe,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print meeting statistics as JSON",
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all meetings as CSV",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import meetings from a CSV export",
	Long:  `Imports meetings written by "export". Meetings whose id already exists are skipped.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var (
	serveAdmin bool
	exportOut  string
)

func init() {
	serveCmd.Flags().BoolVar(&serveAdmin, "admin", true, "Enable POST /api/admin/run-cycle")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "Output file (- for stdout)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runCycle(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	monitor, err := a.newMonitor()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	report, err := monitor.RunCycle(ctx)
	if err != nil {
		return err
	}
	for _, pm := range report.Processed {
		a.log.Info("processed meeting",
			"meeting_id", pm.Meeting.ID,
			"meeting_type", pm.Meeting.MeetingType,
			"outcome", pm.Outcome,
			"notified", pm.Notified,
			"refreshed", pm.Refreshed,
		)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var admin *handlers.AdminHandler
	if serveAdmin {
		monitor, err := a.newMonitor()
		if err != nil {
			return err
		}
		admin = handlers.NewAdminHandler(monitor, a.log)
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           handlers.NewRouter(handlers.NewMeetingHandler(a.store, a.log), admin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "addr", srv.Addr, "admin", serveAdmin)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("error starting server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func runExport(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	meetings, err := a.store.ListAll(cmd.Context())
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := export.WriteCSV(out, meetings); err != nil {
		return err
	}
	a.log.Info("exported meetings", "count", len(meetings), "out", exportOut)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	meetings, err := export.ReadCSV(f)
	if err != nil {
		return err
	}

	imported, skipped := 0, 0
	for i := range meetings {
		err := a.store.Import(cmd.Context(), &meetings[i])
		switch {
		case errors.Is(err, models.ErrDuplicateKey):
			skipped++
		case err != nil:
			return err
		default:
			imported++
		}
	}
	a.log.Info("imported meetings", "imported", imported, "skipped", skipped)
	return nil
}

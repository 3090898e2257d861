package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dealgrab/dealgrab-sync/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled sync daemon",
	Long: `Runs every job on its configured interval and exposes an admin HTTP
server with health, metrics and manual job trigger endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(app.log)
	for _, job := range app.jobs() {
		sched.Add(job)
	}
	sched.Start(runCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/jobs/", triggerHandler(runCtx, sched))

	httpServer := &http.Server{
		Addr:         ":" + app.cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  app.cfg.Server.ReadTimeout,
		WriteTimeout: app.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", app.cfg.Server.Port, "jobs", sched.JobNames())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to listen and serve: %w", err)
	}

	sched.Wait()
	slog.Info("Daemon stopped.")
	return nil
}

// triggerHandler starts a job by name in the background so the HTTP response
// isn't blocked by feed and Firestore work that may exceed request timeouts.
func triggerHandler(runCtx context.Context, sched *scheduler.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/jobs/")
		if err := sched.Trigger(runCtx, name); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"status":"started","job":%q}`+"\n", name)
	}
}

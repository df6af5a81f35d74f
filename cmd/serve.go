package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/talkmate-aac/talkmate/internal/catalog"
	"github.com/talkmate-aac/talkmate/internal/handlers"
	"github.com/talkmate-aac/talkmate/internal/session"
	"github.com/talkmate-aac/talkmate/internal/slots"
	"github.com/talkmate-aac/talkmate/internal/storage"
	"github.com/talkmate-aac/talkmate/internal/telemetry"
)

const pruneInterval = time.Hour

func newServeCmd() *cobra.Command {
	var port int
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the picture board",
		Long: `Starts the TalkMate board API and browser interface.

Pictures are selected into per-session sequences, composed into a sentence by
the configured vision-capable LLM (Gemini, OpenAI or Ollama) and read aloud
through the configured speech platform.`,
		Example: `  # Start server on the configured port (default 8888)
  talkmate serve

  # Start server on custom port with a config file
  talkmate serve --config talkmate.yaml --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			shutdownTelemetry, metricsHandler, metrics, err := telemetry.Setup(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to set up telemetry: %w", err)
			}
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					logger.Warn("Telemetry shutdown failed", "err", err)
				}
			}()

			db, err := storage.Open(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			pictures := catalog.New(entries)
			customSlots := slots.Load(ctx, db, cfg.Slots.Count, logger)
			for _, entry := range customSlots.Filled() {
				pictures.Add(entry)
			}

			stack, err := newGenerationStack(cfg, metrics, logger)
			if err != nil {
				return err
			}

			narrator, stopNarration, err := startNarration(ctx, cfg.Narration, metrics, logger)
			if err != nil {
				return err
			}
			defer stopNarration()

			handler := handlers.New(handlers.Options{
				Catalog:  pictures,
				Slots:    customSlots,
				Narrator: narrator,
				History:  db,
				SessionDeps: session.Deps{
					Composer: stack.composer,
					Narrator: narrator,
					Recorder: db,
					NewPanel: stack.panelFactory(),
					Logger:   logger,
				},
				DefaultLanguage: cfg.Narration.DefaultLanguage,
				MaxSessions:     cfg.Store.MaxSessions,
				StaticDir:       staticDir,
				Logger:          logger,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if !narrator.Healthy() {
					http.Error(w, "narration platform unavailable", http.StatusServiceUnavailable)
					return
				}
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})
			if metricsHandler != nil {
				mux.Handle("GET /metrics", metricsHandler)
			}

			addr := net.JoinHostPort(cfg.HTTP.Bind, strconv.Itoa(cfg.HTTP.Port))
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			pruneCtx, stopPrune := context.WithCancel(ctx)
			defer stopPrune()
			go pruneHistory(pruneCtx, db, logger)

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("TalkMate interface available", "addr", addr, "url", "http://localhost:"+strconv.Itoa(cfg.HTTP.Port))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on (overrides http.port)")
	cmd.Flags().StringVar(&staticDir, "static", "static", "Directory holding the browser interface")

	return cmd
}

// pruneHistory applies the history retention policy until ctx is done
func pruneHistory(ctx context.Context, db *storage.DB, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.Prune(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("History prune failed", "err", err)
			}
		}
	}
}

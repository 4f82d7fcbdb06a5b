// Command syncd runs the local sync daemon: it mirrors the signed-in user's
// backend state into a local store and serves the merged view on a
// localhost control API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobkit/synccore/internal/adapters/backend"
	"github.com/jobkit/synccore/internal/adapters/http/api"
	"github.com/jobkit/synccore/internal/adapters/identity"
	"github.com/jobkit/synccore/internal/adapters/store"
	app "github.com/jobkit/synccore/internal/app"
	"github.com/jobkit/synccore/internal/config"
	"github.com/jobkit/synccore/internal/domain/scoring"
	"github.com/jobkit/synccore/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	st, err := store.Open(cfg.DataDir, store.WithLogger(log))
	if err != nil {
		log.Error(ctx, "opening local store failed", logger.Error(err))
		return
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Error(ctx, "closing local store failed", logger.Error(cerr))
		}
	}()

	provider := identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey,
		identity.WithLogger(log))
	client := backend.New(cfg.BackendBaseURL,
		backend.WithLogger(log),
		backend.WithAnalyzeRate(cfg.AnalyzePerMinute, cfg.AnalyzeBurst))

	opts := []app.Option{
		app.WithProvider(provider),
		app.WithBackend(client),
		app.WithStore(st),
		app.WithLogger(log),
		app.WithFetchTimeout(time.Duration(cfg.FetchTimeoutMS) * time.Millisecond),
		app.WithMailboxSize(cfg.MailboxSize),
	}
	if cfg.Scorer == "local" {
		opts = append(opts, app.WithScorer(
			scoring.NewLLMScorer(cfg.LLMAPIKey, cfg.LLMModel, scoring.WithBaseURL(cfg.LLMBaseURL))))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "starting sync service failed", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Control API routes.
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting control API", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "stopped")
}

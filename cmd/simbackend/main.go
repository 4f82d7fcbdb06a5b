// Command simbackend serves the simulated application backend, optionally
// driving a scripted exercise against a running sync daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobkit/synccore/internal/simulate"
	"github.com/jobkit/synccore/pkg/logger"
)

const (
	defaultAddr       = "127.0.0.1:8000"
	defaultJobs       = 25
	readHeaderTimeout = 5 * time.Second
)

func main() {
	var (
		addr       = flag.String("addr", defaultAddr, "Listen address for the simulated backend")
		jobs       = flag.Int("jobs", defaultJobs, "Number of seeded job listings")
		exercise   = flag.String("exercise", "", "Control API base URL to run a scripted exercise against (optional)")
		email      = flag.String("email", "", "Account email for the exercise (default: generated per run)")
		saveCount  = flag.Int("save", simulate.DefaultJobs, "Jobs to save and analyze during the exercise")
		timeoutSec = flag.Int("timeout", 10, "Per-call timeout in seconds during the exercise")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := simulate.NewBackend()
	b.SeedJobs(*jobs)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "simulated backend listening",
			logger.String("addr", *addr),
			logger.Int("jobs", *jobs))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("simulated backend failed: " + err.Error() + "\n")
		}
	}()

	if *exercise != "" {
		runEmail := *email
		if runEmail == "" {
			runEmail = fmt.Sprintf("sim-%d@example.com", time.Now().Unix())
		}
		err := simulate.Run(ctx, simulate.Config{
			ControlURL: *exercise,
			Email:      runEmail,
			Jobs:       *saveCount,
			Timeout:    time.Duration(*timeoutSec) * time.Second,
		})
		if err != nil {
			log.Error(ctx, "exercise failed", logger.Error(err))
		}
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

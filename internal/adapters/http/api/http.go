// Package api declares the localhost control API contracts and route
// registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jobkit/synccore/internal/adapters/backend"
	"github.com/jobkit/synccore/internal/adapters/identity"
	"github.com/jobkit/synccore/internal/adapters/repository"
	svc "github.com/jobkit/synccore/internal/app"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/session"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the sync service.
type Dependencies interface {
	// Session lifecycle.
	SignIn(ctx context.Context, email, password string) error
	Register(ctx context.Context, username, email, phone, password string) error
	Logout(ctx context.Context) error
	Session(ctx context.Context) (session.Snapshot, error)

	// Merged job view reads.
	Jobs(ctx context.Context) ([]repository.JobView, error)
	Job(ctx context.Context, jobID int64) (repository.JobView, error)
	TopMatches(ctx context.Context, n int) ([]repository.JobView, error)
	TrackedSaves(ctx context.Context) ([]model.TrackedSave, error)

	// Writes.
	SaveJob(ctx context.Context, jobID int64) error
	UnsaveJob(ctx context.Context, jobID int64) error
	Analyze(ctx context.Context, jobID int64) (model.MatchResult, error)
	SetOverride(ctx context.Context, jobID int64, status string) error
	ClearOverride(ctx context.Context, jobID int64) error
	Feedback(ctx context.Context, text string, metadata map[string]any) error
	RecordEvent(ctx context.Context, jobID *int64, kind string, metadata map[string]any) error
	Refresh(ctx context.Context) error

	// Stats reports service counters.
	Stats(ctx context.Context) (map[string]any, error)
}

// Server wires HTTP routes for the control API.
type Server struct {
	healthHandler  *HealthHandler
	sessionHandler *SessionHandler
	jobsHandler    *JobsHandler
	syncHandler    *SyncHandler
	statsHandler   *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		sessionHandler: NewSessionHandler(deps),
		jobsHandler:    NewJobsHandler(deps),
		syncHandler:    NewSyncHandler(deps),
		statsHandler:   NewStatsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session"))
	mux.HandleFunc("/session/signin", MetricsMiddleware(s.sessionHandler.HandleSignIn, "signin"))
	mux.HandleFunc("/session/register", MetricsMiddleware(s.sessionHandler.HandleRegister, "register"))
	mux.HandleFunc("/session/logout", MetricsMiddleware(s.sessionHandler.HandleLogout, "logout"))
	mux.HandleFunc("/jobs", MetricsMiddleware(s.jobsHandler.HandleListJobs, "jobs"))
	mux.HandleFunc("/jobs/", MetricsMiddleware(s.jobsHandler.HandleJob, "job"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.jobsHandler.HandleTopMatches, "matches"))
	mux.HandleFunc("/saves", MetricsMiddleware(s.jobsHandler.HandleTrackedSaves, "saves"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.syncHandler.HandleRefresh, "refresh"))
	mux.HandleFunc("/feedback", MetricsMiddleware(s.syncHandler.HandleFeedback, "feedback"))
	mux.HandleFunc("/events", MetricsMiddleware(s.syncHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates service and adapter sentinels to HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, identity.ErrIdentity):
		writeError(w, http.StatusUnauthorized, "identity_rejected", err)
	case errors.Is(err, svc.ErrNotSignedIn), errors.Is(err, svc.ErrNoProfile):
		writeError(w, http.StatusConflict, "no_session", err)
	case errors.Is(err, session.ErrCorrelationBusy):
		writeError(w, http.StatusConflict, "correlation_busy", err)
	case errors.Is(err, backend.ErrWrite), errors.Is(err, backend.ErrLogFetch),
		errors.Is(err, backend.ErrJobFetch), errors.Is(err, backend.ErrProfileFetch):
		writeError(w, http.StatusBadGateway, "backend_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobkit/synccore/internal/adapters/identity"
	"github.com/jobkit/synccore/internal/adapters/repository"
	svc "github.com/jobkit/synccore/internal/app"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/session"
)

// stubDeps is a scriptable Dependencies implementation.
type stubDeps struct {
	snap       session.Snapshot
	jobs       []repository.JobView
	saved      []int64
	unsaved    []int64
	overrides  map[int64]string
	analyzed   model.MatchResult
	err        error
	feedback   string
	eventKinds []string
}

func newStubDeps() *stubDeps {
	return &stubDeps{
		snap:      session.Snapshot{State: session.Unauthenticated},
		overrides: map[int64]string{},
		analyzed:  model.MatchResult{Score: 0.78, Explanation: "solid fit"},
	}
}

func (s *stubDeps) SignIn(ctx context.Context, email, password string) error { return s.err }
func (s *stubDeps) Register(ctx context.Context, username, email, phone, password string) error {
	return s.err
}
func (s *stubDeps) Logout(ctx context.Context) error { return s.err }
func (s *stubDeps) Session(ctx context.Context) (session.Snapshot, error) {
	return s.snap, s.err
}
func (s *stubDeps) Jobs(ctx context.Context) ([]repository.JobView, error) {
	return s.jobs, s.err
}
func (s *stubDeps) Job(ctx context.Context, jobID int64) (repository.JobView, error) {
	if s.err != nil {
		return repository.JobView{}, s.err
	}
	for _, jv := range s.jobs {
		if jv.JobID == jobID {
			return jv, nil
		}
	}
	return repository.JobView{}, repository.ErrNotFound
}
func (s *stubDeps) TopMatches(ctx context.Context, n int) ([]repository.JobView, error) {
	if n <= 0 {
		return nil, repository.ErrInvalidLimit
	}
	return s.jobs, s.err
}
func (s *stubDeps) TrackedSaves(ctx context.Context) ([]model.TrackedSave, error) {
	return nil, s.err
}
func (s *stubDeps) SaveJob(ctx context.Context, jobID int64) error {
	s.saved = append(s.saved, jobID)
	return s.err
}
func (s *stubDeps) UnsaveJob(ctx context.Context, jobID int64) error {
	s.unsaved = append(s.unsaved, jobID)
	return s.err
}
func (s *stubDeps) Analyze(ctx context.Context, jobID int64) (model.MatchResult, error) {
	return s.analyzed, s.err
}
func (s *stubDeps) SetOverride(ctx context.Context, jobID int64, status string) error {
	if s.err != nil {
		return s.err
	}
	s.overrides[jobID] = status
	return nil
}
func (s *stubDeps) ClearOverride(ctx context.Context, jobID int64) error {
	delete(s.overrides, jobID)
	return s.err
}
func (s *stubDeps) Feedback(ctx context.Context, text string, metadata map[string]any) error {
	s.feedback = text
	return s.err
}
func (s *stubDeps) RecordEvent(ctx context.Context, jobID *int64, kind string, metadata map[string]any) error {
	s.eventKinds = append(s.eventKinds, kind)
	return s.err
}
func (s *stubDeps) Refresh(ctx context.Context) error { return s.err }
func (s *stubDeps) Stats(ctx context.Context) (map[string]any, error) {
	return map[string]any{"state": string(s.snap.State)}, s.err
}

func newTestMux(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps).Register(context.Background(), mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(newStubDeps())
	rec := doRequest(t, mux, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetSession(t *testing.T) {
	deps := newStubDeps()
	deps.snap = session.Snapshot{
		State:    session.AuthenticatedWithProfile,
		Identity: &model.Identity{UID: "uid-1", Email: "alice@example.com"},
		Profile:  &model.Profile{ID: 42},
	}
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodGet, "/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["state"] != string(session.AuthenticatedWithProfile) {
		t.Errorf("unexpected state %v", resp["state"])
	}
	if resp["uid"] != "uid-1" {
		t.Errorf("unexpected uid %v", resp["uid"])
	}
}

func TestSignInValidation(t *testing.T) {
	mux := newTestMux(newStubDeps())

	rec := doRequest(t, mux, http.MethodPost, "/session/signin", `{"email":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodPost, "/session/signin", `{"email":"a@b.c","password":"pw"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestSignInIdentityRejected(t *testing.T) {
	deps := newStubDeps()
	deps.err = identity.ErrIdentity
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodPost, "/session/signin", `{"email":"a@b.c","password":"pw"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterCorrelationBusy(t *testing.T) {
	deps := newStubDeps()
	deps.err = session.ErrCorrelationBusy
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodPost, "/session/register",
		`{"username":"bob","email":"b@b.c","password":"pw"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestJobRouting(t *testing.T) {
	deps := newStubDeps()
	deps.jobs = []repository.JobView{{JobID: 3, Saved: true}}
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodGet, "/jobs/3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/jobs/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/jobs/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodPost, "/jobs/3/save", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(deps.saved) != 1 || deps.saved[0] != 3 {
		t.Errorf("expected save recorded, got %v", deps.saved)
	}

	rec = doRequest(t, mux, http.MethodPost, "/jobs/3/unsave", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodPost, "/jobs/3/analyze", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result model.MatchResult
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Score != 0.78 {
		t.Errorf("unexpected score %v", result.Score)
	}
}

func TestOverrideEndpoints(t *testing.T) {
	deps := newStubDeps()
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodPut, "/jobs/3/override", `{"status":"interviewing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deps.overrides[3] != "interviewing" {
		t.Errorf("expected override stored, got %v", deps.overrides)
	}

	rec = doRequest(t, mux, http.MethodPut, "/jobs/3/override", `{"status":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodDelete, "/jobs/3/override", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if _, ok := deps.overrides[3]; ok {
		t.Error("expected override cleared")
	}
}

func TestNoSessionConflict(t *testing.T) {
	deps := newStubDeps()
	deps.err = svc.ErrNotSignedIn
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodPost, "/jobs/3/save", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	rec = doRequest(t, mux, http.MethodPost, "/refresh", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestFeedbackAndEvents(t *testing.T) {
	deps := newStubDeps()
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodPost, "/feedback", `{"feedback":"great matches"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if deps.feedback != "great matches" {
		t.Errorf("unexpected feedback %q", deps.feedback)
	}

	rec = doRequest(t, mux, http.MethodPost, "/events", `{"action_type":"resume_generated","job_id":3}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(deps.eventKinds) != 1 || deps.eventKinds[0] != "resume_generated" {
		t.Errorf("unexpected events %v", deps.eventKinds)
	}

	rec = doRequest(t, mux, http.MethodPost, "/events", `{"action_type":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMatchesLimit(t *testing.T) {
	deps := newStubDeps()
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodGet, "/matches?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, mux, http.MethodGet, "/matches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownErrorsMapToInternal(t *testing.T) {
	deps := newStubDeps()
	deps.err = errors.New("kaboom")
	mux := newTestMux(deps)

	rec := doRequest(t, mux, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unknown error, got %d", rec.Code)
	}
}

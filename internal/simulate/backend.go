// Package simulate provides a self-contained stand-in backend and a
// scripted exercise runner for the sync daemon. The backend speaks the
// same wire surface the real one does, so a daemon pointed at it behaves
// identically.
package simulate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jobkit/synccore/internal/domain/model"
)

// Backend is an in-memory application backend.
type Backend struct {
	mu       sync.Mutex
	users    map[int64]model.Profile
	byEmail  map[string]int64
	jobs     map[int64]model.Job
	activity []activityRecord
	nextUser int64
	nextAct  int64
}

type activityRecord struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	JobID     *int64         `json:"job_id"`
	Kind      string         `json:"action_type"`
	Metadata  map[string]any `json:"activity_metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		users:   map[int64]model.Profile{},
		byEmail: map[string]int64{},
		jobs:    map[int64]model.Job{},
	}
}

// SeedJob stores a job listing.
func (b *Backend) SeedJob(j model.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[j.ID] = j
}

// SeedJobs stores n generated job listings with ids 1..n.
func (b *Backend) SeedJobs(n int) {
	for i := 1; i <= n; i++ {
		b.SeedJob(model.Job{
			ID:          int64(i),
			Title:       fmt.Sprintf("Backend Engineer %d", i),
			Company:     fmt.Sprintf("Acme %d", i),
			Remote:      i%2 == 0,
			Description: "Design and run Go services.",
		})
	}
}

// Handler returns the HTTP surface.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", b.handleUsers)
	mux.HandleFunc("/jobs/", b.handleJobs)
	mux.HandleFunc("/activity/user/", b.handleActivityList)
	mux.HandleFunc("/activity/log", b.handleActivityLog)
	return mux
}

func (b *Backend) appendActivity(userID int64, jobID *int64, kind string, md map[string]any) {
	b.nextAct++
	b.activity = append(b.activity, activityRecord{
		ID:        b.nextAct,
		UserID:    userID,
		JobID:     jobID,
		Kind:      kind,
		Metadata:  md,
		CreatedAt: time.Now().UTC(),
	})
}

func (b *Backend) handleUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		var in struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Number   string `json:"number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if _, exists := b.byEmail[in.Email]; exists {
			httpError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		b.nextUser++
		now := time.Now().UTC()
		b.users[b.nextUser] = model.Profile{
			ID:          b.nextUser,
			UserName:    strings.ToLower(in.Username),
			Email:       in.Email,
			PhoneNumber: in.Number,
			JoinedAt:    &now,
		}
		b.byEmail[in.Email] = b.nextUser
		writeJSON(w, http.StatusCreated, map[string]any{"msg": "User registered", "id": b.nextUser})

	case strings.HasSuffix(rest, "/feedback") && r.Method == http.MethodPost:
		userID, ok := parseID(strings.TrimSuffix(rest, "/feedback"))
		if !ok {
			httpError(w, http.StatusNotFound, "User not found")
			return
		}
		var in struct {
			Feedback string         `json:"feedback"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			httpError(w, http.StatusBadRequest, "invalid body")
			return
		}
		md := map[string]any{"feedback": in.Feedback}
		for k, v := range in.Metadata {
			md[k] = v
		}
		b.appendActivity(userID, nil, "feedback", md)
		writeJSON(w, http.StatusOK, map[string]any{"msg": "Feedback logged"})

	case r.Method == http.MethodGet:
		id, ok := parseID(rest)
		if !ok {
			httpError(w, http.StatusNotFound, "User not found")
			return
		}
		p, exists := b.users[id]
		if !exists {
			httpError(w, http.StatusNotFound, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, p)

	default:
		http.NotFound(w, r)
	}
}

func (b *Backend) handleJobs(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	idPart, action, _ := strings.Cut(rest, "/")
	jobID, ok := parseID(idPart)
	if !ok {
		httpError(w, http.StatusNotFound, "Job not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		j, exists := b.jobs[jobID]
		if !exists {
			httpError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeJSON(w, http.StatusOK, j)

	case action == "save" && r.Method == http.MethodPost:
		_ = r.ParseForm()
		userID, _ := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
		kind := model.ActionJobSaved
		if r.PostFormValue("saved") == "false" {
			kind = model.ActionJobUnsaved
		}
		b.appendActivity(userID, &jobID, kind, nil)
		writeJSON(w, http.StatusOK, map[string]any{"msg": "Job saved"})

	case action == "analyze" && r.Method == http.MethodPost:
		_ = r.ParseForm()
		userID, _ := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
		score, explanation := b.scoreLocked(jobID)
		b.appendActivity(userID, &jobID, model.ActionMatchScored,
			map[string]any{"score": score, "explanation": explanation})
		writeJSON(w, http.StatusOK, map[string]any{"score": score, "explanation": explanation})

	default:
		http.NotFound(w, r)
	}
}

// scoreLocked derives a deterministic score so repeated runs are comparable.
func (b *Backend) scoreLocked(jobID int64) (float64, string) {
	score := 0.5 + float64(jobID%50)/100
	return score, fmt.Sprintf("Deterministic match for job %d.", jobID)
}

func (b *Backend) handleActivityList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	userID, ok := parseID(strings.TrimPrefix(r.URL.Path, "/activity/user/"))
	if !ok {
		httpError(w, http.StatusNotFound, "User not found")
		return
	}

	out := make([]activityRecord, 0)
	for _, rec := range b.activity {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleActivityLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var in struct {
		UserID   int64          `json:"user_id"`
		JobID    *int64         `json:"job_id"`
		Kind     string         `json:"action_type"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Kind == "" {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.appendActivity(in.UserID, in.JobID, in.Kind, in.Metadata)
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Activity logged"})
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.Trim(s, "/"), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

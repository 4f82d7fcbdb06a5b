package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

const defaultMatchLimit = 10

// JobsHandler handles merged job view requests.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleListJobs handles GET /jobs requests.
func (h *JobsHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	jobs, err := h.deps.Jobs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HandleJob routes /jobs/{id} and its sub-resources:
//
//	GET    /jobs/{id}
//	POST   /jobs/{id}/save
//	POST   /jobs/{id}/unsave
//	POST   /jobs/{id}/analyze
//	PUT    /jobs/{id}/override
//	DELETE /jobs/{id}/override
func (h *JobsHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	idPart, action, _ := strings.Cut(rest, "/")
	jobID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || jobID <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadJobID)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getJob(w, r, jobID)
	case action == "save" && r.Method == http.MethodPost:
		h.write(w, r, h.deps.SaveJob, jobID, "save_pending")
	case action == "unsave" && r.Method == http.MethodPost:
		h.write(w, r, h.deps.UnsaveJob, jobID, "unsave_pending")
	case action == "analyze" && r.Method == http.MethodPost:
		h.analyze(w, r, jobID)
	case action == "override" && r.Method == http.MethodPut:
		h.setOverride(w, r, jobID)
	case action == "override" && r.Method == http.MethodDelete:
		h.write(w, r, h.deps.ClearOverride, jobID, "override_cleared")
	default:
		http.NotFound(w, r)
	}
}

func (h *JobsHandler) getJob(w http.ResponseWriter, r *http.Request, jobID int64) {
	jv, err := h.deps.Job(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jv)
}

func (h *JobsHandler) write(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, jobID int64) error, jobID int64, status string) {
	if err := op(r.Context(), jobID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": status, "job_id": jobID})
}

func (h *JobsHandler) analyze(w http.ResponseWriter, r *http.Request, jobID int64) {
	result, err := h.deps.Analyze(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type overrideRequest struct {
	Status string `json:"status"`
}

func (h *JobsHandler) setOverride(w http.ResponseWriter, r *http.Request, jobID int64) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if err := h.deps.SetOverride(r.Context(), jobID, req.Status); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "override_set", "job_id": jobID})
}

// HandleTopMatches handles GET /matches requests. The limit query parameter
// defaults to 10.
func (h *JobsHandler) HandleTopMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := defaultMatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		limit = n
	}

	matches, err := h.deps.TopMatches(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleTrackedSaves handles GET /saves requests.
func (h *JobsHandler) HandleTrackedSaves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	saves, err := h.deps.TrackedSaves(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saves)
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SyncHandler handles refresh, feedback and raw event appends.
type SyncHandler struct {
	deps Dependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

// HandleRefresh handles POST /refresh requests.
func (h *SyncHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if err := h.deps.Refresh(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

type feedbackRequest struct {
	Feedback string         `json:"feedback"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HandleFeedback handles POST /feedback requests.
func (h *SyncHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if err := h.deps.Feedback(r.Context(), req.Feedback, req.Metadata); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "logged"})
}

// eventRequest mirrors the backend's activity append shape.
type eventRequest struct {
	JobID    *int64         `json:"job_id,omitempty"`
	Kind     string         `json:"action_type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (e eventRequest) validate() error {
	if strings.TrimSpace(e.Kind) == "" {
		return ErrBadRequest
	}
	return nil
}

// HandlePostEvent handles POST /events requests, appending one activity
// event of an arbitrary kind (e.g. resume_generated).
func (h *SyncHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := h.deps.RecordEvent(r.Context(), req.JobID, req.Kind, req.Metadata); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "logged"})
}

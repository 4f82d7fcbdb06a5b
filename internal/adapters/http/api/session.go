package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// sessionResponse is the wire shape for GET /session.
type sessionResponse struct {
	State   string `json:"state"`
	UID     string `json:"uid,omitempty"`
	Email   string `json:"email,omitempty"`
	Profile any    `json:"profile,omitempty"`
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	snap, err := h.deps.Session(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := sessionResponse{State: string(snap.State)}
	if snap.Identity != nil {
		resp.UID = snap.Identity.UID
		resp.Email = snap.Identity.Email
	}
	if snap.Profile != nil {
		resp.Profile = snap.Profile
	}
	writeJSON(w, http.StatusOK, resp)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req signInRequest) validate() error {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return ErrBadRequest
	}
	return nil
}

// HandleSignIn handles POST /session/signin requests.
func (h *SessionHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := h.deps.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "signing_in"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

func (req registerRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return ErrBadRequest
	case strings.TrimSpace(req.Email) == "":
		return ErrBadRequest
	case req.Password == "":
		return ErrBadRequest
	}
	return nil
}

// HandleRegister handles POST /session/register requests.
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := h.deps.Register(r.Context(), req.Username, req.Email, req.Phone, req.Password); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "registering"})
}

// HandleLogout handles POST /session/logout requests.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if err := h.deps.Logout(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "logging_out"})
}

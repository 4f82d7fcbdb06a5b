// Package backend is the bearer-token HTTP client for the application
// backend: profile reads, activity-log reads, and activity appends.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
	"golang.org/x/time/rate"
)

// TokenFunc supplies a fresh bearer token for a request.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the application backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger

	// analyzeLimiter throttles scoring calls; everything else is unmetered.
	analyzeLimiter *rate.Limiter
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithAnalyzeRate bounds analyze calls to perMinute with the given burst.
func WithAnalyzeRate(perMinute, burst int) Option {
	return func(c *Client) {
		if perMinute > 0 && burst > 0 {
			c.analyzeLimiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
		}
	}
}

// New creates a backend client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 15 * time.Second},
		log:            logger.Discard(),
		analyzeLimiter: rate.NewLimiter(rate.Limit(0.1), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateUser registers a backend account and returns its numeric id.
// Unauthenticated: the account must exist before any identity is issued,
// so the returned id can be armed as the pending correlation for the
// sign-in that follows.
func (c *Client) CreateUser(ctx context.Context, username, email, phone, password string) (int64, error) {
	body := map[string]any{
		"username": username,
		"email":    email,
		"number":   phone,
		"password": password,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.postJSON(ctx, nil, "/users/", body, &out); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return out.ID, nil
}

// Feedback appends a free-form feedback entry to the user's activity log.
func (c *Client) Feedback(ctx context.Context, token TokenFunc, userID int64, feedback string, metadata map[string]any) error {
	body := map[string]any{
		"feedback": feedback,
		"metadata": metadata,
	}
	if err := c.postJSON(ctx, token, fmt.Sprintf("/users/%d/feedback", userID), body, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Profile fetches the durable profile record for a numeric id.
func (c *Client) Profile(ctx context.Context, token TokenFunc, id int64) (*model.Profile, error) {
	var p model.Profile
	if err := c.getJSON(ctx, token, fmt.Sprintf("/users/%d", id), &p); err != nil {
		metrics.RecordFetchError("profile")
		return nil, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}
	return &p, nil
}

// Job fetches one job listing. The listings are public; no bearer token.
func (c *Client) Job(ctx context.Context, id int64) (*model.Job, error) {
	var j model.Job
	if err := c.getJSON(ctx, nil, fmt.Sprintf("/jobs/%d", id), &j); err != nil {
		metrics.RecordFetchError("job")
		return nil, fmt.Errorf("%w: %w", ErrJobFetch, err)
	}
	return &j, nil
}

// activityWire is the backend's activity log record shape.
type activityWire struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	JobID     *int64         `json:"job_id"`
	Kind      string         `json:"action_type"`
	Metadata  map[string]any `json:"activity_metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Activity fetches the full activity log for a user. The returned events
// carry their list position in Seq for deterministic tie-breaking.
func (c *Client) Activity(ctx context.Context, token TokenFunc, userID int64) ([]model.ActivityEvent, error) {
	var wire []activityWire
	if err := c.getJSON(ctx, token, fmt.Sprintf("/activity/user/%d", userID), &wire); err != nil {
		metrics.RecordFetchError("activity")
		return nil, fmt.Errorf("%w: %w", ErrLogFetch, err)
	}

	events := make([]model.ActivityEvent, len(wire))
	for i, w := range wire {
		events[i] = model.ActivityEvent{
			ID:        w.ID,
			UserID:    w.UserID,
			JobID:     w.JobID,
			Kind:      w.Kind,
			Metadata:  w.Metadata,
			CreatedAt: w.CreatedAt,
			Seq:       i,
		}
	}
	return events, nil
}

// LogActivity appends one activity event. A client-generated id rides along
// in the metadata so retries stay recognizable server-side.
func (c *Client) LogActivity(ctx context.Context, token TokenFunc, userID int64, jobID *int64, kind string, metadata map[string]any) error {
	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md["client_event_id"] = uuid.NewString()

	body := map[string]any{
		"user_id":     userID,
		"job_id":      jobID,
		"action_type": kind,
		"metadata":    md,
	}
	if err := c.postJSON(ctx, token, "/activity/log", body, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// SaveJob appends a save or unsave event for the job atomically.
func (c *Client) SaveJob(ctx context.Context, token TokenFunc, jobID, userID int64, saved bool) error {
	form := url.Values{
		"user_id": {fmt.Sprintf("%d", userID)},
		"saved":   {fmt.Sprintf("%t", saved)},
	}
	if err := c.postForm(ctx, token, fmt.Sprintf("/jobs/%d/save", jobID), form, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// AnalyzeJob asks the backend to score the job against the user's profile
// and append the corresponding match_scored event. Rate limited.
func (c *Client) AnalyzeJob(ctx context.Context, token TokenFunc, jobID, userID int64) (model.MatchResult, error) {
	if err := c.analyzeLimiter.Wait(ctx); err != nil {
		return model.MatchResult{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	form := url.Values{"user_id": {fmt.Sprintf("%d", userID)}}
	var out model.MatchResult
	if err := c.postForm(ctx, token, fmt.Sprintf("/jobs/%d/analyze", jobID), form, &out); err != nil {
		return model.MatchResult{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, token TokenFunc, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, token, out)
}

func (c *Client) postJSON(ctx context.Context, token TokenFunc, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, out)
}

func (c *Client) postForm(ctx context.Context, token TokenFunc, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token TokenFunc, out any) error {
	if token != nil {
		bearer, err := token(req.Context())
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

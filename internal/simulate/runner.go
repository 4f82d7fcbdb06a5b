package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jobkit/synccore/internal/session"
	"github.com/jobkit/synccore/pkg/logger"
)

// Run drives one scripted exercise against a running sync daemon:
// health check, register, wait for the profile, save and analyze jobs,
// read the merged view back, log out.
func Run(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	log := logger.Get()
	client := &http.Client{Timeout: cfg.Timeout}

	log.Info(ctx, "starting sync exercise",
		logger.String("controlURL", cfg.ControlURL),
		logger.Int("jobs", cfg.Jobs))

	if err := call(ctx, client, http.MethodGet, cfg.ControlURL+"/healthz", nil, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	reg := map[string]any{
		"username": cfg.Username,
		"email":    cfg.Email,
		"password": cfg.Password,
	}
	if err := call(ctx, client, http.MethodPost, cfg.ControlURL+"/session/register", reg, nil); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	if err := waitForState(ctx, client, cfg, string(session.AuthenticatedWithProfile)); err != nil {
		return err
	}
	log.Info(ctx, "profile resolved")

	for i := 1; i <= cfg.Jobs; i++ {
		savePath := fmt.Sprintf("%s/jobs/%d/save", cfg.ControlURL, i)
		if err := call(ctx, client, http.MethodPost, savePath, nil, nil); err != nil {
			return fmt.Errorf("saving job %d: %w", i, err)
		}

		var match map[string]any
		analyzePath := fmt.Sprintf("%s/jobs/%d/analyze", cfg.ControlURL, i)
		if err := call(ctx, client, http.MethodPost, analyzePath, nil, &match); err != nil {
			return fmt.Errorf("analyzing job %d: %w", i, err)
		}
		log.Info(ctx, "job analyzed",
			logger.Int("jobID", i),
			logger.Any("score", match["score"]))
	}

	if err := call(ctx, client, http.MethodPost, cfg.ControlURL+"/refresh", nil, nil); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	// Give the projection a moment to absorb the confirmed writes.
	if err := waitForJobs(ctx, client, cfg); err != nil {
		return err
	}

	var matches []map[string]any
	if err := call(ctx, client, http.MethodGet, cfg.ControlURL+"/matches", nil, &matches); err != nil {
		return fmt.Errorf("reading matches: %w", err)
	}
	log.Info(ctx, "merged view verified", logger.Int("matches", len(matches)))

	if err := call(ctx, client, http.MethodPost, cfg.ControlURL+"/session/logout", nil, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if err := waitForState(ctx, client, cfg, string(session.Unauthenticated)); err != nil {
		return err
	}

	log.Info(ctx, "sync exercise completed")
	return nil
}

func waitForState(ctx context.Context, client *http.Client, cfg Config, want string) error {
	deadline := time.Now().Add(cfg.Timeout)
	for time.Now().Before(deadline) {
		var sess struct {
			State string `json:"state"`
		}
		if err := call(ctx, client, http.MethodGet, cfg.ControlURL+"/session", nil, &sess); err == nil && sess.State == want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("session never reached %s", want)
}

func waitForJobs(ctx context.Context, client *http.Client, cfg Config) error {
	deadline := time.Now().Add(cfg.Timeout)
	for time.Now().Before(deadline) {
		var jobs []struct {
			Saved   bool `json:"saved"`
			Pending bool `json:"pending"`
		}
		if err := call(ctx, client, http.MethodGet, cfg.ControlURL+"/jobs", nil, &jobs); err == nil {
			settled := len(jobs) >= cfg.Jobs
			for _, j := range jobs {
				if j.Pending || !j.Saved {
					settled = false
				}
			}
			if settled {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("saves never settled across %d jobs", cfg.Jobs)
}

func call(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

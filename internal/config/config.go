// Package config defines daemon configuration structures and loading hooks.
//
// Conventions:
// - Provide New() with defaults; Load() layers file and env on top.
// - External errors are wrapped via this package's sentinel kinds.
package config

import (
	"os"
	"path/filepath"
)

// Config contains process configuration for the sync daemon.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the localhost control API listen address.
	Addr string `koanf:"addr"`

	// DataDir is the directory holding the persisted client state
	// (match-score cache, local overrides, last-known profile hint).
	DataDir string `koanf:"data_dir"`

	// BackendBaseURL is the application backend, e.g. "http://localhost:8000".
	BackendBaseURL string `koanf:"backend_base_url"`

	// IdentityBaseURL is the identity toolkit endpoint.
	IdentityBaseURL string `koanf:"identity_base_url"`

	// IdentityAPIKey is the browser API key passed to the identity toolkit.
	IdentityAPIKey string `koanf:"identity_api_key"`

	// FetchTimeoutMS bounds a single profile or activity-log fetch.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	// MailboxSize bounds the actor mailbox.
	MailboxSize int `koanf:"mailbox_size"`

	// AnalyzePerMinute and AnalyzeBurst rate-limit scoring calls.
	AnalyzePerMinute int `koanf:"analyze_per_minute"`
	AnalyzeBurst     int `koanf:"analyze_burst"`

	// Scorer selects the match scorer: "backend" calls POST /jobs/{id}/analyze,
	// "local" computes through an OpenAI-compatible endpoint.
	Scorer string `koanf:"scorer"`

	// LLMBaseURL, LLMAPIKey and LLMModel configure the local scorer.
	LLMBaseURL string `koanf:"llm_base_url"`
	LLMAPIKey  string `koanf:"llm_api_key"`
	LLMModel   string `koanf:"llm_model"`
}

// New returns a Config populated with defaults.
func New() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		LogLevel:         "info",
		Addr:             "127.0.0.1:9180",
		DataDir:          filepath.Join(home, ".synccore"),
		BackendBaseURL:   "http://localhost:8000",
		IdentityBaseURL:  "https://identitytoolkit.googleapis.com/v1",
		FetchTimeoutMS:   10_000,
		MailboxSize:      1024,
		AnalyzePerMinute: 6,
		AnalyzeBurst:     2,
		Scorer:           "backend",
		LLMBaseURL:       "http://localhost:11434/v1",
		LLMModel:         "gpt-4o-mini",
	}
}

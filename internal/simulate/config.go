package simulate

import "time"

// Default runner configuration constants.
const (
	DefaultJobs    = 5
	DefaultTimeout = 10 * time.Second
)

// Config controls one scripted exercise run.
type Config struct {
	// ControlURL is the sync daemon's control API base URL.
	ControlURL string

	// Email and Password identify the exercised account. A fresh email
	// per run avoids registration conflicts.
	Email    string
	Username string
	Password string

	// Jobs is how many seeded jobs to save and analyze.
	Jobs int

	// Timeout bounds each control API call.
	Timeout time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Jobs <= 0 {
		c.Jobs = DefaultJobs
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Username == "" {
		c.Username = "simuser"
	}
	if c.Password == "" {
		c.Password = "sim-password"
	}
	return c
}

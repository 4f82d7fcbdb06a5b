// Package model contains domain models passed between layers.
package model

import "time"

// Action kinds recorded in the user activity log. Kinds are open string
// tags; only the saved/unsaved pair defines derived job state.
const (
	ActionJobSaved        = "job_saved"
	ActionJobUnsaved      = "job_unsaved"
	ActionMatchScored     = "match_scored"
	ActionResumeGenerated = "resume_generated"
	ActionFeedback        = "feedback"
)

// ActivityEvent is one append-only activity log record.
// Events are immutable; per job they are ordered by CreatedAt with ties
// broken by Seq, the position in the fetched list.
type ActivityEvent struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	JobID     *int64         `json:"job_id"`
	Kind      string         `json:"action_type"`
	Metadata  map[string]any `json:"activity_metadata"`
	CreatedAt time.Time      `json:"created_at"`

	// Seq is assigned on fetch and never serialized.
	Seq int `json:"-"`
}

// Profile is the durable backend user record, keyed by numeric id. The core
// fetches and republishes it opaquely; only ID and Email are interpreted.
type Profile struct {
	ID             int64       `json:"id"`
	UserName       string      `json:"user_name"`
	Email          string      `json:"email_id"`
	PhoneNumber    string      `json:"phone_number,omitempty"`
	DesiredRole    string      `json:"desired_job_role,omitempty"`
	Skills         []string    `json:"skills,omitempty"`
	ExperienceYrs  int         `json:"experience,omitempty"`
	Locations      []string    `json:"preferred_locations,omitempty"`
	RemotePref     string      `json:"remote_preference,omitempty"`
	Summary        string      `json:"professional_summary,omitempty"`
	ExpectedSalary string      `json:"expected_salary,omitempty"`
	Resume         string      `json:"resume,omitempty"`
	JoinedAt       *time.Time  `json:"joined_date,omitempty"`
	WorkHistory    []WorkEntry `json:"work_history,omitempty"`
	Education      []EduEntry  `json:"education,omitempty"`
	Certifications []CertEntry `json:"certifications,omitempty"`
}

// WorkEntry, EduEntry and CertEntry are nested profile collections. They are
// carried through untouched.
type WorkEntry struct {
	Company string `json:"company"`
	Title   string `json:"title"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type EduEntry struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Year   string `json:"year,omitempty"`
}

type CertEntry struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Year   string `json:"year,omitempty"`
}

// Job is a backend job listing, trimmed to the fields the client reads.
type Job struct {
	ID          int64  `json:"id"`
	Title       string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Remote      bool   `json:"remote"`
	Seniority   string `json:"seniority,omitempty"`
	Salary      string `json:"salary_string,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// JobState is the derived per-job state produced by projection. It is fully
// recomputed on every projection, never patched in place.
type JobState struct {
	Saved        bool      `json:"saved"`
	LastActionAt time.Time `json:"last_action_at"`
}

// MatchResult is a computed match score cache entry.
type MatchResult struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// Equal reports structural equality; used for no-op put detection.
func (m MatchResult) Equal(other MatchResult) bool {
	return m.Score == other.Score && m.Explanation == other.Explanation
}

// SyncStatus tags a locally-mutated job while the backend write is in flight.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncConfirmed SyncStatus = "confirmed"
	SyncFailed    SyncStatus = "failed"
)

// TrackedSave is the optimistic save/unsave wrapper: the local flip is
// applied immediately and the backend result only updates Status. A failed
// write is left in place until the next successful re-projection.
type TrackedSave struct {
	JobID  int64      `json:"job_id"`
	Saved  bool       `json:"saved"`
	Status SyncStatus `json:"status"`
	At     time.Time  `json:"at"`
}

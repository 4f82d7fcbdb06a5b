package backend

import "errors"

// Sentinel kinds for backend client errors, mirroring the failure taxonomy
// the sync service routes on.
var (
	// ErrProfileFetch marks a failed profile fetch. The session machine
	// treats it as terminal: fail closed to Unauthenticated.
	ErrProfileFetch = errors.New("profile fetch failed")

	// ErrLogFetch marks a failed activity-log fetch. Recoverable; the last
	// good projection is retained.
	ErrLogFetch = errors.New("activity log fetch failed")

	// ErrJobFetch marks a failed job-listing read. Recoverable.
	ErrJobFetch = errors.New("job fetch failed")

	// ErrWrite marks a failed append (save/unsave/analyze/log). The
	// optimistic local update stays in place; callers get a retry
	// affordance.
	ErrWrite = errors.New("activity append failed")
)

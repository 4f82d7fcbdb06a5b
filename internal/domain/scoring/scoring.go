// Package scoring defines the contract for computing a match score between
// the user's profile and a job.
//
// The persisted match cache must be consulted before calling any Scorer;
// scoring is the expensive recomputation the cache exists to avoid.
package scoring

import (
	"context"

	"github.com/jobkit/synccore/internal/domain/model"
)

// Input carries what a scorer needs about the user and the job.
type Input struct {
	Profile *model.Profile
	JobID   int64

	// Title and Description are the job posting text. The core treats job
	// records opaquely, so callers pass the text through.
	Title       string
	Description string
}

// Scorer computes a match result for an input, honoring ctx for
// cancellation.
type Scorer interface {
	Score(ctx context.Context, in Input) (model.MatchResult, error)
}

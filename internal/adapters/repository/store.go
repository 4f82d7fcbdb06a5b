// Package repository defines the merged job view store and errors.
//
// The view is the read model served to callers: the last applied activity
// projection, layered with local overrides and in-flight optimistic saves.
package repository

import (
	"context"
	"time"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/projection"
)

// JobView is one job as callers see it after all layers are merged.
type JobView struct {
	JobID        int64              `json:"job_id"`
	Saved        bool               `json:"saved"`
	Override     string             `json:"override,omitempty"`
	LastActionAt time.Time          `json:"last_action_at"`
	Match        *model.MatchResult `json:"match,omitempty"`
	Pending      bool               `json:"pending"`
}

// Store provides read/write access to the merged view state.
type Store interface {
	// ApplySnapshot replaces the projection layer.
	ApplySnapshot(ctx context.Context, snap projection.Snapshot)

	// SetOverrides replaces the local status override layer.
	SetOverrides(ctx context.Context, overrides map[int64]string)

	// TrackSave records an in-flight optimistic save or unsave.
	TrackSave(ctx context.Context, ts model.TrackedSave)

	// ResolveSave marks a tracked save confirmed or failed.
	// Returns ErrNotFound if no save is tracked for the job.
	ResolveSave(ctx context.Context, jobID int64, status model.SyncStatus) error

	// Job returns the merged view of one job.
	// Returns ErrNotFound if the job is unknown to every layer.
	Job(ctx context.Context, jobID int64) (JobView, error)

	// Jobs returns every known job ordered by job id.
	Jobs(ctx context.Context) []JobView

	// TopMatches returns up to n jobs ordered by match score descending.
	TopMatches(ctx context.Context, n int) ([]JobView, error)

	// TrackedSaves returns the in-flight and recently resolved writes.
	TrackedSaves(ctx context.Context) []model.TrackedSave

	// Count returns the number of jobs in the merged view.
	Count(ctx context.Context) int

	// Clear drops every layer; used on sign-out.
	Clear(ctx context.Context)
}

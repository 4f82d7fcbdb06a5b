package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/projection"
	"github.com/jobkit/synccore/pkg/logger"
)

func newTestView() *View {
	return NewView(WithLogger(logger.Discard()))
}

func snapWith(jobs map[int64]model.JobState, matches map[int64]model.MatchResult) projection.Snapshot {
	return projection.Snapshot{Jobs: jobs, Matches: matches}
}

func TestView_ProjectionLayer(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v.ApplySnapshot(ctx, snapWith(
		map[int64]model.JobState{7: {Saved: true, LastActionAt: at}},
		map[int64]model.MatchResult{7: {Score: 0.8, Explanation: "match"}},
	))

	jv, err := v.Job(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !jv.Saved || jv.Pending {
		t.Errorf("expected saved, not pending, got %+v", jv)
	}
	if jv.Match == nil || jv.Match.Score != 0.8 {
		t.Errorf("expected match 0.8, got %+v", jv.Match)
	}
	if !jv.LastActionAt.Equal(at) {
		t.Errorf("expected last action %v, got %v", at, jv.LastActionAt)
	}

	if _, err := v.Job(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestView_OverrideAnnotatesProjection(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	v.ApplySnapshot(ctx, snapWith(map[int64]model.JobState{7: {Saved: true}}, nil))
	v.SetOverrides(ctx, map[int64]string{7: "interviewing"})

	jv, err := v.Job(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jv.Override != "interviewing" {
		t.Errorf("expected interviewing override, got %q", jv.Override)
	}
	if !jv.Saved {
		t.Error("expected saved flag untouched by override")
	}
}

func TestView_TrackedSaveWinsSavedFlag(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	v.ApplySnapshot(ctx, snapWith(map[int64]model.JobState{7: {Saved: true}}, nil))
	v.SetOverrides(ctx, map[int64]string{7: "applied"})
	v.TrackSave(ctx, model.TrackedSave{JobID: 7, Saved: false, Status: model.SyncPending, At: time.Now()})

	jv, err := v.Job(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jv.Saved {
		t.Error("expected pending unsave to win")
	}
	if !jv.Pending {
		t.Error("expected pending flag")
	}
	if jv.Override != "applied" {
		t.Errorf("expected override preserved, got %q", jv.Override)
	}
}

func TestView_ResolveSave(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	if err := v.ResolveSave(ctx, 7, model.SyncConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	v.TrackSave(ctx, model.TrackedSave{JobID: 7, Saved: true, Status: model.SyncPending, At: time.Now()})
	if err := v.ResolveSave(ctx, 7, model.SyncFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No rollback: the optimistic value stays after failure.
	jv, err := v.Job(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !jv.Saved || jv.Pending {
		t.Errorf("expected resolved save to keep value, got %+v", jv)
	}

	saves := v.TrackedSaves(ctx)
	if len(saves) != 1 || saves[0].Status != model.SyncFailed {
		t.Errorf("expected one failed save, got %+v", saves)
	}
}

func TestView_SnapshotSupersedesResolvedSaves(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	v.TrackSave(ctx, model.TrackedSave{JobID: 7, Saved: true, Status: model.SyncPending, At: time.Now()})
	v.TrackSave(ctx, model.TrackedSave{JobID: 8, Saved: true, Status: model.SyncPending, At: time.Now()})
	if err := v.ResolveSave(ctx, 7, model.SyncConfirmed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v.ApplySnapshot(ctx, snapWith(map[int64]model.JobState{7: {Saved: true}}, nil))

	saves := v.TrackedSaves(ctx)
	if len(saves) != 1 || saves[0].JobID != 8 {
		t.Errorf("expected only the pending save to survive, got %+v", saves)
	}
}

func TestView_TopMatches(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	v.ApplySnapshot(ctx, snapWith(nil, map[int64]model.MatchResult{
		1: {Score: 0.5},
		2: {Score: 0.9},
		3: {Score: 0.9},
		4: {Score: 0.1},
	}))

	top, err := v.TopMatches(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []int64{top[0].JobID, top[1].JobID, top[2].JobID}
	want := []int64{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	if _, err := v.TopMatches(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestView_JobsAndClear(t *testing.T) {
	v := newTestView()
	ctx := t.Context()

	v.ApplySnapshot(ctx, snapWith(map[int64]model.JobState{3: {Saved: true}}, nil))
	v.SetOverrides(ctx, map[int64]string{1: "applied"})
	v.TrackSave(ctx, model.TrackedSave{JobID: 2, Saved: true, Status: model.SyncPending, At: time.Now()})

	jobs := v.Jobs(ctx)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, want := range []int64{1, 2, 3} {
		if jobs[i].JobID != want {
			t.Errorf("expected job %d at %d, got %d", want, i, jobs[i].JobID)
		}
	}
	if v.Count(ctx) != 3 {
		t.Errorf("expected count 3, got %d", v.Count(ctx))
	}

	v.Clear(ctx)
	if v.Count(ctx) != 0 {
		t.Errorf("expected empty view after clear, got %d", v.Count(ctx))
	}
}

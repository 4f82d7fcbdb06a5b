package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/projection"
	"github.com/jobkit/synccore/pkg/logger"
)

// Mutex-guarded, in-memory Store implementation.
//
// Layering: the projection snapshot is the base, persisted status overrides
// annotate it, and the newest tracked save for a job wins the saved flag.
// A failed write keeps its optimistic value; the next projection replaces it.

// View implements Store.
type View struct {
	mu        sync.RWMutex
	snap      projection.Snapshot
	overrides map[int64]string
	saves     map[int64]model.TrackedSave

	log logger.Logger
}

// Option applies a configuration option to the View.
type Option func(*View)

// WithLogger sets the logger used by the view.
func WithLogger(l logger.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}

// NewView creates an empty view.
func NewView(opts ...Option) *View {
	v := &View{
		snap: projection.Snapshot{
			Jobs:    map[int64]model.JobState{},
			Matches: map[int64]model.MatchResult{},
		},
		overrides: map[int64]string{},
		saves:     map[int64]model.TrackedSave{},
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ApplySnapshot replaces the projection layer.
func (v *View) ApplySnapshot(ctx context.Context, snap projection.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap.Jobs == nil {
		snap.Jobs = map[int64]model.JobState{}
	}
	if snap.Matches == nil {
		snap.Matches = map[int64]model.MatchResult{}
	}
	v.snap = snap
	v.log.Debug(ctx, "projection applied",
		logger.Int("jobs", len(snap.Jobs)),
		logger.Int("matches", len(snap.Matches)))

	// Confirmed and failed writes are superseded by a fresh projection;
	// pending ones stay visible until they resolve.
	for id, ts := range v.saves {
		if ts.Status != model.SyncPending {
			delete(v.saves, id)
		}
	}
}

// SetOverrides replaces the local status override layer.
func (v *View) SetOverrides(_ context.Context, overrides map[int64]string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.overrides = map[int64]string{}
	for id, status := range overrides {
		v.overrides[id] = status
	}
}

// TrackSave records an in-flight optimistic save or unsave.
func (v *View) TrackSave(_ context.Context, ts model.TrackedSave) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.saves[ts.JobID] = ts
}

// ResolveSave marks the tracked save for jobID confirmed or failed.
func (v *View) ResolveSave(_ context.Context, jobID int64, status model.SyncStatus) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ts, ok := v.saves[jobID]
	if !ok {
		return ErrNotFound
	}
	ts.Status = status
	v.saves[jobID] = ts
	return nil
}

// Job returns the merged view of one job.
func (v *View) Job(_ context.Context, jobID int64) (JobView, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.known(jobID) {
		return JobView{}, ErrNotFound
	}
	return v.merge(jobID), nil
}

// Jobs returns every known job ordered by job id.
func (v *View) Jobs(_ context.Context) []JobView {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ids := v.ids()
	out := make([]JobView, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.merge(id))
	}
	return out
}

// TopMatches returns up to n jobs ordered by match score descending,
// ties broken by job id ascending.
func (v *View) TopMatches(_ context.Context, n int) ([]JobView, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]JobView, 0, len(v.snap.Matches))
	for id := range v.snap.Matches {
		out = append(out, v.merge(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Match.Score != out[j].Match.Score {
			return out[i].Match.Score > out[j].Match.Score
		}
		return out[i].JobID < out[j].JobID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// TrackedSaves returns the in-flight and recently resolved writes
// ordered by job id.
func (v *View) TrackedSaves(_ context.Context) []model.TrackedSave {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]model.TrackedSave, 0, len(v.saves))
	for _, ts := range v.saves {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

// Count returns the number of jobs in the merged view.
func (v *View) Count(_ context.Context) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.ids())
}

// Clear drops every layer.
func (v *View) Clear(_ context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.snap = projection.Snapshot{
		Jobs:    map[int64]model.JobState{},
		Matches: map[int64]model.MatchResult{},
	}
	v.overrides = map[int64]string{}
	v.saves = map[int64]model.TrackedSave{}
}

func (v *View) known(jobID int64) bool {
	if _, ok := v.snap.Jobs[jobID]; ok {
		return true
	}
	if _, ok := v.snap.Matches[jobID]; ok {
		return true
	}
	if _, ok := v.overrides[jobID]; ok {
		return true
	}
	_, ok := v.saves[jobID]
	return ok
}

func (v *View) ids() []int64 {
	seen := map[int64]struct{}{}
	for id := range v.snap.Jobs {
		seen[id] = struct{}{}
	}
	for id := range v.snap.Matches {
		seen[id] = struct{}{}
	}
	for id := range v.overrides {
		seen[id] = struct{}{}
	}
	for id := range v.saves {
		seen[id] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// merge resolves one job across layers. Caller holds at least a read lock.
func (v *View) merge(jobID int64) JobView {
	jv := JobView{JobID: jobID}

	if js, ok := v.snap.Jobs[jobID]; ok {
		jv.Saved = js.Saved
		jv.LastActionAt = js.LastActionAt
	}
	if status, ok := v.overrides[jobID]; ok {
		jv.Override = status
	}
	if ts, ok := v.saves[jobID]; ok {
		jv.Saved = ts.Saved
		jv.Pending = ts.Status == model.SyncPending
		if ts.At.After(jv.LastActionAt) {
			jv.LastActionAt = ts.At
		}
	}
	if mr, ok := v.snap.Matches[jobID]; ok {
		m := mr
		jv.Match = &m
	}
	return jv
}

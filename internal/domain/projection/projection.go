// Package projection replays the append-only activity log into current
// derived per-job state.
//
// The full log is re-projected on every refresh; output is always a full
// replacement map, never an incremental patch. Within one job the event with
// the maximum timestamp among state-defining kinds wins; timestamp ties
// resolve by position in the input list, which makes projection deterministic
// for identical input regardless of wall-clock behavior.
package projection

import (
	"encoding/json"

	"github.com/jobkit/synccore/internal/domain/model"
)

// Snapshot is the result of one projection pass.
type Snapshot struct {
	// Jobs maps job id to derived state for every job the log mentions.
	Jobs map[int64]model.JobState

	// Matches maps job id to the latest logged match score, extracted from
	// match_scored events carrying numeric score and explanation metadata.
	Matches map[int64]model.MatchResult
}

// Project replays events into a Snapshot. The input order is the arrival
// order used for tie-breaking; callers pass the fetched list as-is.
func Project(events []model.ActivityEvent) Snapshot {
	snap := Snapshot{
		Jobs:    make(map[int64]model.JobState),
		Matches: make(map[int64]model.MatchResult),
	}

	// Winning state-defining and match_scored event per job, tracked by
	// (timestamp, list position).
	type winner struct {
		idx int
		ev  model.ActivityEvent
	}
	stateWinners := make(map[int64]winner)
	matchWinners := make(map[int64]winner)

	for i, ev := range events {
		if ev.JobID == nil {
			continue
		}
		jobID := *ev.JobID

		js := snap.Jobs[jobID]
		if ev.CreatedAt.After(js.LastActionAt) {
			js.LastActionAt = ev.CreatedAt
		}
		snap.Jobs[jobID] = js

		switch ev.Kind {
		case model.ActionJobSaved, model.ActionJobUnsaved:
			if w, ok := stateWinners[jobID]; !ok || later(ev, i, w.ev, w.idx) {
				stateWinners[jobID] = winner{idx: i, ev: ev}
			}
		case model.ActionMatchScored:
			if _, ok := extractMatch(ev); !ok {
				continue
			}
			if w, ok := matchWinners[jobID]; !ok || later(ev, i, w.ev, w.idx) {
				matchWinners[jobID] = winner{idx: i, ev: ev}
			}
		}
	}

	for jobID, w := range stateWinners {
		js := snap.Jobs[jobID]
		js.Saved = w.ev.Kind == model.ActionJobSaved
		snap.Jobs[jobID] = js
	}
	for jobID, w := range matchWinners {
		if m, ok := extractMatch(w.ev); ok {
			snap.Matches[jobID] = m
		}
	}

	return snap
}

// later reports whether event a at position ai wins over b at bi.
// Strictly newer timestamps win; equal timestamps fall back to list order.
func later(a model.ActivityEvent, ai int, b model.ActivityEvent, bi int) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return ai > bi
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// extractMatch pulls {score, explanation} out of match_scored metadata.
// Score may arrive as float64, int variants, or json.Number depending on the
// decoder; anything non-numeric disqualifies the event.
func extractMatch(ev model.ActivityEvent) (model.MatchResult, bool) {
	if ev.Metadata == nil {
		return model.MatchResult{}, false
	}
	score, ok := toFloat(ev.Metadata["score"])
	if !ok {
		return model.MatchResult{}, false
	}
	explanation, _ := ev.Metadata["explanation"].(string)
	return model.MatchResult{Score: score, Explanation: explanation}, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
)

// Match returns the cached match result for a job, if present. This is the
// read-through consulted before any scoring call.
func (s *Store) Match(ctx context.Context, jobID int64) (model.MatchResult, bool, error) {
	var entry model.MatchResult
	found, err := s.getValue(matchKey(jobID), func(val []byte) error {
		return json.Unmarshal(val, &entry)
	})
	if err != nil {
		return model.MatchResult{}, false, err
	}
	if found {
		metrics.RecordCacheHit()
	} else {
		metrics.RecordCacheMiss()
	}
	return entry, found, nil
}

// PutMatch writes a match result. A write structurally equal to the stored
// value is a no-op: nothing is persisted and no change notification fires.
// Returns whether the stored value changed.
func (s *Store) PutMatch(ctx context.Context, jobID int64, entry model.MatchResult) (bool, error) {
	var current model.MatchResult
	found, err := s.getValue(matchKey(jobID), func(val []byte) error {
		return json.Unmarshal(val, &current)
	})
	if err != nil {
		return false, err
	}
	if found && current.Equal(entry) {
		metrics.RecordCachePut(true)
		return false, nil
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := s.setValue(matchKey(jobID), val); err != nil {
		return false, err
	}
	metrics.RecordCachePut(false)
	s.log.Debug(ctx, "match cache updated",
		logger.Int64("job_id", jobID), logger.Float64("score", entry.Score))
	if s.onChange != nil {
		s.onChange(jobID, entry)
	}
	return true, nil
}

// MergeMatches applies PutMatch per key with the same no-op semantics,
// typically fed from a projection's extracted score entries. Returns the job
// ids whose stored value actually changed.
func (s *Store) MergeMatches(ctx context.Context, entries map[int64]model.MatchResult) ([]int64, error) {
	var changed []int64
	for jobID, entry := range entries {
		didChange, err := s.PutMatch(ctx, jobID, entry)
		if err != nil {
			return changed, err
		}
		if didChange {
			changed = append(changed, jobID)
		}
	}
	return changed, nil
}

// Matches returns all cached match results.
func (s *Store) Matches(ctx context.Context) (map[int64]model.MatchResult, error) {
	out := make(map[int64]model.MatchResult)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(matchPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			jobID, ok := jobIDFromKey(item.Key(), matchPrefix)
			if !ok {
				continue
			}
			var entry model.MatchResult
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			out[jobID] = entry
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return out, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
)

// Local overrides carry per-job statuses the backend does not log as
// distinct events ("applied", "interviewing", ...). They layer on top of
// derived job state at read time and are never written back through the
// activity log.

// Override returns the local status override for a job, if set.
func (s *Store) Override(ctx context.Context, jobID int64) (string, bool, error) {
	var status string
	found, err := s.getValue(overrideKey(jobID), func(val []byte) error {
		status = string(val)
		return nil
	})
	return status, found, err
}

// SetOverride stores a local status override for a job.
func (s *Store) SetOverride(ctx context.Context, jobID int64, status string) error {
	if err := s.setValue(overrideKey(jobID), []byte(status)); err != nil {
		return err
	}
	s.log.Debug(ctx, "override set",
		logger.Int64("job_id", jobID), logger.String("status", status))
	return s.updateOverrideGauge(ctx)
}

// ClearOverride removes the override for a job. Clearing a missing override
// is a no-op.
func (s *Store) ClearOverride(ctx context.Context, jobID int64) error {
	if err := s.deleteValue(overrideKey(jobID)); err != nil {
		return err
	}
	return s.updateOverrideGauge(ctx)
}

// Overrides returns all local overrides by job id.
func (s *Store) Overrides(ctx context.Context) (map[int64]string, error) {
	out := make(map[int64]string)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(overridePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			jobID, ok := jobIDFromKey(item.Key(), overridePrefix)
			if !ok {
				continue
			}
			if err := item.Value(func(val []byte) error {
				out[jobID] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return out, nil
}

// ReconcileOverrides enforces the invariant that an unsaved job cannot carry
// a downstream status: every override whose job projects as not saved is
// cleared. Called after each projection merge. Returns the cleared job ids.
func (s *Store) ReconcileOverrides(ctx context.Context, jobs map[int64]model.JobState) ([]int64, error) {
	overrides, err := s.Overrides(ctx)
	if err != nil {
		return nil, err
	}

	var cleared []int64
	for jobID := range overrides {
		js, ok := jobs[jobID]
		if ok && !js.Saved {
			if err := s.deleteValue(overrideKey(jobID)); err != nil {
				return cleared, err
			}
			cleared = append(cleared, jobID)
		}
	}
	if len(cleared) > 0 {
		s.log.Info(ctx, "cleared overrides for unsaved jobs",
			logger.Int("count", len(cleared)))
	}
	return cleared, s.updateOverrideGauge(ctx)
}

func (s *Store) updateOverrideGauge(ctx context.Context) error {
	overrides, err := s.Overrides(ctx)
	if err != nil {
		return err
	}
	metrics.UpdateOverrideCount(len(overrides))
	return nil
}

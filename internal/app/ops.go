package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jobkit/synccore/internal/adapters/repository"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/scoring"
	"github.com/jobkit/synccore/internal/session"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
)

// User-facing operations. These run on the caller's goroutine; anything that
// touches session or projection state goes through the mailbox.

// SignIn signs an existing identity in. State changes arrive through the
// provider's event stream, not through this call's return.
func (s *Service) SignIn(ctx context.Context, email, password string) error {
	if _, err := s.startedGuard(); err != nil {
		return err
	}
	return s.provider.SignIn(ctx, email, password)
}

// Register creates the backend account first, arms its numeric id as the
// pending correlation, then registers the identity. The next signed-in
// event consumes the armed id.
func (s *Service) Register(ctx context.Context, username, email, phone, password string) error {
	m, err := s.startedGuard()
	if err != nil {
		return err
	}

	id, err := s.backend.CreateUser(ctx, username, email, phone, password)
	if err != nil {
		return err
	}
	if err := m.SetPendingProfileID(id); err != nil {
		return err
	}
	return s.provider.Register(ctx, email, password)
}

// Logout begins sign-out. The machine holds LoggingOut until the provider's
// stream confirms with a signed-out event.
func (s *Service) Logout(ctx context.Context) error {
	m, err := s.startedGuard()
	if err != nil {
		return err
	}

	if !m.BeginLogout(ctx) {
		return nil
	}
	return s.provider.SignOut(ctx)
}

// Session returns the machine's current snapshot.
func (s *Service) Session(_ context.Context) (session.Snapshot, error) {
	m, err := s.startedGuard()
	if err != nil {
		return session.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// SaveJob optimistically marks the job saved and syncs in the background.
func (s *Service) SaveJob(ctx context.Context, jobID int64) error {
	return s.setSaved(ctx, jobID, true)
}

// UnsaveJob optimistically marks the job unsaved, clears its local override
// and syncs in the background.
func (s *Service) UnsaveJob(ctx context.Context, jobID int64) error {
	return s.setSaved(ctx, jobID, false)
}

func (s *Service) setSaved(ctx context.Context, jobID int64, saved bool) error {
	cur, err := s.currentSession()
	if err != nil {
		return err
	}
	if cur.userID == 0 {
		return ErrNoProfile
	}

	action := model.ActionJobUnsaved
	if saved {
		action = model.ActionJobSaved
	}

	s.view.TrackSave(ctx, model.TrackedSave{
		JobID:  jobID,
		Saved:  saved,
		Status: model.SyncPending,
		At:     time.Now().UTC(),
	})
	metrics.RecordWrite(action, "pending")

	// An unsaved job never keeps a status override.
	if !saved {
		if err := s.store.ClearOverride(ctx, jobID); err != nil {
			s.logger.Warn(ctx, "clearing override on unsave failed", logger.Error(err))
		} else if overrides, oerr := s.store.Overrides(ctx); oerr == nil {
			s.view.SetOverrides(ctx, overrides)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()

		werr := s.backend.SaveJob(wctx, cur.token, jobID, cur.userID, saved)
		if !s.mailbox.Enqueue(context.Background(), writeResult{uid: cur.uid, jobID: jobID, action: action, err: werr}) {
			s.logger.Debug(context.Background(), "write result dropped at shutdown",
				logger.Int64("jobID", jobID))
		}
	}()
	return nil
}

// Analyze returns the match result for a job, serving from the persisted
// cache when possible. Cache misses go to the configured scorer.
func (s *Service) Analyze(ctx context.Context, jobID int64) (model.MatchResult, error) {
	cur, err := s.currentSession()
	if err != nil {
		return model.MatchResult{}, err
	}
	if cur.userID == 0 {
		return model.MatchResult{}, ErrNoProfile
	}

	if cached, ok, cerr := s.store.Match(ctx, jobID); cerr == nil && ok {
		return cached, nil
	}

	var result model.MatchResult
	if s.scorer != nil {
		result, err = s.analyzeLocal(ctx, cur, jobID)
	} else {
		result, err = s.backend.AnalyzeJob(ctx, cur.token, jobID, cur.userID)
	}
	if err != nil {
		return model.MatchResult{}, err
	}

	if _, perr := s.store.PutMatch(ctx, jobID, result); perr != nil {
		s.logger.Warn(ctx, "caching match result failed", logger.Error(perr))
	}
	return result, nil
}

// analyzeLocal scores through the local scorer and appends the resulting
// match event so the backend log stays the source of truth.
func (s *Service) analyzeLocal(ctx context.Context, cur current, jobID int64) (model.MatchResult, error) {
	job, err := s.backend.Job(ctx, jobID)
	if err != nil {
		return model.MatchResult{}, err
	}

	snap := s.machine.Snapshot()
	if snap.Profile == nil {
		return model.MatchResult{}, ErrNoProfile
	}

	result, err := s.scorer.Score(ctx, scoring.Input{
		Profile:     snap.Profile,
		JobID:       jobID,
		Title:       job.Title,
		Description: job.Description,
	})
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("local scoring: %w", err)
	}

	md := map[string]any{"score": result.Score, "explanation": result.Explanation}
	if lerr := s.backend.LogActivity(ctx, cur.token, cur.userID, &jobID, model.ActionMatchScored, md); lerr != nil {
		// Best effort: the cached result still serves reads.
		s.logger.Warn(ctx, "appending match event failed", logger.Error(lerr))
	}
	return result, nil
}

// SetOverride stores a local status override for a job.
func (s *Service) SetOverride(ctx context.Context, jobID int64, status string) error {
	if _, err := s.startedGuard(); err != nil {
		return err
	}
	if err := s.store.SetOverride(ctx, jobID, status); err != nil {
		return err
	}
	if overrides, err := s.store.Overrides(ctx); err == nil {
		s.view.SetOverrides(ctx, overrides)
	}
	return nil
}

// ClearOverride drops the local status override for a job.
func (s *Service) ClearOverride(ctx context.Context, jobID int64) error {
	if _, err := s.startedGuard(); err != nil {
		return err
	}
	if err := s.store.ClearOverride(ctx, jobID); err != nil {
		return err
	}
	if overrides, err := s.store.Overrides(ctx); err == nil {
		s.view.SetOverrides(ctx, overrides)
	}
	return nil
}

// Feedback appends a free-form feedback entry to the activity log.
func (s *Service) Feedback(ctx context.Context, text string, metadata map[string]any) error {
	cur, err := s.currentSession()
	if err != nil {
		return err
	}
	if cur.userID == 0 {
		return ErrNoProfile
	}
	return s.backend.Feedback(ctx, cur.token, cur.userID, text, metadata)
}

// RecordEvent appends one activity event of an arbitrary kind, e.g.
// resume_generated.
func (s *Service) RecordEvent(ctx context.Context, jobID *int64, kind string, metadata map[string]any) error {
	cur, err := s.currentSession()
	if err != nil {
		return err
	}
	if cur.userID == 0 {
		return ErrNoProfile
	}
	return s.backend.LogActivity(ctx, cur.token, cur.userID, jobID, kind, metadata)
}

// Refresh re-fetches the activity log and re-projects it.
func (s *Service) Refresh(_ context.Context) error {
	cur, err := s.currentSession()
	if err != nil {
		return err
	}
	if cur.userID == 0 {
		return ErrNoProfile
	}
	s.fetchActivity(cur.token, cur.uid, cur.userID)
	return nil
}

// Jobs returns the merged view of every known job.
func (s *Service) Jobs(ctx context.Context) ([]repository.JobView, error) {
	if _, err := s.startedGuard(); err != nil {
		return nil, err
	}
	return s.view.Jobs(ctx), nil
}

// Job returns the merged view of one job.
func (s *Service) Job(ctx context.Context, jobID int64) (repository.JobView, error) {
	if _, err := s.startedGuard(); err != nil {
		return repository.JobView{}, err
	}
	return s.view.Job(ctx, jobID)
}

// TopMatches returns up to n jobs ordered by match score.
func (s *Service) TopMatches(ctx context.Context, n int) ([]repository.JobView, error) {
	if _, err := s.startedGuard(); err != nil {
		return nil, err
	}
	return s.view.TopMatches(ctx, n)
}

// TrackedSaves returns in-flight and recently resolved optimistic writes.
func (s *Service) TrackedSaves(ctx context.Context) ([]model.TrackedSave, error) {
	if _, err := s.startedGuard(); err != nil {
		return nil, err
	}
	return s.view.TrackedSaves(ctx), nil
}

// Stats reports service counters for the control API.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	m, err := s.startedGuard()
	if err != nil {
		return nil, err
	}

	overrides, _ := s.store.Overrides(ctx)
	return map[string]any{
		"state":          string(m.State()),
		"jobs":           s.view.Count(ctx),
		"overrides":      len(overrides),
		"tracked_saves":  len(s.view.TrackedSaves(ctx)),
		"mailbox_depth":  s.mailbox.Len(),
		"correlation_on": m.CorrelationArmed(),
	}, nil
}

// startedGuard returns the machine when the service is running.
func (s *Service) startedGuard() (*session.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return s.machine, nil
}

package service

import (
	"context"
	"time"

	"github.com/jobkit/synccore/internal/adapters/backend"
	"github.com/jobkit/synccore/internal/adapters/identity"
	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/internal/domain/projection"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
)

// Mailbox messages. Everything that mutates session or projection state
// arrives as one of these and is handled on the loop goroutine.
type message interface{ isMessage() }

// sessionEvent carries the provider's current session; nil means signed out.
type sessionEvent struct {
	session *identity.Session
}

// profileResult is the completion of a profile fetch attributed to uid.
type profileResult struct {
	uid     string
	profile *model.Profile
	err     error
}

// activityResult is the completion of an activity-log fetch.
type activityResult struct {
	uid    string
	userID int64
	events []model.ActivityEvent
	err    error
}

// writeResult is the completion of an optimistic save or unsave.
type writeResult struct {
	uid    string
	jobID  int64
	action string
	err    error
}

func (sessionEvent) isMessage()   {}
func (profileResult) isMessage()  {}
func (activityResult) isMessage() {}
func (writeResult) isMessage()    {}

// run is the actor loop. It exits when the mailbox is closed and drained.
func (s *Service) run() {
	defer s.wg.Done()

	ctx := context.Background()
	for msg := range s.mailbox.Dequeue() {
		switch m := msg.(type) {
		case sessionEvent:
			s.handleSession(ctx, m.session)
		case profileResult:
			s.handleProfileResult(ctx, m)
		case activityResult:
			s.handleActivityResult(ctx, m)
		case writeResult:
			s.handleWriteResult(ctx, m)
		}
	}
}

func (s *Service) handleSession(ctx context.Context, sess *identity.Session) {
	if sess == nil {
		s.machine.SignedOut(ctx)
		s.setCurrent(nil)
		// The persisted cache and overrides survive; only the in-memory
		// session view is dropped.
		s.view.Clear(ctx)
		return
	}

	token := backend.TokenFunc(sess.Token)
	eff := s.machine.SignedIn(ctx, sess.Identity)
	if !s.machine.State().Authenticated() {
		// Ignored: a sign-out is still in flight.
		return
	}

	s.setCurrent(&current{uid: sess.UID, token: token})
	if eff.FetchProfile {
		s.fetchProfile(token, eff.UID, eff.ProfileID)
	}
}

func (s *Service) handleProfileResult(ctx context.Context, r profileResult) {
	if r.err != nil {
		if s.machine.ProfileFailed(ctx, r.uid, r.err) {
			// Fail closed: the session is gone, so is the view.
			s.setCurrent(nil)
			s.view.Clear(ctx)
		}
		return
	}

	if !s.machine.ProfileResolved(ctx, r.uid, r.profile) {
		return
	}

	if err := s.store.PutProfile(ctx, *r.profile); err != nil {
		s.logger.Warn(ctx, "persisting profile hint failed", logger.Error(err))
	}
	s.setCurrentUserID(r.uid, r.profile.ID)

	cur, err := s.currentSession()
	if err != nil {
		return
	}
	s.fetchActivity(cur.token, r.uid, r.profile.ID)
}

func (s *Service) handleActivityResult(ctx context.Context, r activityResult) {
	if r.err != nil {
		// Recoverable: keep the last good projection.
		s.logger.Warn(ctx, "activity fetch failed, keeping last projection",
			logger.Int64("userID", r.userID),
			logger.Error(r.err))
		return
	}

	snap := s.machine.Snapshot()
	if !snap.State.Authenticated() || snap.Identity == nil || snap.Identity.UID != r.uid {
		metrics.RecordStaleFetchDiscard()
		return
	}

	start := time.Now()
	ps := projection.Project(r.events)
	metrics.RecordProjection(float64(time.Since(start).Milliseconds()), len(ps.Jobs))

	s.view.ApplySnapshot(ctx, ps)

	if _, err := s.store.MergeMatches(ctx, ps.Matches); err != nil {
		s.logger.Warn(ctx, "merging match cache failed", logger.Error(err))
	}
	if _, err := s.store.ReconcileOverrides(ctx, ps.Jobs); err != nil {
		s.logger.Warn(ctx, "reconciling overrides failed", logger.Error(err))
	}
	if overrides, err := s.store.Overrides(ctx); err == nil {
		s.view.SetOverrides(ctx, overrides)
	}

	s.logger.Debug(ctx, "projection applied",
		logger.Int("events", len(r.events)),
		logger.Int("jobs", len(ps.Jobs)),
		logger.Int("matches", len(ps.Matches)))
}

func (s *Service) handleWriteResult(ctx context.Context, r writeResult) {
	if r.err != nil {
		// No rollback: the optimistic flip stays, the caller sees failed.
		if err := s.view.ResolveSave(ctx, r.jobID, model.SyncFailed); err != nil {
			s.logger.Warn(ctx, "resolving failed write", logger.Error(err))
		}
		metrics.RecordWrite(r.action, "failed")
		s.logger.Warn(ctx, "backend write failed",
			logger.Int64("jobID", r.jobID),
			logger.String("action", r.action),
			logger.Error(r.err))
		return
	}

	if err := s.view.ResolveSave(ctx, r.jobID, model.SyncConfirmed); err != nil {
		s.logger.Warn(ctx, "resolving confirmed write", logger.Error(err))
	}
	metrics.RecordWrite(r.action, "confirmed")

	// Re-fetch the log so the projection absorbs the confirmed event.
	cur, err := s.currentSession()
	if err != nil || cur.userID == 0 || cur.uid != r.uid {
		return
	}
	s.fetchActivity(cur.token, cur.uid, cur.userID)
}

// fetchProfile runs one bounded profile fetch and reports back through the
// mailbox.
func (s *Service) fetchProfile(token backend.TokenFunc, uid string, profileID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()

		p, err := s.backend.Profile(ctx, token, profileID)
		if !s.mailbox.Enqueue(context.Background(), profileResult{uid: uid, profile: p, err: err}) {
			s.logger.Debug(context.Background(), "profile result dropped at shutdown",
				logger.String("uid", uid))
		}
	}()
}

// fetchActivity runs one bounded activity-log fetch and reports back through
// the mailbox.
func (s *Service) fetchActivity(token backend.TokenFunc, uid string, userID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()

		events, err := s.backend.Activity(ctx, token, userID)
		if !s.mailbox.Enqueue(context.Background(), activityResult{uid: uid, userID: userID, events: events, err: err}) {
			s.logger.Debug(context.Background(), "activity result dropped at shutdown",
				logger.String("uid", uid))
		}
	}()
}

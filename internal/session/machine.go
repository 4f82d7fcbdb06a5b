// Package session owns the mapping from identity events plus a short-lived
// pending correlation id to the session lifecycle state.
//
// The machine is a single-writer state container: all transitions go through
// the methods below, which the sync service calls from its actor goroutine.
// Read accessors return copies and are safe from any goroutine.
package session

import (
	"context"
	"sync"

	"github.com/jobkit/synccore/internal/domain/model"
	"github.com/jobkit/synccore/pkg/logger"
	"github.com/jobkit/synccore/pkg/metrics"
)

// Hints resolves a cached profile id for an email and discards the cache on
// a failed fetch. Backed by the persisted last-known-profile namespace; the
// stored record is only an id/email-hint source, never current truth.
type Hints interface {
	// Resolve returns the cached profile id whose stored email exactly
	// matches the given email.
	Resolve(email string) (int64, bool)

	// Discard drops the cached hint. Called on fetch failure so a broken
	// hint can never be retried into a fail-open session.
	Discard()
}

// Effect tells the caller what to do after a transition. The machine never
// performs I/O itself.
type Effect struct {
	// FetchProfile requests a profile fetch for ProfileID, attributed to
	// identity UID. The result must come back through ProfileResolved or
	// ProfileFailed with the same UID.
	FetchProfile bool
	ProfileID    int64
	UID          string
}

// Snapshot is a read-only copy of the machine's current view.
type Snapshot struct {
	State    State
	Identity *model.Identity
	Profile  *model.Profile
}

// Machine implements the session state machine.
type Machine struct {
	mu sync.RWMutex

	state    State
	identity *model.Identity
	profile  *model.Profile

	// pending is the single correlation slot: at most one outstanding id,
	// consumed exactly once by the next signed-in event.
	pending *int64

	hints Hints
	log   logger.Logger
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets a custom logger for the machine.
func WithLogger(log logger.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// New constructs a Machine in the Initializing state.
func New(hints Hints, opts ...Option) *Machine {
	m := &Machine{
		state: Initializing,
		hints: hints,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPendingProfileID arms the correlation slot with an id already known
// synchronously (registration returns its id before the provider call
// resolves). At most one correlation can be outstanding.
func (m *Machine) SetPendingProfileID(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return ErrCorrelationBusy
	}
	v := id
	m.pending = &v
	return nil
}

// SignedIn handles a signed-in identity event and returns the effect to run.
//
// Id resolution order: (1) the pending correlation if armed, consumed once;
// (2) a cached profile id whose stored email exactly matches the identity's
// email; (3) none, settling in AuthenticatedPendingProfile with no fetch.
//
// A signed-in event arriving while LoggingOut is pending is ignored for
// fetch purposes; that state holds until sign-out is confirmed.
func (m *Machine) SignedIn(ctx context.Context, id model.Identity) Effect {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == LoggingOut {
		m.pending = nil
		m.log.Debug(ctx, "signed-in event ignored while logging out",
			logger.String("uid", id.UID))
		return Effect{}
	}

	ident := id
	m.identity = &ident
	m.profile = nil

	profileID, resolved := m.resolveProfileID(ctx, id)
	m.transition(ctx, AuthenticatedPendingProfile)

	if !resolved {
		// New identity with no known backend account. Not an error.
		return Effect{}
	}
	return Effect{FetchProfile: true, ProfileID: profileID, UID: id.UID}
}

func (m *Machine) resolveProfileID(ctx context.Context, id model.Identity) (int64, bool) {
	if m.pending != nil {
		profileID := *m.pending
		m.pending = nil
		m.log.Debug(ctx, "consumed pending correlation",
			logger.Int64("profile_id", profileID))
		return profileID, true
	}
	if m.hints != nil {
		if profileID, ok := m.hints.Resolve(id.Email); ok {
			return profileID, true
		}
	}
	return 0, false
}

// SignedOut handles a signed-out identity event. From any state this settles
// in Unauthenticated and drops identity, profile and any armed correlation.
func (m *Machine) SignedOut(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = nil
	m.profile = nil
	m.pending = nil
	m.transition(ctx, Unauthenticated)
}

// BeginLogout enters LoggingOut immediately, before the provider confirms,
// so observers stop treating the session as authenticated without waiting on
// network latency. Returns false when there is no authenticated session.
func (m *Machine) BeginLogout(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Authenticated() {
		return false
	}
	m.transition(ctx, LoggingOut)
	return true
}

// ProfileResolved applies a successful profile fetch. The result is stale
// and discarded when logout has begun or the identity changed since the
// fetch started; staleness is decided here, at resolution time, never by
// request cancellation. Returns false when discarded.
func (m *Machine) ProfileResolved(ctx context.Context, uid string, p *model.Profile) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stale(uid) {
		metrics.RecordStaleFetchDiscard()
		m.log.Debug(ctx, "discarding stale profile fetch result",
			logger.String("uid", uid), logger.String("state", string(m.state)))
		return false
	}

	m.profile = p
	m.transition(ctx, AuthenticatedWithProfile)
	return true
}

// ProfileFailed applies a failed profile fetch. Stale failures are ignored.
// A current failure downgrades to Unauthenticated and discards the cached
// hint: fail closed, never fail open with stale data. Returns false when the
// failure was stale and ignored.
func (m *Machine) ProfileFailed(ctx context.Context, uid string, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stale(uid) {
		metrics.RecordStaleFetchDiscard()
		return false
	}

	m.log.Warn(ctx, "profile fetch failed; downgrading session",
		logger.String("uid", uid), logger.Error(err))
	if m.hints != nil {
		m.hints.Discard()
	}
	m.identity = nil
	m.profile = nil
	m.transition(ctx, Unauthenticated)
	return true
}

// stale reports whether a fetch attributed to uid no longer matches the
// machine. Caller holds the lock.
func (m *Machine) stale(uid string) bool {
	if m.state == LoggingOut || m.state == Unauthenticated {
		return true
	}
	return m.identity == nil || m.identity.UID != uid
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CorrelationArmed reports whether the pending correlation slot is occupied.
func (m *Machine) CorrelationArmed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending != nil
}

// Snapshot returns a copy of the current state, identity and profile.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{State: m.state}
	if m.identity != nil {
		ident := *m.identity
		snap.Identity = &ident
	}
	if m.profile != nil {
		p := *m.profile
		snap.Profile = &p
	}
	return snap
}

// transition moves to a new state. Caller holds the lock. Self-transitions
// (a profile refresh while AuthenticatedWithProfile) are not recorded.
func (m *Machine) transition(ctx context.Context, to State) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	metrics.RecordSessionTransition(string(from), string(to))
	m.log.Info(ctx, "session transition",
		logger.String("from", string(from)), logger.String("to", string(to)))
}

// Package service provides the core sync service that implements
// the dependencies required by the control API.
//
// One goroutine owns every state write: identity events, fetch completions
// and user commands all pass through a bounded mailbox and are handled in
// arrival order. Fetches run on their own goroutines and report back through
// the same mailbox, so a result landing after a state or identity change is
// checked against the machine before it is applied.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jobkit/synccore/internal/adapters/backend"
	"github.com/jobkit/synccore/internal/adapters/identity"
	"github.com/jobkit/synccore/internal/adapters/mq/queue"
	"github.com/jobkit/synccore/internal/adapters/repository"
	"github.com/jobkit/synccore/internal/adapters/store"
	"github.com/jobkit/synccore/internal/domain/scoring"
	"github.com/jobkit/synccore/internal/session"
	"github.com/jobkit/synccore/pkg/logger"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMailboxSize  = 1024
)

// current is the loop-owned view of who is signed in right now. UserID stays
// zero until the profile resolves.
type current struct {
	uid    string
	userID int64
	token  backend.TokenFunc
}

// Service glues the identity stream, the backend client, the session
// machine, the persisted store and the merged view together.
type Service struct {
	mu sync.RWMutex

	// Core components
	provider identity.Provider
	backend  *backend.Client
	store    *store.Store
	view     repository.Store
	machine  *session.Machine
	scorer   scoring.Scorer
	mailbox  *queue.Mailbox[message]

	// Configuration
	fetchTimeout time.Duration
	mailboxSize  int

	// State
	started bool
	cur     *current
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProvider sets the identity provider.
func WithProvider(p identity.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithBackend sets the backend client.
func WithBackend(c *backend.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.backend = c
		}
	}
}

// WithStore sets the persisted local store.
func WithStore(st *store.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithView sets the merged view store.
func WithView(v repository.Store) Option {
	return func(s *Service) {
		if v != nil {
			s.view = v
		}
	}
}

// WithScorer routes analyze calls through a local scorer instead of the
// backend's analyze endpoint.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		s.scorer = sc
	}
}

// WithFetchTimeout bounds a single profile or activity fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithMailboxSize bounds the actor mailbox.
func WithMailboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		fetchTimeout: defaultFetchTimeout,
		mailboxSize:  defaultMailboxSize,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.provider == nil || s.backend == nil || s.store == nil {
		return ErrNotStarted
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.view == nil {
		s.view = repository.NewView(repository.WithLogger(s.logger))
	}
	s.machine = session.New(s.store.NewHints(), session.WithLogger(s.logger))
	s.mailbox = queue.New[message](queue.WithCapacity(s.mailboxSize))

	// Overrides survive restarts; seed the view before anything is served.
	if overrides, err := s.store.Overrides(ctx); err == nil {
		s.view.SetOverrides(ctx, overrides)
	} else {
		s.logger.Warn(ctx, "loading persisted overrides failed", logger.Error(err))
	}

	s.wg.Add(1)
	go s.pumpIdentity()

	s.wg.Add(1)
	go s.run()

	s.started = true
	s.logger.Info(ctx, "sync service started",
		logger.Int("mailboxSize", s.mailboxSize),
		logger.Duration("fetchTimeout", s.fetchTimeout),
	)
	return nil
}

// Stop gracefully shuts down the service. The store stays open; its owner
// closes it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	// Closed outside the service lock: Close waits for in-flight blocking
	// sends, and those senders' results are handled by the loop goroutine,
	// which reads service state.
	s.mailbox.Close()
	s.wg.Wait()
	s.logger.Info(context.Background(), "sync service stopped")
}

// pumpIdentity forwards provider session events into the mailbox.
func (s *Service) pumpIdentity() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case sess, ok := <-s.provider.Events():
			if !ok {
				return
			}
			if !s.mailbox.Enqueue(context.Background(), sessionEvent{session: sess}) {
				return
			}
		}
	}
}

func (s *Service) setCurrent(c *current) {
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
}

func (s *Service) setCurrentUserID(uid string, userID int64) {
	s.mu.Lock()
	if s.cur != nil && s.cur.uid == uid {
		s.cur.userID = userID
	}
	s.mu.Unlock()
}

// currentSession returns a copy of the signed-in session, or ErrNotSignedIn.
// The machine state is consulted as well: once logout begins the session is
// no longer treated as authenticated, even before the provider confirms.
func (s *Service) currentSession() (current, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return current{}, ErrNotStarted
	}
	if s.cur == nil || !s.machine.State().Authenticated() {
		return current{}, ErrNotSignedIn
	}
	return *s.cur, nil
}

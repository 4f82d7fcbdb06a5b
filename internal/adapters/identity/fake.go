package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/jobkit/synccore/internal/domain/model"
)

// Fake is a scriptable in-memory Provider for tests and the simulator.
// Registered accounts sign in with their stored password; Emit* methods
// inject stream events directly.
type Fake struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount
	nextUID  int
	events   chan *Session
}

type fakeAccount struct {
	uid      string
	password string
}

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{
		accounts: make(map[string]fakeAccount),
		events:   make(chan *Session, 16),
	}
}

// Events returns the session event stream.
func (f *Fake) Events() <-chan *Session {
	return f.events
}

// Close shuts the event stream down.
func (f *Fake) Close() {
	close(f.events)
}

// Seed registers an account without signing it in. Returns the uid.
func (f *Fake) Seed(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seedLocked(email, password)
}

func (f *Fake) seedLocked(email, password string) string {
	f.nextUID++
	uid := fmt.Sprintf("fake-uid-%d", f.nextUID)
	f.accounts[email] = fakeAccount{uid: uid, password: password}
	return uid
}

// SignIn validates the scripted credentials and emits the session.
func (f *Fake) SignIn(ctx context.Context, email, password string) error {
	f.mu.Lock()
	acct, ok := f.accounts[email]
	f.mu.Unlock()
	if !ok || acct.password != password {
		return fmt.Errorf("%w: invalid credentials", ErrIdentity)
	}
	f.EmitSignedIn(acct.uid, email)
	return nil
}

// Register creates an account and signs it in.
func (f *Fake) Register(ctx context.Context, email, password string) error {
	f.mu.Lock()
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		return fmt.Errorf("%w: email already exists", ErrIdentity)
	}
	uid := f.seedLocked(email, password)
	f.mu.Unlock()

	f.EmitSignedIn(uid, email)
	return nil
}

// SignOut emits the signed-out confirmation.
func (f *Fake) SignOut(ctx context.Context) error {
	f.EmitSignedOut()
	return nil
}

// EmitSignedIn injects a signed-in event with a static token.
func (f *Fake) EmitSignedIn(uid, email string) {
	f.events <- &Session{
		Identity: model.Identity{UID: uid, Email: email},
		Token: func(ctx context.Context) (string, error) {
			return "fake-token-" + uid, nil
		},
	}
}

// EmitSignedOut injects a signed-out event.
func (f *Fake) EmitSignedOut() {
	f.events <- nil
}

// Package identity wraps the external identity provider and emits a stream
// of current-identity events.
package identity

import (
	"context"

	"github.com/jobkit/synccore/internal/domain/model"
)

// TokenSource returns a fresh bearer token for the session, refreshing
// through the provider when the cached token is near expiry.
type TokenSource func(ctx context.Context) (string, error)

// Session is the provider-issued session. Created on sign-in, destroyed on
// sign-out; read-only outside this package.
type Session struct {
	model.Identity
	Token TokenSource
}

// Provider is the identity provider contract.
//
// Events yields the current session, or nil for signed-out. Completion
// ordering of the imperative calls relative to the stream is not guaranteed:
// SignOut may return before the stream confirms with a nil event, which is
// why the session machine holds LoggingOut until that confirmation.
type Provider interface {
	// Events returns the session event stream. The channel is owned by the
	// provider and closed when the provider shuts down.
	Events() <-chan *Session

	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error

	// Register creates a new identity and signs it in.
	Register(ctx context.Context, email, password string) error
}

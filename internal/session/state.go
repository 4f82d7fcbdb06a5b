package session

// State is the session lifecycle state. Exactly one value is active.
type State string

const (
	// Initializing holds from construction until the first identity event.
	Initializing State = "initializing"

	// AuthenticatedPendingProfile means an identity is signed in but no
	// backend profile is loaded. This covers both a fetch in flight and
	// a new identity with no known backend account; the latter is not an
	// error state.
	AuthenticatedPendingProfile State = "authenticated_pending_profile"

	// AuthenticatedWithProfile means the backend profile is loaded.
	AuthenticatedWithProfile State = "authenticated_with_profile"

	// LoggingOut is entered the moment logout is invoked, before the
	// provider confirms, and takes precedence over any in-flight fetch.
	LoggingOut State = "logging_out"

	// Unauthenticated means no usable session.
	Unauthenticated State = "unauthenticated"
)

// Authenticated reports whether observers may treat the session as signed in.
func (s State) Authenticated() bool {
	return s == AuthenticatedPendingProfile || s == AuthenticatedWithProfile
}

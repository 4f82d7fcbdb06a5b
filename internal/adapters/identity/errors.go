package identity

import "errors"

// Sentinel kinds for identity provider errors.
var (
	// ErrIdentity marks credential or token-refresh rejections. Surfaced to
	// the caller; not retried beyond the provider's own policy.
	ErrIdentity = errors.New("identity provider rejected the request")
)

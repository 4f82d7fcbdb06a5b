package service

import "errors"

// Sentinel kinds for service-level errors.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrNotSignedIn = errors.New("not signed in")
	ErrNoProfile   = errors.New("profile not resolved")
)

package session

import "errors"

// Sentinel kinds for session machine errors.
var (
	ErrCorrelationBusy = errors.New("a pending profile correlation is already outstanding")
)

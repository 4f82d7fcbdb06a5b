package api

import "errors"

// Sentinel kinds for request validation errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrBadJobID   = errors.New("invalid job id")
)

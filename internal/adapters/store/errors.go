package store

import "errors"

// Sentinel kinds for persisted store errors.
var (
	ErrOpen  = errors.New("open store failed")
	ErrRead  = errors.New("store read failed")
	ErrWrite = errors.New("store write failed")
)

package repository

import "errors"

// Sentinel kinds for view store errors.
var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidLimit = errors.New("invalid match limit")
)

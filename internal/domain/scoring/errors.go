package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrScore = errors.New("match scoring failed")
)

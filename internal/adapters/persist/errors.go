package persist

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrOpen  = errors.New("persistence open failed")
	ErrLoad  = errors.New("persistence load failed")
	ErrClose = errors.New("persistence close failed")
)

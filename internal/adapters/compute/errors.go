package compute

import "errors"

// Sentinel kinds for compute errors.
var (
	ErrRemote = errors.New("compute request failed")
)

package app

import "errors"

// Sentinel kinds for pipeline errors. All are recoverable: the committed
// state is never mutated on a failed update.
var (
	ErrRebinUnavailable = errors.New("audio session not cached")
	ErrRemoteCompute    = errors.New("geometry recompute failed")
	ErrStaleUpdate      = errors.New("update superseded by a newer response")
)

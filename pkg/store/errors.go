package store

import "errors"

var (
	ErrDigestMismatch = errors.New("digest mismatch")
	ErrIOFailure      = errors.New("store I/O failure")
	ErrInvalidRef     = errors.New("invalid artifact reference")
	ErrLocked         = errors.New("store is locked by another process")
)

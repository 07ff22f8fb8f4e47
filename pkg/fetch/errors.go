package fetch

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrExhaustedRetries = errors.New("retries exhausted")
	ErrCancelled        = errors.New("fetch cancelled")
	ErrHTTPStatus       = errors.New("unexpected HTTP status")
	ErrNoSource         = errors.New("artifact has no download URL")
	ErrTooLarge         = errors.New("document too large")
)

// transientError marks a failure worth retrying.
type transientError struct {
	reason string
	err    error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) (*transientError, bool) {
	var te *transientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

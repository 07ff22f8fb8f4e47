package launch

import "errors"

var (
	// ErrIncompleteInstall is returned when an artifact the launch needs is
	// missing or fails verification.
	ErrIncompleteInstall     = errors.New("install is incomplete")
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
	ErrExtractionFailure     = errors.New("natives extraction failed")
	ErrJavaNotFound          = errors.New("java executable not found")
	ErrNoMainClass           = errors.New("version declares no main class")
)

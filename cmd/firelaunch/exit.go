package main

import (
	"context"
	"errors"
	"os/exec"

	"github.com/fire-square/FireLaunch/pkg/auth"
	"github.com/fire-square/FireLaunch/pkg/config"
	"github.com/fire-square/FireLaunch/pkg/fetch"
	"github.com/fire-square/FireLaunch/pkg/launch"
	"github.com/fire-square/FireLaunch/pkg/resolver"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// Exit codes for different error types
const (
	ExitOK           = 0
	ExitError        = 1
	ExitPanic        = 101
	ExitResolveError = 102
	ExitFetchError   = 103
	ExitLaunchError  = 104
	ExitInvalidArgs  = 105
	ExitIOError      = 106
	ExitAuthError    = 107
	ExitLocked       = 108
	ExitCancelled    = 130
)

// usageError marks command line mistakes.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// gameExitError carries the game's own non-zero exit status.
type gameExitError struct{ code int }

func (e gameExitError) Error() string { return "game exited with an error" }

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var usage usageError
	var game gameExitError
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &game):
		return game.code
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	case errors.As(err, &usage), errors.Is(err, config.ErrInvalid):
		return ExitInvalidArgs
	case errors.Is(err, context.Canceled), errors.Is(err, fetch.ErrCancelled):
		return ExitCancelled
	case errors.Is(err, store.ErrLocked), errors.Is(err, context.DeadlineExceeded):
		return ExitLocked
	case errors.Is(err, auth.ErrAuth), errors.Is(err, auth.ErrNoCredential), errors.Is(err, fetch.ErrUnauthenticated):
		return ExitAuthError
	case errors.Is(err, resolver.ErrUnreachable),
		errors.Is(err, resolver.ErrCyclicInheritance),
		errors.Is(err, resolver.ErrMalformedManifest),
		errors.Is(err, resolver.ErrInheritanceTooDeep):
		return ExitResolveError
	case errors.Is(err, fetch.ErrExhaustedRetries),
		errors.Is(err, fetch.ErrHTTPStatus),
		errors.Is(err, fetch.ErrNoSource),
		errors.Is(err, store.ErrDigestMismatch):
		return ExitFetchError
	case errors.Is(err, launch.ErrIncompleteInstall),
		errors.Is(err, launch.ErrUnresolvedPlaceholder),
		errors.Is(err, launch.ErrExtractionFailure),
		errors.Is(err, launch.ErrJavaNotFound),
		errors.Is(err, launch.ErrNoMainClass):
		return ExitLaunchError
	case errors.Is(err, store.ErrIOFailure):
		return ExitIOError
	}
	return ExitError
}

// Package auth adapts an external identity provider into credentials that
// fetch and launch can use. Nothing here is global: every provisioning run
// gets the Adapter it should use passed in explicitly.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAuth         = errors.New("authentication failed")
	ErrNoCredential = errors.New("no credential available")
)

// Credential is an access token plus the profile fields the game needs.
type Credential struct {
	Token         string    `json:"access_token"`
	Expiry        time.Time `json:"expires_at,omitempty"`
	RefreshHandle string    `json:"refresh_token,omitempty"`
	Username      string    `json:"username"`
	UUID          string    `json:"uuid"`
	UserType      string    `json:"user_type,omitempty"`
}

// Expired reports whether the credential must be refreshed before use.
// A zero expiry never expires.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

// Provider is the external identity collaborator.
type Provider interface {
	// Current returns the provider's latest known credential.
	Current() (Credential, error)
	// Refresh exchanges stale for a fresh credential.
	Refresh(ctx context.Context, stale Credential) (Credential, error)
}

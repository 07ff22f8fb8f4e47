package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/fire-square/FireLaunch/pkg/logging"
)

// Adapter hands out credentials, refreshing them when they have expired.
// Concurrent callers that need a refresh share a single provider call.
type Adapter struct {
	provider Provider
	now      func() time.Time
	logger   hclog.Logger

	mu      sync.Mutex
	current *Credential
	flight  singleflight.Group
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Logger hclog.Logger
	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// NewAdapter wraps provider.
func NewAdapter(provider Provider, opts AdapterOptions) *Adapter {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		provider: provider,
		now:      now,
		logger:   logging.OrNull(opts.Logger).Named("auth"),
	}
}

// Credential returns a credential that has not expired, refreshing first
// when the held one has expiry <= now.
func (a *Adapter) Credential(ctx context.Context) (Credential, error) {
	cred, err := a.held()
	if err != nil {
		return Credential{}, err
	}
	if !cred.Expired(a.now()) {
		return cred, nil
	}
	a.logger.Debug("⏰ Credential expired, refreshing", "username", cred.Username, "expiry", cred.Expiry)
	return a.refresh(ctx, cred)
}

// ForceRefresh refreshes regardless of expiry, e.g. after a server rejected the token.
func (a *Adapter) ForceRefresh(ctx context.Context) (Credential, error) {
	cred, err := a.held()
	if err != nil {
		return Credential{}, err
	}
	return a.refresh(ctx, cred)
}

func (a *Adapter) held() (Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil {
		return *a.current, nil
	}
	if a.provider == nil {
		return Credential{}, ErrNoCredential
	}
	cred, err := a.provider.Current()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	a.current = &cred
	return cred, nil
}

func (a *Adapter) refresh(ctx context.Context, stale Credential) (Credential, error) {
	v, err, _ := a.flight.Do("refresh", func() (interface{}, error) {
		fresh, err := a.provider.Refresh(ctx, stale)
		if err != nil {
			return nil, fmt.Errorf("%w: refresh: %v", ErrAuth, err)
		}
		if fresh.Token == "" || fresh.Expired(a.now()) {
			return nil, fmt.Errorf("%w: refresh returned an unusable credential", ErrAuth)
		}
		a.mu.Lock()
		a.current = &fresh
		a.mu.Unlock()
		a.logger.Info("🔑 Credential refreshed", "username", fresh.Username, "expiry", fresh.Expiry)
		return fresh, nil
	})
	if err != nil {
		a.logger.Warn("❌ Credential refresh failed", "error", err)
		return Credential{}, err
	}
	return v.(Credential), nil
}

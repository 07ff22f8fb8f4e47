package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fire-square/FireLaunch/internal/layout"
)

// FileProvider reads credentials from a JSON file maintained by an external
// login tool. Refresh re-reads the file.
type FileProvider struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileProvider returns a provider backed by path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, now: time.Now}
}

// Current reads the credential file.
func (p *FileProvider) Current() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		return Credential{}, fmt.Errorf("reading credential file: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("parsing credential file: %w", err)
	}
	if cred.Token == "" {
		return Credential{}, fmt.Errorf("credential file %s has no access token", p.path)
	}
	return cred, nil
}

// Refresh picks up a credential the login tool has rewritten since stale was read.
func (p *FileProvider) Refresh(ctx context.Context, stale Credential) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	cred, err := p.Current()
	if err != nil {
		return Credential{}, err
	}
	if cred.Expired(p.now()) {
		return Credential{}, fmt.Errorf("credential for %s expired at %s, log in again", cred.Username, cred.Expiry.Format(time.RFC3339))
	}
	return cred, nil
}

// Save writes cred to the file with owner-only permissions.
func (p *FileProvider) Save(cred Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(p.path), layout.DirPerms); err != nil {
		return fmt.Errorf("creating credential dir: %w", err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, layout.SecretPerms); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return os.Rename(tmp, p.path)
}

// Offline is a provider for play without an account. Its credential never expires.
type Offline struct {
	Username string
}

// Current returns a credential with a UUID derived from the username.
func (o Offline) Current() (Credential, error) {
	if o.Username == "" {
		return Credential{}, fmt.Errorf("offline profile needs a username")
	}
	return Credential{
		Token:    "0",
		Username: o.Username,
		UUID:     OfflineUUID(o.Username),
		UserType: "legacy",
	}, nil
}

// Refresh returns the same credential.
func (o Offline) Refresh(ctx context.Context, _ Credential) (Credential, error) {
	return o.Current()
}

// OfflineUUID derives a stable UUID for an offline username.
func OfflineUUID(username string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte("OfflinePlayer:"+username)).String()
}

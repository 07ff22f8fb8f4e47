package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if got, want := cfg.ManifestURL(), "https://ipfs.frsqr.xyz/ipfs/versions/{id}.json"; got != want {
		t.Errorf("ManifestURL() = %s, want %s", got, want)
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
root: /srv/firelaunch
meta_url: https://meta.example.org/v/{id}.json
workers: 3
retry:
  attempts: 6
  base: 250ms
  max_backoff: 5s
store:
  trust_records: true
launch:
  java_path: /opt/jdk/bin/java
  jvm_args: ["-Xmx4G", "-XX:+UseG1GC"]
auth_hosts: [libraries.example.org]
`)

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/srv/firelaunch" || cfg.Workers != 3 {
		t.Errorf("root/workers = %s/%d", cfg.Root, cfg.Workers)
	}
	if cfg.ManifestURL() != "https://meta.example.org/v/{id}.json" {
		t.Errorf("ManifestURL() = %s", cfg.ManifestURL())
	}
	want := RetryConfig{Attempts: 6, Base: 250 * time.Millisecond, MaxBackoff: 5 * time.Second}
	if cfg.Retry != want {
		t.Errorf("Retry = %+v, want %+v", cfg.Retry, want)
	}
	if p := cfg.RetryPolicy(); p.Attempts != 6 || p.Max != 5*time.Second {
		t.Errorf("RetryPolicy() = %+v", p)
	}
	if !cfg.Store.TrustRecords {
		t.Error("TrustRecords not loaded")
	}
	if !reflect.DeepEqual(cfg.Launch.JVMArgs, []string{"-Xmx4G", "-XX:+UseG1GC"}) {
		t.Errorf("JVMArgs = %v", cfg.Launch.JVMArgs)
	}
	// Unset keys keep their defaults.
	if cfg.Gateway != DefaultGateway || cfg.Progress.Buffer != DefaultProgressBuffer {
		t.Errorf("defaults lost: gateway %q buffer %d", cfg.Gateway, cfg.Progress.Buffer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := Load(missing, false); err != nil {
		t.Errorf("optional missing file: %v", err)
	}
	if _, err := Load(missing, true); err == nil {
		t.Error("required missing file loaded without error")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "wokers: 4\n")
	if _, err := Load(path, true); err == nil {
		t.Error("typo key accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "workers: 3\nroot: /from/file\n")
	t.Setenv("FIRELAUNCH_ROOT", "/from/env")
	t.Setenv("FIRELAUNCH_WORKERS", "12")
	t.Setenv("FIRELAUNCH_TRUST_RECORDS", "yes")
	t.Setenv("FIRELAUNCH_AUTH_HOSTS", "a.example.org, b.example.org,")
	t.Setenv("FIRELAUNCH_USERNAME", "Steve")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/from/env" || cfg.Workers != 12 {
		t.Errorf("root/workers = %s/%d", cfg.Root, cfg.Workers)
	}
	if !cfg.Store.TrustRecords {
		t.Error("FIRELAUNCH_TRUST_RECORDS=yes ignored")
	}
	if !reflect.DeepEqual(cfg.AuthHosts, []string{"a.example.org", "b.example.org"}) {
		t.Errorf("AuthHosts = %v", cfg.AuthHosts)
	}
	if cfg.Account.OfflineUsername != "Steve" {
		t.Errorf("OfflineUsername = %q", cfg.Account.OfflineUsername)
	}

	t.Setenv("FIRELAUNCH_WORKERS", "many")
	if _, err := Load(path, true); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad FIRELAUNCH_WORKERS error = %v, want ErrInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "empty root", mutate: func(c *Config) { c.Root = "" }},
		{name: "zero depth", mutate: func(c *Config) { c.MaxDepth = 0 }},
		{name: "no attempts", mutate: func(c *Config) { c.Retry.Attempts = 0 }},
		{name: "inverted backoff", mutate: func(c *Config) { c.Retry.MaxBackoff = time.Millisecond }},
		{name: "meta url without id", mutate: func(c *Config) { c.MetaURL = "https://meta.example.org/manifest.json" }},
		{name: "ftp gateway", mutate: func(c *Config) { c.Gateway = "ftp://mirror.example.org/" }},
		{name: "no artifact source", mutate: func(c *Config) { c.Gateway, c.LibrariesURL = "", "" }},
		{name: "zero progress buffer", mutate: func(c *Config) { c.Progress.Buffer = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.MetaURL = "https://meta.example.org/{id}.json"
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestIsEnvTrue(t *testing.T) {
	for v, want := range map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "no": false, "": false, "maybe": false,
	} {
		if got := isEnvTrue(v); got != want {
			t.Errorf("isEnvTrue(%q) = %v, want %v", v, got, want)
		}
	}
}

// Package config loads launcher settings from defaults, an optional YAML
// file and FIRELAUNCH_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fire-square/FireLaunch/internal/layout"
	"github.com/fire-square/FireLaunch/pkg/fetch"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Base       time.Duration `yaml:"base"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type StoreConfig struct {
	// TrustRecords skips re-hashing files whose size and mtime match their
	// verification record.
	TrustRecords bool `yaml:"trust_records"`
}

type ProgressConfig struct {
	Buffer int `yaml:"buffer"`
}

type LaunchConfig struct {
	JavaPath string   `yaml:"java_path"`
	GameDir  string   `yaml:"game_dir"`
	JVMArgs  []string `yaml:"jvm_args"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
}

type AccountConfig struct {
	// CredentialsFile is written by the external identity tool.
	CredentialsFile string `yaml:"credentials_file"`
	// OfflineUsername is used when no credentials file is configured.
	OfflineUsername string `yaml:"offline_username"`
}

// Config is the complete launcher configuration.
type Config struct {
	Root string `yaml:"root"`
	// MetaURL locates version descriptors; {id} is replaced by the version id.
	MetaURL      string   `yaml:"meta_url"`
	Gateway      string   `yaml:"gateway"`
	LibrariesURL string   `yaml:"libraries_url"`
	AssetsURL    string   `yaml:"assets_url"`
	Workers      int      `yaml:"workers"`
	MaxDepth     int      `yaml:"max_depth"`
	AuthHosts    []string `yaml:"auth_hosts"`
	UserAgent    string   `yaml:"user_agent"`
	MetricsAddr  string   `yaml:"metrics_addr"`

	Retry    RetryConfig    `yaml:"retry"`
	Store    StoreConfig    `yaml:"store"`
	Progress ProgressConfig `yaml:"progress"`
	Launch   LaunchConfig   `yaml:"launch"`
	Account  AccountConfig  `yaml:"account"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Root:         layout.DefaultRoot(),
		Gateway:      DefaultGateway,
		LibrariesURL: DefaultLibrariesURL,
		AssetsURL:    DefaultAssetsURL,
		Workers:      fetch.DefaultWorkers(),
		MaxDepth:     DefaultMaxDepth,
		UserAgent:    DefaultUserAgent,
		Retry: RetryConfig{
			Attempts:   DefaultRetryAttempts,
			Base:       DefaultRetryBase,
			MaxBackoff: DefaultMaxBackoff,
		},
		Progress: ProgressConfig{Buffer: DefaultProgressBuffer},
	}
}

// Load builds the configuration. A missing file at path is an error only
// when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 -- config path is user-provided.
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.Parse(data); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Parse overlays YAML data onto c. Keys absent from data keep their values.
func (c *Config) Parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ManifestURL returns the version descriptor template.
func (c *Config) ManifestURL() string {
	if c.MetaURL != "" {
		return c.MetaURL
	}
	return strings.TrimRight(c.Gateway, "/") + "/" + ManifestPath
}

// RetryPolicy converts the retry settings for the fetch client.
func (c *Config) RetryPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		Attempts: c.Retry.Attempts,
		Base:     c.Retry.Base,
		Max:      c.Retry.MaxBackoff,
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalid)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: max_depth must be positive, got %d", ErrInvalid, c.MaxDepth)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("%w: retry.attempts must be positive, got %d", ErrInvalid, c.Retry.Attempts)
	}
	if c.Retry.Base < 0 || c.Retry.MaxBackoff < c.Retry.Base {
		return fmt.Errorf("%w: retry backoff %s..%s", ErrInvalid, c.Retry.Base, c.Retry.MaxBackoff)
	}
	if c.Progress.Buffer <= 0 {
		return fmt.Errorf("%w: progress.buffer must be positive", ErrInvalid)
	}
	if c.Launch.Width < 0 || c.Launch.Height < 0 {
		return fmt.Errorf("%w: negative window size", ErrInvalid)
	}

	if !strings.Contains(c.ManifestURL(), "{id}") {
		return fmt.Errorf("%w: meta_url %q has no {id} placeholder", ErrInvalid, c.MetaURL)
	}
	urls := map[string]string{
		"meta_url":      strings.ReplaceAll(c.ManifestURL(), "{id}", "x"),
		"gateway":       c.Gateway,
		"libraries_url": c.LibrariesURL,
		"assets_url":    c.AssetsURL,
	}
	for name, raw := range urls {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an http(s) URL", ErrInvalid, name, raw)
		}
	}
	if c.Gateway == "" && c.LibrariesURL == "" {
		return fmt.Errorf("%w: gateway and libraries_url are both empty", ErrInvalid)
	}
	return nil
}

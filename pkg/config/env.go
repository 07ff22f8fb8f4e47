package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FIRELAUNCH_"

// isEnvTrue checks if an environment variable is set to a true value
func isEnvTrue(val string) bool {
	switch strings.ToLower(val) {
	case "on", "yes":
		return true
	}
	result, err := strconv.ParseBool(val)
	return err == nil && result
}

// applyEnv overlays FIRELAUNCH_* variables onto c.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ROOT":          &c.Root,
		"META_URL":      &c.MetaURL,
		"GATEWAY":       &c.Gateway,
		"LIBRARIES_URL": &c.LibrariesURL,
		"ASSETS_URL":    &c.AssetsURL,
		"METRICS_ADDR":  &c.MetricsAddr,
		"USER_AGENT":    &c.UserAgent,
		"JAVA":          &c.Launch.JavaPath,
		"GAME_DIR":      &c.Launch.GameDir,
		"USERNAME":      &c.Account.OfflineUsername,
		"CREDENTIALS":   &c.Account.CredentialsFile,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":   &c.Workers,
		"MAX_DEPTH": &c.MaxDepth,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(EnvPrefix + "TRUST_RECORDS"); ok {
		c.Store.TrustRecords = isEnvTrue(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "AUTH_HOSTS"); ok {
		c.AuthHosts = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

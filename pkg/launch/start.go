package launch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/logging"
)

// Command builds the game process for spec without starting it. Stdio is
// inherited from the launcher.
func Command(ctx context.Context, spec *Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Java, spec.Args()...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Start spawns the game. The caller owns the returned process and should
// Wait on it, then call spec.Cleanup.
func Start(ctx context.Context, spec *Spec, logger hclog.Logger) (*exec.Cmd, error) {
	logger = logging.OrNull(logger).Named("launch")
	cmd := Command(ctx, spec)

	logger.Info("🚀 Starting game", "version", spec.VersionID, "java", cmd.Path)
	logger.Debug("🚀 Full command", "command", spec.String(), "cwd", cmd.Dir)
	logEnvironmentTrace(spec.Env, logger)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	logger.Debug("🆔 Game process started", "pid", cmd.Process.Pid)
	return cmd, nil
}

// logEnvironmentTrace logs the extra environment at trace level, redacting
// values of sensitive keys.
func logEnvironmentTrace(env []string, logger hclog.Logger) {
	if !logger.IsTrace() {
		return
	}
	for _, e := range env {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if isSensitiveKey(key) {
			value = "***"
		}
		logger.Trace("  →", "key", key, "value", value)
	}
}

func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range []string{"TOKEN", "SECRET", "PASSWORD", "SESSION"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

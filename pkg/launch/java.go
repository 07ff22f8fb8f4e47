package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// findJava resolves the java executable. An explicit path wins, then
// JAVA_HOME, then PATH. On Windows javaw.exe is preferred so no console
// window opens.
func findJava(explicit string, lookPath func(string) (string, error), logger hclog.Logger) (string, error) {
	if explicit != "" {
		if strings.ContainsAny(explicit, `/\`) {
			info, err := os.Stat(explicit)
			if err != nil || info.IsDir() {
				return "", fmt.Errorf("%w: %s", ErrJavaNotFound, explicit)
			}
			return explicit, nil
		}
		resolved, err := lookPath(explicit)
		if err != nil {
			return "", fmt.Errorf("%w: %s not in PATH", ErrJavaNotFound, explicit)
		}
		logger.Debug("✅ Resolved java via PATH", "input", explicit, "resolved", resolved)
		return resolved, nil
	}

	names := []string{"java"}
	if runtime.GOOS == "windows" {
		names = []string{"javaw.exe", "java.exe"}
	}

	if home := os.Getenv("JAVA_HOME"); home != "" {
		for _, name := range names {
			candidate := filepath.Join(home, "bin", name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				logger.Debug("✅ Resolved java via JAVA_HOME", "resolved", candidate)
				return candidate, nil
			}
		}
	}

	for _, name := range names {
		if resolved, err := lookPath(name); err == nil {
			logger.Debug("✅ Resolved java via PATH", "input", name, "resolved", resolved)
			return resolved, nil
		}
	}
	return "", ErrJavaNotFound
}

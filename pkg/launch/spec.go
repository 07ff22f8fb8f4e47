package launch

import (
	"os"
	"strings"

	"github.com/fire-square/FireLaunch/internal/shellwords"
)

// Spec is a fully assembled game command.
type Spec struct {
	VersionID string
	Java      string
	JVMArgs   []string
	MainClass string
	GameArgs  []string
	// Dir is the working directory of the game process.
	Dir string
	// Env is appended to the launcher's environment.
	Env []string
	// NativesDir is private to this launch and removed by Cleanup.
	NativesDir string
	Classpath  []string

	secrets []string
}

// Args returns everything after the executable: JVM arguments, the main
// class, then game arguments.
func (s *Spec) Args() []string {
	args := make([]string, 0, len(s.JVMArgs)+1+len(s.GameArgs))
	args = append(args, s.JVMArgs...)
	args = append(args, s.MainClass)
	return append(args, s.GameArgs...)
}

// String renders the command line with secrets masked.
func (s *Spec) String() string {
	args := append([]string{s.Java}, s.Args()...)
	for i, arg := range args {
		args[i] = s.redact(arg)
	}
	return shellwords.Join(args)
}

// minSecretLen guards against masking every occurrence of trivial tokens
// such as the offline "0"; those are only masked as whole arguments.
const minSecretLen = 8

func (s *Spec) redact(arg string) string {
	for _, secret := range s.secrets {
		switch {
		case arg == secret:
			return "***"
		case len(secret) >= minSecretLen:
			arg = strings.ReplaceAll(arg, secret, "***")
		}
	}
	return arg
}

// Cleanup removes the per-launch natives directory.
func (s *Spec) Cleanup() error {
	if s.NativesDir == "" {
		return nil
	}
	return os.RemoveAll(s.NativesDir)
}

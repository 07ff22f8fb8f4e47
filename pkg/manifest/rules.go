package manifest

import (
	"regexp"
	"runtime"
	"strings"
)

// Facts is the platform description rules are evaluated against.
type Facts struct {
	// OS is one of "windows", "osx", "linux".
	OS string
	// Arch is one of "x86_64", "x86", "arm64", "arm32".
	Arch string
	// OSVersion is optional and only consulted by rules that name a version pattern.
	OSVersion string
	// Features are launcher capabilities such as "has_custom_resolution".
	Features map[string]bool
}

// HostFacts describes the running platform.
func HostFacts() Facts {
	return FactsFor(runtime.GOOS, runtime.GOARCH)
}

// FactsFor maps Go platform names to manifest platform names.
func FactsFor(goos, goarch string) Facts {
	f := Facts{OS: goos, Arch: goarch}
	switch goos {
	case "darwin":
		f.OS = "osx"
	}
	switch goarch {
	case "amd64":
		f.Arch = "x86_64"
	case "386":
		f.Arch = "x86"
	case "arm":
		f.Arch = "arm32"
	}
	return f
}

// Is64Bit reports whether the architecture is 64-bit.
func (f Facts) Is64Bit() bool {
	switch f.Arch {
	case "x86", "arm32":
		return false
	}
	return true
}

// Action is the effect of a rule.
type Action string

const (
	Allow    Action = "allow"
	Disallow Action = "disallow"
)

// Rule is a platform predicate attached to a library or argument.
type Rule struct {
	Action   Action          `json:"action"`
	OS       *OSRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSRule constrains a rule to an operating system.
type OSRule struct {
	Name    string `json:"name,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Version string `json:"version,omitempty"`
}

// Applies reports whether the rule's condition matches facts, ignoring its action.
func Applies(rule Rule, f Facts) bool {
	if rule.OS != nil {
		if rule.OS.Name != "" && rule.OS.Name != f.OS {
			return false
		}
		if rule.OS.Arch != "" && !archMatches(rule.OS.Arch, f.Arch) {
			return false
		}
		if rule.OS.Version != "" {
			re, err := regexp.Compile(rule.OS.Version)
			if err != nil || !re.MatchString(f.OSVersion) {
				return false
			}
		}
	}
	for name, want := range rule.Features {
		if f.Features[name] != want {
			return false
		}
	}
	return true
}

// Allowed reports whether every rule is satisfied: allow rules must match
// and disallow rules must not. No rules means allowed.
func Allowed(rules []Rule, f Facts) bool {
	for _, r := range rules {
		matched := Applies(r, f)
		switch r.Action {
		case Disallow:
			if matched {
				return false
			}
		default:
			if !matched {
				return false
			}
		}
	}
	return true
}

func archMatches(want, have string) bool {
	if want == have {
		return true
	}
	return want == "x64" && have == "x86_64"
}

func expandArch(s string, f Facts) string {
	bits := "64"
	if !f.Is64Bit() {
		bits = "32"
	}
	return strings.ReplaceAll(s, "${arch}", bits)
}

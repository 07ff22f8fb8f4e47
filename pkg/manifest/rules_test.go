package manifest

import "testing"

func TestApplies(t *testing.T) {
	linux := Facts{OS: "linux", Arch: "x86_64"}
	testCases := []struct {
		name string
		rule Rule
		want bool
	}{
		{"no condition", Rule{Action: Allow}, true},
		{"matching os", Rule{Action: Allow, OS: &OSRule{Name: "linux"}}, true},
		{"other os", Rule{Action: Allow, OS: &OSRule{Name: "osx"}}, false},
		{"matching arch", Rule{Action: Allow, OS: &OSRule{Arch: "x86_64"}}, true},
		{"other arch", Rule{Action: Allow, OS: &OSRule{Arch: "x86"}}, false},
		{"version pattern without version fact", Rule{Action: Allow, OS: &OSRule{Version: "^10\\."}}, false},
		{"feature absent", Rule{Action: Allow, Features: map[string]bool{"is_demo_user": true}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Applies(tc.rule, linux); got != tc.want {
				t.Errorf("Applies() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	testCases := []struct {
		name  string
		rules []Rule
		facts Facts
		want  bool
	}{
		{"no rules", nil, Facts{OS: "linux"}, true},
		{
			"allow all but osx on osx",
			[]Rule{{Action: Allow}, {Action: Disallow, OS: &OSRule{Name: "osx"}}},
			Facts{OS: "osx"}, false,
		},
		{
			"allow all but osx on linux",
			[]Rule{{Action: Allow}, {Action: Disallow, OS: &OSRule{Name: "osx"}}},
			Facts{OS: "linux"}, true,
		},
		{"osx only on osx", []Rule{{Action: Allow, OS: &OSRule{Name: "osx"}}}, Facts{OS: "osx"}, true},
		{"osx only on windows", []Rule{{Action: Allow, OS: &OSRule{Name: "osx"}}}, Facts{OS: "windows"}, false},
		{
			"custom resolution feature",
			[]Rule{{Action: Allow, Features: map[string]bool{"has_custom_resolution": true}}},
			Facts{OS: "linux", Features: map[string]bool{"has_custom_resolution": true}}, true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.rules, tc.facts); got != tc.want {
				t.Errorf("Allowed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFactsFor(t *testing.T) {
	testCases := []struct {
		goos, goarch string
		os, arch     string
		is64         bool
	}{
		{"linux", "amd64", "linux", "x86_64", true},
		{"darwin", "arm64", "osx", "arm64", true},
		{"windows", "386", "windows", "x86", false},
		{"linux", "arm", "linux", "arm32", false},
	}
	for _, tc := range testCases {
		f := FactsFor(tc.goos, tc.goarch)
		if f.OS != tc.os || f.Arch != tc.arch || f.Is64Bit() != tc.is64 {
			t.Errorf("FactsFor(%s, %s) = %+v (64-bit %v), want %s/%s (64-bit %v)",
				tc.goos, tc.goarch, f, f.Is64Bit(), tc.os, tc.arch, tc.is64)
		}
	}
}

func TestNativeClassifier(t *testing.T) {
	lib := Library{
		Name:    "tv.twitch:twitch-platform:5.16",
		Natives: map[string]string{"linux": "natives-linux", "windows": "natives-windows-${arch}"},
	}
	if c, ok := lib.NativeClassifier(Facts{OS: "windows", Arch: "x86"}); !ok || c != "natives-windows-32" {
		t.Errorf("windows x86 classifier = %q, %v", c, ok)
	}
	if c, ok := lib.NativeClassifier(Facts{OS: "linux", Arch: "x86_64"}); !ok || c != "natives-linux" {
		t.Errorf("linux classifier = %q, %v", c, ok)
	}
	if _, ok := lib.NativeClassifier(Facts{OS: "osx"}); ok {
		t.Error("osx classifier found, want none")
	}
	if !lib.IsNativeOnly() {
		t.Error("IsNativeOnly() = false for library without artifact")
	}
}

package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogicalPaths(t *testing.T) {
	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"asset object", AssetObject("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"), "assets/objects/aa/aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{"asset index", AssetIndex("1.8"), "assets/indexes/1.8.json"},
		{"library", Library("org/lwjgl/lwjgl/2.9.4/lwjgl-2.9.4.jar"), "libraries/org/lwjgl/lwjgl/2.9.4/lwjgl-2.9.4.jar"},
		{"client jar", ClientJar("1.8.9"), "versions/1.8.9/1.8.9.jar"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestCleanLogical(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "libraries/a/b.jar", want: "libraries/a/b.jar"},
		{in: "libraries\\a\\b.jar", want: "libraries/a/b.jar"},
		{in: "libraries/./a//b.jar", want: "libraries/a/b.jar"},
		{in: "../etc/passwd", wantErr: true},
		{in: "libraries/../../x", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := CleanLogical(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CleanLogical(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("CleanLogical(%q) = %q, %v, want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	l := New(root)
	if err := l.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, dir := range []string{"assets/objects", "assets/indexes", "libraries", "versions", "natives", ".meta"} {
		info, err := os.Stat(l.Abs(dir))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s, err %v", dir, err)
		}
	}
	if got, want := l.VersionManifest("1.8.9"), filepath.Join(root, "versions", "1.8.9", "1.8.9.json"); got != want {
		t.Errorf("VersionManifest = %s, want %s", got, want)
	}
}

func TestDefaultRootOverride(t *testing.T) {
	t.Setenv("FIRELAUNCH_ROOT", "/srv/firelaunch")
	if got := DefaultRoot(); got != "/srv/firelaunch" {
		t.Errorf("DefaultRoot() = %s, want /srv/firelaunch", got)
	}
}

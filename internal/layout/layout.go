// Package layout describes the on-disk shape of a FireLaunch data root.
package layout

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DirPerms  = 0o755
	FilePerms = 0o644

	// SecretPerms is used for files holding credentials.
	SecretPerms = 0o600

	AssetsDir    = "assets"
	ObjectsDir   = "objects"
	IndexesDir   = "indexes"
	LibrariesDir = "libraries"
	VersionsDir  = "versions"
	NativesDir   = "natives"
	MetaDir      = ".meta"
	LockFileName = ".lock"

	// TempPrefix marks in-progress writes; files carrying it are never served.
	TempPrefix = ".partial-"
)

// DefaultRoot returns the platform data directory for FireLaunch.
func DefaultRoot() string {
	if root := os.Getenv("FIRELAUNCH_ROOT"); root != "" {
		return root
	}

	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", "FireLaunch")
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "FireLaunch")
		}
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "firelaunch")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local", "share", "firelaunch")
		}
	}

	return filepath.Join(os.TempDir(), "firelaunch")
}

// DefaultConfigFile returns the per-user config file location.
func DefaultConfigFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "firelaunch", "config.yaml")
	}
	return filepath.Join(DefaultRoot(), "config.yaml")
}

// Layout resolves logical paths against a data root.
type Layout struct {
	root string
}

// New returns a Layout rooted at root.
func New(root string) *Layout {
	return &Layout{root: filepath.Clean(root)}
}

// Root returns the data root.
func (l *Layout) Root() string {
	return l.root
}

// Abs converts a slash-separated logical path to an absolute file path.
func (l *Layout) Abs(logical string) string {
	return filepath.Join(l.root, filepath.FromSlash(logical))
}

// Record returns the metadata record path for a logical path.
func (l *Layout) Record(logical string) string {
	return filepath.Join(l.root, MetaDir, filepath.FromSlash(logical)+".json")
}

// LockFile returns the cross-process lock file path.
func (l *Layout) LockFile() string {
	return filepath.Join(l.root, LockFileName)
}

// VersionDir returns the directory holding a version's manifest and client jar.
func (l *Layout) VersionDir(id string) string {
	return filepath.Join(l.root, VersionsDir, id)
}

// VersionManifest returns the cached manifest file for a version.
func (l *Layout) VersionManifest(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// NativesRoot returns the parent of all per-launch natives directories.
func (l *Layout) NativesRoot() string {
	return filepath.Join(l.root, NativesDir)
}

// Natives returns the natives directory for one launch.
func (l *Layout) Natives(versionID, launchID string) string {
	return filepath.Join(l.NativesRoot(), versionID+"-"+launchID)
}

// AssetsRoot returns the directory passed to the game as its assets root.
func (l *Layout) AssetsRoot() string {
	return filepath.Join(l.root, AssetsDir)
}

// LibrariesRoot returns the libraries directory.
func (l *Layout) LibrariesRoot() string {
	return filepath.Join(l.root, LibrariesDir)
}

// Create makes the root and its standard subdirectories.
func (l *Layout) Create() error {
	dirs := []DirectorySpec{
		{Path: path.Join(AssetsDir, ObjectsDir)},
		{Path: path.Join(AssetsDir, IndexesDir)},
		{Path: LibrariesDir},
		{Path: VersionsDir},
		{Path: NativesDir},
		{Path: MetaDir},
	}
	return CreateTree(l.root, dirs)
}

// DirectorySpec specifies a directory to create
type DirectorySpec struct {
	Path string
	Mode uint32
}

// CreateTree creates root and the given subdirectories
func CreateTree(root string, dirs []DirectorySpec) error {
	if err := os.MkdirAll(root, DirPerms); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}

	for _, dir := range dirs {
		mode := dir.Mode
		if mode == 0 {
			mode = DirPerms
		}
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir.Path)), os.FileMode(mode)); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir.Path, err)
		}
	}

	return nil
}

// AssetObject returns the logical path of an asset stored by hash.
func AssetObject(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return path.Join(AssetsDir, ObjectsDir, prefix, hash)
}

// AssetIndex returns the logical path of an asset index document.
func AssetIndex(id string) string {
	return path.Join(AssetsDir, IndexesDir, id+".json")
}

// Library returns the logical path of a library artifact.
func Library(artifactPath string) string {
	return path.Join(LibrariesDir, artifactPath)
}

// ClientJar returns the logical path of a version's client jar.
func ClientJar(id string) string {
	return path.Join(VersionsDir, id, id+".jar")
}

// CleanLogical validates a slash-separated logical path and returns its clean form.
// Absolute paths and paths escaping the root are rejected.
func CleanLogical(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute path %q", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the root", p)
	}
	return clean, nil
}

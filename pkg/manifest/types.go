// Package manifest models version descriptors and asset indexes.
package manifest

import (
	"errors"
	"fmt"

	"github.com/fire-square/FireLaunch/pkg/digest"
)

// ErrMissingDigest is returned when a downloadable carries no usable hash.
var ErrMissingDigest = errors.New("artifact has no digest")

// Version is a version descriptor as served by the metadata host. It is
// treated as an immutable value once decoded.
type Version struct {
	FormatVersion int    `json:"formatVersion,omitempty"`
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	InheritsFrom  string `json:"inheritsFrom,omitempty"`
	Type          string `json:"type,omitempty"`
	ReleaseTime   string `json:"releaseTime,omitempty"`
	MainClass     string `json:"mainClass,omitempty"`

	// MainJar is the client jar in library form.
	MainJar   *Library          `json:"mainJar,omitempty"`
	Downloads *VersionDownloads `json:"downloads,omitempty"`

	Libraries  []Library      `json:"libraries,omitempty"`
	AssetIndex *AssetIndexRef `json:"assetIndex,omitempty"`
	Assets     string         `json:"assets,omitempty"`

	// MinecraftArguments is the legacy single-string game argument template.
	MinecraftArguments string     `json:"minecraftArguments,omitempty"`
	Arguments          *Arguments `json:"arguments,omitempty"`

	Traits               []string `json:"+traits,omitempty"`
	CompatibleJavaMajors []int    `json:"compatibleJavaMajors,omitempty"`
}

// VersionDownloads lists the top-level downloads of a version.
type VersionDownloads struct {
	Client *Artifact `json:"client,omitempty"`
}

// Artifact is an object describing a "thing" that can be downloaded.
type Artifact struct {
	// Path of the file relative to the libraries folder.
	// Path is not set for the client jar itself.
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
	SHA1   string `json:"sha1,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Digest returns the strongest digest the artifact declares.
func (a *Artifact) Digest() (digest.Digest, error) {
	switch {
	case a.SHA256 != "":
		return digest.FromHex(digest.SHA256, a.SHA256)
	case a.SHA1 != "":
		return digest.FromHex(digest.SHA1, a.SHA1)
	default:
		return digest.Digest{}, ErrMissingDigest
	}
}

// Library is one entry of a version's library list.
type Library struct {
	// Name is the Maven coordinate group:artifact:version[:classifier][@ext].
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *ExtractRules     `json:"extract,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
}

// LibraryDownloads holds the main artifact and classifier artifacts of a library.
type LibraryDownloads struct {
	Artifact    *Artifact            `json:"artifact,omitempty"`
	Classifiers map[string]*Artifact `json:"classifiers,omitempty"`
}

// ExtractRules limits what is unpacked from a natives archive.
type ExtractRules struct {
	Exclude []string `json:"exclude,omitempty"`
}

// IsNativeOnly reports whether the library only ships natives.
func (l *Library) IsNativeOnly() bool {
	return len(l.Natives) > 0 && (l.Downloads == nil || l.Downloads.Artifact == nil)
}

// ArtifactPath returns the main artifact's path relative to the libraries folder.
func (l *Library) ArtifactPath() (string, error) {
	if l.Downloads != nil && l.Downloads.Artifact != nil && l.Downloads.Artifact.Path != "" {
		return l.Downloads.Artifact.Path, nil
	}
	return MavenPath(l.Name, "")
}

// Key identifies a library for inheritance overrides: its artifact path, or
// the Maven coordinate when no artifact path can be derived.
func (l *Library) Key() string {
	if p, err := l.ArtifactPath(); err == nil {
		return p
	}
	return l.Name
}

// NativeClassifier returns the classifier to extract on the given platform,
// with ${arch} expanded, and whether one exists.
func (l *Library) NativeClassifier(f Facts) (string, bool) {
	c, ok := l.Natives[f.OS]
	if !ok {
		return "", false
	}
	return expandArch(c, f), true
}

// AssetIndexRef points at an asset index document.
type AssetIndexRef struct {
	ID        string `json:"id"`
	Path      string `json:"path,omitempty"`
	URL       string `json:"url,omitempty"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
}

// Digest returns the index document's digest.
func (r *AssetIndexRef) Digest() (digest.Digest, error) {
	if r.SHA1 == "" {
		return digest.Digest{}, fmt.Errorf("%w: asset index %s", ErrMissingDigest, r.ID)
	}
	return digest.FromHex(digest.SHA1, r.SHA1)
}

// AssetIndex maps logical asset names to stored objects.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
	// Virtual and MapToResources mark legacy indexes that expect assets
	// under their logical names.
	Virtual        bool `json:"virtual,omitempty"`
	MapToResources bool `json:"map_to_resources,omitempty"`
}

// AssetObject is one entry of an asset index.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	// Path is an optional gateway path for the object.
	Path string `json:"path,omitempty"`
}

// Arguments is the structured argument form: plain strings or conditional entries.
type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	JVM  []Argument `json:"jvm,omitempty"`
}

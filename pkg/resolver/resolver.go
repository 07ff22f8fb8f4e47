// Package resolver turns a version id into the complete set of artifacts
// an install needs, following inheritance chains and evaluating platform
// rules along the way.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/internal/layout"
	"github.com/fire-square/FireLaunch/pkg/digest"
	"github.com/fire-square/FireLaunch/pkg/logging"
	"github.com/fire-square/FireLaunch/pkg/manifest"
	"github.com/fire-square/FireLaunch/pkg/progress"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// DefaultMaxDepth bounds inheritance chains when no limit is configured.
const DefaultMaxDepth = 16

// DocumentSource downloads small documents such as manifests.
type DocumentSource interface {
	Document(ctx context.Context, url string) ([]byte, error)
}

// ArtifactFetcher brings artifacts into the store.
type ArtifactFetcher interface {
	FetchAll(ctx context.Context, refs []store.Ref, sink progress.Sink) error
}

// Options configures a Resolver.
type Options struct {
	// ManifestURL is the version descriptor location with an {id} placeholder.
	ManifestURL string
	// Gateway is prefixed to artifact paths that carry no explicit URL.
	Gateway string
	// LibrariesURL is the fallback Maven repository.
	LibrariesURL string
	// AssetsURL serves asset objects as <AssetsURL>/<hh>/<hash>.
	AssetsURL string
	MaxDepth  int
	// Facts overrides the host platform facts.
	Facts *manifest.Facts
	// Refresh re-downloads manifests even when cached, falling back to the
	// cached copy if the network fails.
	Refresh bool
	Logger  hclog.Logger
}

// Resolver resolves versions against a store.
type Resolver struct {
	opts      Options
	store     *store.Store
	source    DocumentSource
	artifacts ArtifactFetcher
	facts     manifest.Facts
	logger    hclog.Logger

	mu        sync.Mutex
	manifests map[string]*manifest.Version
}

// New returns a Resolver.
func New(st *store.Store, source DocumentSource, artifacts ArtifactFetcher, opts Options) *Resolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	facts := manifest.HostFacts()
	if opts.Facts != nil {
		facts = *opts.Facts
	}
	return &Resolver{
		opts:      opts,
		store:     st,
		source:    source,
		artifacts: artifacts,
		facts:     facts,
		logger:    logging.OrNull(opts.Logger).Named("resolver"),
		manifests: make(map[string]*manifest.Version),
	}
}

// Resolve produces the flattened, de-duplicated artifact set for versionID.
func (r *Resolver) Resolve(ctx context.Context, versionID string) (*Resolved, error) {
	r.logger.Debug("🔍 Resolving version", "version", versionID, "os", r.facts.OS, "arch", r.facts.Arch)

	chain, err := r.chain(ctx, versionID)
	if err != nil {
		return nil, err
	}

	merged := chain[len(chain)-1]
	for i := len(chain) - 2; i >= 0; i-- {
		merged = manifest.Overlay(merged, chain[i])
	}

	res := &Resolved{Version: merged, Facts: r.facts}
	for _, v := range chain {
		res.Chain = append(res.Chain, v.ID)
	}

	if res.Client, err = r.clientRef(ctx, chain); err != nil {
		return nil, err
	}
	if res.Libraries, err = r.libraries(ctx, merged); err != nil {
		return nil, err
	}
	if err := r.assets(ctx, merged, res); err != nil {
		return nil, err
	}

	r.logger.Info("🧩 Resolved version",
		"version", versionID,
		"chain", strings.Join(res.Chain, " -> "),
		"libraries", len(res.Libraries),
		"assets", len(res.Assets))
	return res, nil
}

// chain loads versionID and its ancestors, child first.
func (r *Resolver) chain(ctx context.Context, versionID string) ([]*manifest.Version, error) {
	var chain []*manifest.Version
	var path []string
	seen := make(map[string]bool)

	for cur := versionID; cur != ""; {
		path = append(path, cur)
		if seen[cur] {
			return nil, fmt.Errorf("%w: %s", ErrCyclicInheritance, strings.Join(path, " -> "))
		}
		if len(chain) >= r.opts.MaxDepth {
			return nil, fmt.Errorf("%w: %s exceeds %d levels", ErrInheritanceTooDeep, versionID, r.opts.MaxDepth)
		}
		seen[cur] = true

		v, err := r.load(ctx, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
		cur = v.InheritsFrom
	}
	return chain, nil
}

// load returns the manifest for id from memory, disk or network, in that order.
func (r *Resolver) load(ctx context.Context, id string) (*manifest.Version, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	v, ok := r.manifests[id]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	path := r.store.Layout().VersionManifest(id)
	var cached *manifest.Version
	if data, err := os.ReadFile(path); err == nil {
		if cached, err = decode(id, data); err != nil {
			r.logger.Warn("⚠️ Ignoring unreadable cached manifest", "version", id, "error", err)
			cached = nil
		}
	}
	if cached != nil && !r.opts.Refresh {
		r.logger.Trace("📋 Using cached manifest", "version", id)
		return r.remember(id, cached), nil
	}

	manifestURL := strings.ReplaceAll(r.opts.ManifestURL, "{id}", url.PathEscape(id))
	data, err := r.source.Document(ctx, manifestURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if cached != nil {
			r.logger.Warn("📴 Manifest refresh failed, using cached copy", "version", id, "error", err)
			return r.remember(id, cached), nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, id, err)
	}

	fetched, err := decode(id, data)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, data); err != nil {
		r.logger.Warn("⚠️ Failed to cache manifest", "version", id, "error", err)
	}
	r.logger.Debug("🌐 Fetched manifest", "version", id, "url", manifestURL)
	return r.remember(id, fetched), nil
}

func (r *Resolver) remember(id string, v *manifest.Version) *manifest.Version {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.manifests[id]; ok {
		return existing
	}
	r.manifests[id] = v
	return v
}

func decode(id string, data []byte) (*manifest.Version, error) {
	v, err := manifest.ParseVersion(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, id, err)
	}
	if v.ID != id {
		return nil, fmt.Errorf("%w: %s: document declares id %q", ErrMalformedManifest, id, v.ID)
	}
	return v, nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: invalid version id %q", ErrMalformedManifest, id)
	}
	return nil
}

func (r *Resolver) clientRef(ctx context.Context, chain []*manifest.Version) (*store.Ref, error) {
	for _, v := range chain {
		var a *manifest.Artifact
		repo := ""
		switch {
		case v.Downloads != nil && v.Downloads.Client != nil:
			a = v.Downloads.Client
		case v.MainJar != nil && v.MainJar.Downloads != nil && v.MainJar.Downloads.Artifact != nil:
			a = v.MainJar.Downloads.Artifact
			repo = v.MainJar.URL
		default:
			continue
		}
		ref, err := r.ref(ctx, a, layout.ClientJar(v.ID), a.Path, repo, store.KindClient)
		if err != nil {
			return nil, fmt.Errorf("client jar of %s: %w", v.ID, err)
		}
		return &ref, nil
	}
	return nil, nil
}

func (r *Resolver) libraries(ctx context.Context, v *manifest.Version) ([]Library, error) {
	var out []Library
	for i := range v.Libraries {
		lib := &v.Libraries[i]
		if !manifest.Allowed(lib.Rules, r.facts) {
			r.logger.Trace("⏭️ Library excluded by rules", "library", lib.Name)
			continue
		}

		if !lib.IsNativeOnly() {
			var a *manifest.Artifact
			if lib.Downloads != nil {
				a = lib.Downloads.Artifact
			}
			path, err := lib.ArtifactPath()
			if err != nil {
				return nil, fmt.Errorf("%w: library %s: %v", ErrMalformedManifest, lib.Name, err)
			}
			ref, err := r.ref(ctx, a, layout.Library(path), path, lib.URL, store.KindLibrary)
			if err != nil {
				return nil, fmt.Errorf("library %s: %w", lib.Name, err)
			}
			out = append(out, Library{Name: lib.Name, Ref: ref})
		}

		if classifier, ok := lib.NativeClassifier(r.facts); ok {
			var a *manifest.Artifact
			if lib.Downloads != nil {
				a = lib.Downloads.Classifiers[classifier]
			}
			path := ""
			if a != nil && a.Path != "" {
				path = a.Path
			} else {
				p, err := manifest.MavenPath(lib.Name, classifier)
				if err != nil {
					return nil, fmt.Errorf("%w: natives of %s: %v", ErrMalformedManifest, lib.Name, err)
				}
				path = p
			}
			ref, err := r.ref(ctx, a, layout.Library(path), path, lib.URL, store.KindNative)
			if err != nil {
				return nil, fmt.Errorf("natives %s of %s: %w", classifier, lib.Name, err)
			}
			var exclude []string
			if lib.Extract != nil {
				exclude = lib.Extract.Exclude
			}
			out = append(out, Library{Name: lib.Name, Ref: ref, Native: true, Exclude: exclude})
		}
	}
	return out, nil
}

// ref builds a store ref for an artifact. a may be nil when only a path is
// known, in which case the digest is looked up next to the download.
func (r *Resolver) ref(ctx context.Context, a *manifest.Artifact, logical, remotePath, repo string, kind store.Kind) (store.Ref, error) {
	clean, err := layout.CleanLogical(logical)
	if err != nil {
		return store.Ref{}, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}

	explicit := ""
	var size int64
	var d digest.Digest
	if a != nil {
		explicit = a.URL
		size = a.Size
		if d, err = a.Digest(); err != nil && !errors.Is(err, manifest.ErrMissingDigest) {
			return store.Ref{}, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
	}

	ref := store.Ref{
		Path: clean,
		URL:  r.artifactURL(explicit, remotePath, repo),
		Size: size,
		Kind: kind,
	}
	if d.IsZero() {
		if d, err = r.remoteDigest(ctx, ref); err != nil {
			return store.Ref{}, err
		}
	}
	ref.Digest = d
	return ref, nil
}

// artifactURL picks the download location: an explicit URL, then the
// library's own repository, then the gateway, then the default repository.
func (r *Resolver) artifactURL(explicit, remotePath, repo string) string {
	switch {
	case explicit != "":
		return explicit
	case remotePath == "":
		return ""
	case repo != "":
		return joinURL(repo, remotePath)
	case r.opts.Gateway != "":
		return joinURL(r.opts.Gateway, remotePath)
	case r.opts.LibrariesURL != "":
		return joinURL(r.opts.LibrariesURL, remotePath)
	}
	return ""
}

// remoteDigest reads the ".sha1" file Maven repositories publish next to
// each artifact. Offline, a digest recorded by an earlier verified download
// of the same path is used instead.
func (r *Resolver) remoteDigest(ctx context.Context, ref store.Ref) (digest.Digest, error) {
	if ref.URL == "" {
		return digest.Digest{}, fmt.Errorf("%w: %s has neither digest nor download URL", ErrMalformedManifest, ref.Path)
	}

	data, err := r.source.Document(ctx, ref.URL+".sha1")
	if err == nil {
		fields := strings.Fields(string(data))
		if len(fields) == 0 {
			return digest.Digest{}, fmt.Errorf("%w: empty digest file for %s", ErrMalformedManifest, ref.Path)
		}
		d, err := digest.FromHex(digest.SHA1, fields[0])
		if err != nil {
			return digest.Digest{}, fmt.Errorf("%w: digest file for %s: %v", ErrMalformedManifest, ref.Path, err)
		}
		return d, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return digest.Digest{}, ctxErr
	}
	if e, entryErr := r.store.Entry(ref); entryErr == nil && !e.Digest.IsZero() {
		r.logger.Debug("📴 Using recorded digest", "path", ref.Path, "digest", e.Digest)
		return e.Digest, nil
	}
	return digest.Digest{}, fmt.Errorf("%w: digest for %s: %v", ErrUnreachable, ref.Path, err)
}

func (r *Resolver) assets(ctx context.Context, v *manifest.Version, res *Resolved) error {
	if v.AssetIndex == nil {
		return nil
	}
	ai := v.AssetIndex
	res.AssetIndexID = ai.ID

	d, err := ai.Digest()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	indexURL := ai.URL
	if indexURL == "" && ai.Path != "" && r.opts.Gateway != "" {
		indexURL = joinURL(r.opts.Gateway, ai.Path)
	}
	ref := store.Ref{
		Path:   layout.AssetIndex(ai.ID),
		URL:    indexURL,
		Digest: d,
		Size:   ai.Size,
		Kind:   store.KindAssetIndex,
	}
	res.AssetIndex = &ref

	if err := r.artifacts.FetchAll(ctx, []store.Ref{ref}, progress.Discard); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, store.ErrDigestMismatch) {
			return err
		}
		return fmt.Errorf("%w: asset index %s: %v", ErrUnreachable, ai.ID, err)
	}

	data, err := os.ReadFile(r.store.Path(ref))
	if err != nil {
		return fmt.Errorf("%w: reading asset index %s: %v", store.ErrIOFailure, ai.ID, err)
	}
	idx, err := manifest.ParseAssetIndex(data)
	if err != nil {
		return fmt.Errorf("%w: asset index %s: %v", ErrMalformedManifest, ai.ID, err)
	}
	res.Index = idx

	names := make([]string, 0, len(idx.Objects))
	for name := range idx.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		obj := idx.Objects[name]
		hash := strings.ToLower(obj.Hash)
		if seen[hash] {
			continue
		}
		seen[hash] = true

		d, err := digest.FromHex(digest.SHA1, hash)
		if err != nil {
			return fmt.Errorf("%w: asset %s: %v", ErrMalformedManifest, name, err)
		}
		res.Assets = append(res.Assets, store.Ref{
			Path:   layout.AssetObject(hash),
			URL:    r.assetURL(obj, hash),
			Digest: d,
			Size:   obj.Size,
			Kind:   store.KindAsset,
		})
	}
	return nil
}

func (r *Resolver) assetURL(obj manifest.AssetObject, hash string) string {
	if obj.Path != "" && r.opts.Gateway != "" {
		return joinURL(r.opts.Gateway, obj.Path)
	}
	if r.opts.AssetsURL == "" {
		return ""
	}
	return joinURL(r.opts.AssetsURL, hash[:2]+"/"+hash)
}

// Cached lists the version ids whose manifests are stored locally.
func (r *Resolver) Cached() ([]string, error) {
	dir := filepath.Join(r.store.Layout().Root(), layout.VersionsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(r.store.Layout().VersionManifest(e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), layout.DirPerms); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), layout.TempPrefix+"*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), layout.FilePerms); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

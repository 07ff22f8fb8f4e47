package resolver

import (
	"github.com/fire-square/FireLaunch/pkg/manifest"
	"github.com/fire-square/FireLaunch/pkg/store"
)

// Library is a library that applies on the resolving platform.
type Library struct {
	Name string
	Ref  store.Ref
	// Native libraries are extracted into the natives directory instead of
	// being put on the classpath.
	Native  bool
	Exclude []string
}

// Resolved is the flattened result of resolving a version.
type Resolved struct {
	// Version is the merged descriptor after inheritance overlay.
	Version *manifest.Version
	// Chain lists version ids from the requested version up to the root.
	Chain []string
	Facts manifest.Facts

	Client       *store.Ref
	Libraries    []Library
	AssetIndex   *store.Ref
	AssetIndexID string
	// Index is the decoded asset index, nil when the version has none.
	Index  *manifest.AssetIndex
	Assets []store.Ref
}

// Classpath returns the non-native library refs in declaration order
// followed by the client jar.
func (r *Resolved) Classpath() []store.Ref {
	var refs []store.Ref
	for _, lib := range r.Libraries {
		if !lib.Native {
			refs = append(refs, lib.Ref)
		}
	}
	if r.Client != nil {
		refs = append(refs, *r.Client)
	}
	return refs
}

// Natives returns the libraries to extract.
func (r *Resolved) Natives() []Library {
	var libs []Library
	for _, lib := range r.Libraries {
		if lib.Native {
			libs = append(libs, lib)
		}
	}
	return libs
}

// Artifacts returns every ref the install needs, each key once, in the
// order client, libraries, asset index, assets.
func (r *Resolved) Artifacts() []store.Ref {
	seen := make(map[string]bool)
	var refs []store.Ref
	add := func(ref store.Ref) {
		if !seen[ref.Key()] {
			seen[ref.Key()] = true
			refs = append(refs, ref)
		}
	}
	if r.Client != nil {
		add(*r.Client)
	}
	for _, lib := range r.Libraries {
		add(lib.Ref)
	}
	if r.AssetIndex != nil {
		add(*r.AssetIndex)
	}
	for _, a := range r.Assets {
		add(a)
	}
	return refs
}

package store

import (
	"github.com/fire-square/FireLaunch/pkg/digest"
)

// Kind classifies what an artifact is used for.
type Kind int

const (
	KindLibrary Kind = iota
	KindNative
	KindAsset
	KindAssetIndex
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindLibrary:
		return "library"
	case KindNative:
		return "native"
	case KindAsset:
		return "asset"
	case KindAssetIndex:
		return "asset-index"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Ref describes one artifact: where it lives locally, where it comes from,
// and what its bytes must hash to. Refs are values and are never mutated.
type Ref struct {
	// Path is the slash-separated location relative to the data root.
	Path   string
	URL    string
	Digest digest.Digest
	// Size is the expected length in bytes, or 0 when unknown.
	Size int64
	Kind Kind
}

// Key identifies the artifact by local path and expected digest.
func (r Ref) Key() string {
	return r.Path + "@" + r.Digest.String()
}

// Outcome is the result of verifying a Ref against the local store.
type Outcome int

const (
	Missing Outcome = iota
	Valid
	Corrupt
)

func (o Outcome) String() string {
	switch o {
	case Missing:
		return "missing"
	case Valid:
		return "valid"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

package config

import "time"

// =================================
// Remote endpoints
// =================================
const (
	DefaultGateway      = "https://ipfs.frsqr.xyz/ipfs/"
	DefaultLibrariesURL = "https://libraries.minecraft.net/"
	DefaultAssetsURL    = "https://resources.download.minecraft.net"

	// ManifestPath is joined to the gateway when no meta_url is configured.
	ManifestPath = "versions/{id}.json"
)

// =================================
// Fetch defaults
// =================================
const (
	DefaultRetryAttempts = 4
	DefaultRetryBase     = 500 * time.Millisecond
	DefaultMaxBackoff    = 10 * time.Second
	DefaultUserAgent     = "firelaunch"
)

// =================================
// Resolver defaults
// =================================
const (
	DefaultMaxDepth = 16
)

// =================================
// Progress defaults
// =================================
const (
	DefaultProgressBuffer = 256
)

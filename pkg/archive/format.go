// Package archive unpacks native library archives: jars and zips, plus
// tarballs that are optionally gzip or bzip2 compressed.
package archive

import (
	"bytes"
	"fmt"
	"strings"
)

// Format identifies an archive container and its compression layer.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarBzip2
)

var formatNames = map[Format]string{
	FormatUnknown:  "unknown",
	FormatZip:      "zip",
	FormatTar:      "tar",
	FormatTarGzip:  "tar.gz",
	FormatTarBzip2: "tar.bz2",
}

// Alternative names accepted by ParseFormat.
var namedFormats = map[string]Format{
	"zip":     FormatZip,
	"jar":     FormatZip,
	"tar":     FormatTar,
	"tar.gz":  FormatTarGzip,
	"tgz":     FormatTarGzip,
	"tar.bz2": FormatTarBzip2,
	"tbz2":    FormatTarBzip2,
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%02x", uint8(f))
}

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if f, ok := namedFormats[name]; ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

var (
	zipMagic   = []byte("PK\x03\x04")
	emptyZip   = []byte("PK\x05\x06")
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	ustarMagic = []byte("ustar")
)

// SniffLen is the number of leading bytes Detect needs.
const SniffLen = 512

// Detect identifies the format from the first bytes of an archive.
func Detect(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, emptyZip):
		return FormatZip
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGzip
	case bytes.HasPrefix(header, bzip2Magic):
		return FormatTarBzip2
	case len(header) >= 262 && bytes.HasPrefix(header[257:], ustarMagic):
		return FormatTar
	}
	return FormatUnknown
}

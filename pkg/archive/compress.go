package archive

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// decompressor wraps a compressed stream in a reader of the plain bytes.
type decompressor func(r io.Reader) (io.ReadCloser, error)

var decompressors = map[Format]decompressor{
	FormatTar: func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	},
	FormatTarGzip: func(r io.Reader) (io.ReadCloser, error) {
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gr, nil
	},
	FormatTarBzip2: func(r io.Reader) (io.ReadCloser, error) {
		br, err := bzip2.NewReader(r, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, fmt.Errorf("creating bzip2 reader: %w", err)
		}
		return br, nil
	},
}

// Decompress returns a reader of the tar stream inside a compressed tarball.
func Decompress(f Format, r io.Reader) (io.ReadCloser, error) {
	d, ok := decompressors[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a tar format", ErrUnsupportedFormat, f)
	}
	return d(r)
}

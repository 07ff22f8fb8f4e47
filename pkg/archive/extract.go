package archive

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/logging"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrEntryTooLarge     = errors.New("archive entry too large")

	// ErrUnsafePath is returned for entries that would land outside the
	// destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// MaxEntrySize caps a single extracted file.
const MaxEntrySize = 1 << 30

// Options controls an extraction.
type Options struct {
	// Exclude skips entries whose slash-separated name starts with any prefix.
	Exclude []string
	Logger  hclog.Logger
}

// Extract unpacks the archive at src into dest and returns the number of
// files written. The format is sniffed from the content.
func Extract(ctx context.Context, src, dest string, opts Options) (int, error) {
	logger := logging.OrNull(opts.Logger).Named("archive")

	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	br := bufio.NewReaderSize(f, SniffLen)
	header, _ := br.Peek(SniffLen)
	format := Detect(header)
	logger.Debug("📦 Extracting archive", "src", src, "dest", dest, "format", format)

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}

	x := &extractor{ctx: ctx, dest: dest, exclude: opts.Exclude, logger: logger}
	switch format {
	case FormatZip:
		err = x.zip(f, info.Size())
	case FormatTar, FormatTarGzip, FormatTarBzip2:
		var r io.ReadCloser
		if r, err = Decompress(format, br); err != nil {
			return 0, err
		}
		err = x.tar(r)
		r.Close()
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(src))
	}
	if err != nil {
		return x.files, err
	}

	logger.Trace("✅ Archive extracted", "src", src, "files", x.files, "skipped", x.skipped)
	return x.files, nil
}

type extractor struct {
	ctx     context.Context
	dest    string
	exclude []string
	logger  hclog.Logger
	files   int
	skipped int
}

func (x *extractor) zip(r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("reading zip: %w", err)
	}
	for _, zf := range zr.File {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		mode := zf.Mode()
		if mode.IsDir() {
			if _, err := x.target(zf.Name); err != nil {
				return err
			}
			continue
		}
		if !mode.IsRegular() {
			x.skip(zf.Name, "not a regular file")
			continue
		}
		if zf.UncompressedSize64 > MaxEntrySize {
			return fmt.Errorf("%w: %s", ErrEntryTooLarge, zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", zf.Name, err)
		}
		err = x.write(zf.Name, rc, mode.Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) tar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		if err := x.ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if _, err := x.target(hdr.Name); err != nil {
				return err
			}
		case tar.TypeReg:
			if hdr.Size < 0 || hdr.Size > MaxEntrySize {
				return fmt.Errorf("%w: %s (%d bytes)", ErrEntryTooLarge, hdr.Name, hdr.Size)
			}
			if err := x.write(hdr.Name, io.LimitReader(tr, hdr.Size), os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		default:
			x.skip(hdr.Name, "not a regular file")
		}
	}
}

// target maps an entry name to a path under dest, or "" when excluded.
func (x *extractor) target(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))[1:]
	if clean == "" {
		return "", nil
	}
	if strings.Contains(name, "..") {
		for _, part := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
			if part == ".." {
				return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
			}
		}
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	for _, prefix := range x.exclude {
		if strings.HasPrefix(clean, prefix) || strings.HasPrefix(clean+"/", prefix) {
			return "", nil
		}
	}

	out := filepath.Join(x.dest, filepath.FromSlash(clean))
	rel, err := filepath.Rel(x.dest, out)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return out, nil
}

func (x *extractor) write(name string, r io.Reader, perm os.FileMode) error {
	out, err := x.target(name)
	if err != nil {
		return err
	}
	if out == "" {
		x.skip(name, "excluded")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if perm&0o400 == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxEntrySize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if n > MaxEntrySize {
		return fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	x.files++
	return nil
}

func (x *extractor) skip(name, reason string) {
	x.skipped++
	x.logger.Trace("⏭️ Skipping archive entry", "name", name, "reason", reason)
}

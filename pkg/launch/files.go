package launch

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fire-square/FireLaunch/internal/layout"
)

func layoutAssetObject(hash string) string {
	return layout.AssetObject(strings.ToLower(hash))
}

// linkOrCopy hard links src to dst, copying when linking is not possible.
func linkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	os.Remove(dst)
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

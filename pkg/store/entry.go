package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fire-square/FireLaunch/internal/layout"
	"github.com/fire-square/FireLaunch/pkg/digest"
)

// Entry records a completed full verification of a stored file.
type Entry struct {
	Path       string        `json:"path"`
	Digest     digest.Digest `json:"digest"`
	Size       int64         `json:"size"`
	ModTime    time.Time     `json:"mod_time"`
	VerifiedAt time.Time     `json:"verified_at"`
}

// matches reports whether the record still describes the file in info for want.
func (e *Entry) matches(want digest.Digest, info os.FileInfo) bool {
	return e.Digest.Equal(want) &&
		e.Size == info.Size() &&
		e.ModTime.Equal(info.ModTime().UTC())
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func writeEntry(path string, e *Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), layout.DirPerms); err != nil {
		return err
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, layout.FilePerms); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

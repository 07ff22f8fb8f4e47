// Package store is the local content store for downloaded artifacts.
//
// Files only ever appear at their final path through an atomic rename after
// their digest has been checked. Verification results are cached for the
// lifetime of a Store, so each file is hashed at most once per run.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/fire-square/FireLaunch/internal/layout"
	"github.com/fire-square/FireLaunch/pkg/digest"
	"github.com/fire-square/FireLaunch/pkg/logging"
)

// Options configures a Store.
type Options struct {
	// TrustRecords accepts a persisted verification record when the file's
	// size and modification time still match it, skipping the re-hash.
	TrustRecords bool
	Logger       hclog.Logger
	// Now is the clock used for record timestamps.
	Now func() time.Time
}

// verdict is a verification result together with the file state it was
// computed for.
type verdict struct {
	digest  digest.Digest
	outcome Outcome
	size    int64
	modTime time.Time
}

func newVerdict(d digest.Digest, outcome Outcome, info os.FileInfo) verdict {
	v := verdict{digest: d, outcome: outcome, size: -1}
	if info != nil {
		v.size, v.modTime = info.Size(), info.ModTime()
	}
	return v
}

// Store owns every file under a data root.
type Store struct {
	layout *layout.Layout
	logger hclog.Logger
	trust  bool
	now    func() time.Time

	mu        sync.Mutex
	verdicts  map[string]verdict
	pathLocks map[string]*sync.Mutex
	writes    singleflight.Group

	lockHolds int
}

// Open prepares a store rooted at root, creating the directory tree.
func Open(root string, opts Options) (*Store, error) {
	l := layout.New(root)
	if err := l.Create(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		layout:    l,
		logger:    logging.OrNull(opts.Logger).Named("store"),
		trust:     opts.TrustRecords,
		now:       now,
		verdicts:  make(map[string]verdict),
		pathLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Layout returns the data root layout.
func (s *Store) Layout() *layout.Layout {
	return s.layout
}

// Path returns the absolute file path of ref.
func (s *Store) Path(ref Ref) string {
	return s.layout.Abs(ref.Path)
}

// Has reports whether ref is present and verified.
func (s *Store) Has(ref Ref) bool {
	return s.Verify(ref) == Valid
}

// Verify reports whether the file for ref is Missing, Valid or Corrupt.
// It never deletes anything.
func (s *Store) Verify(ref Ref) Outcome {
	if err := checkRef(ref); err != nil {
		s.logger.Warn("⚠️ Refusing to verify invalid ref", "path", ref.Path, "error", err)
		return Corrupt
	}

	if outcome, ok := s.recall(ref); ok {
		return outcome
	}

	unlock := s.lockPath(ref.Path)
	defer unlock()

	if outcome, ok := s.recall(ref); ok {
		return outcome
	}

	outcome, info := s.verifyFile(ref)
	if outcome != Missing {
		s.remember(ref.Path, newVerdict(ref.Digest, outcome, info))
	}
	return outcome
}

// recall returns the cached outcome for ref while the file is unchanged
// since it was verified. A file that disappeared is Missing; a file whose
// size or modification time moved is verified again.
func (s *Store) recall(ref Ref) (Outcome, bool) {
	v, ok := s.cached(ref.Path)
	if !ok || !v.digest.Equal(ref.Digest) {
		return Missing, false
	}
	info, err := os.Stat(s.Path(ref))
	switch {
	case os.IsNotExist(err):
		s.forget(ref.Path)
		s.logger.Debug("🔍 Verified artifact disappeared", "path", ref.Path)
		return Missing, true
	case err != nil:
		return Missing, false
	case info.Size() != v.size || !info.ModTime().Equal(v.modTime):
		s.logger.Debug("🔍 Artifact changed since verification", "path", ref.Path)
		return Missing, false
	}
	return v.outcome, true
}

func (s *Store) verifyFile(ref Ref) (Outcome, os.FileInfo) {
	path := s.Path(ref)
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("⚠️ Cannot stat artifact", "path", ref.Path, "error", err)
			return Corrupt, nil
		}
		return Missing, nil
	}
	if !info.Mode().IsRegular() {
		return Corrupt, info
	}
	if ref.Size > 0 && info.Size() != ref.Size {
		s.logger.Debug("🔍 Size differs from expected", "path", ref.Path, "size", info.Size(), "expected", ref.Size)
		return Corrupt, info
	}

	if s.trust {
		if e, err := readEntry(s.layout.Record(ref.Path)); err == nil && e.matches(ref.Digest, info) {
			s.logger.Trace("📋 Trusting verification record", "path", ref.Path, "verified_at", e.VerifiedAt)
			return Valid, info
		}
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("⚠️ Cannot open artifact", "path", ref.Path, "error", err)
		return Corrupt, info
	}
	defer f.Close()

	got, n, err := digest.Of(f, ref.Digest.Algorithm)
	if err != nil {
		s.logger.Warn("⚠️ Failed to hash artifact", "path", ref.Path, "error", err)
		return Corrupt, info
	}
	if !got.Equal(ref.Digest) {
		s.logger.Debug("❌ Digest differs from expected", "path", ref.Path, "got", got, "expected", ref.Digest)
		return Corrupt, info
	}

	s.record(ref, n, info.ModTime())
	return Valid, info
}

// Put streams r into the store as ref. The bytes are hashed while being
// written to a temporary file, which is renamed into place only when the
// digest matches. Concurrent Puts of the same ref share one write, and the
// later callers' readers are left unread. When the shared write fails, for
// instance because the caller that started it was cancelled, a joined caller
// whose own context is still live writes again from its own reader.
func (s *Store) Put(ctx context.Context, ref Ref, r io.Reader) error {
	if err := checkRef(ref); err != nil {
		return err
	}

	led := false
	_, err, _ := s.writes.Do(ref.Key(), func() (interface{}, error) {
		led = true
		return nil, s.put(ctx, ref, r)
	})
	if err == nil || led || ctx.Err() != nil {
		return err
	}

	if s.Verify(ref) == Valid {
		return nil
	}
	s.logger.Debug("🔁 Shared write failed, writing again", "path", ref.Path, "error", err)
	return s.put(ctx, ref, r)
}

func (s *Store) put(ctx context.Context, ref Ref, r io.Reader) error {
	unlock := s.lockPath(ref.Path)
	defer unlock()

	final := s.Path(ref)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, layout.DirPerms); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(dir, layout.TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	verifier := digest.NewVerifier(r, ref.Digest)
	n, err := copyChunks(ctx, tmp, verifier, ref.Size)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return fmt.Errorf("%w: %s exceeds expected size %d", ErrDigestMismatch, ref.Path, ref.Size)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: writing %s: %v", ErrIOFailure, ref.Path, err)
	}
	if ref.Size > 0 && n != ref.Size {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrDigestMismatch, ref.Path, n, ref.Size)
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: %s hashed to %s, expected %s", ErrDigestMismatch, ref.Path, verifier.Sum(), ref.Digest)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.Chmod(tmpPath, layout.FilePerms); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	committed = true

	info, err := os.Stat(final)
	if err == nil {
		s.record(ref, n, info.ModTime())
	}
	s.remember(ref.Path, newVerdict(ref.Digest, Valid, info))
	s.logger.Trace("💾 Stored artifact", "path", ref.Path, "bytes", n)
	return nil
}

// Remove deletes the file and record for ref.
func (s *Store) Remove(ref Ref) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	unlock := s.lockPath(ref.Path)
	defer unlock()

	s.forget(ref.Path)
	if err := os.Remove(s.Path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.Remove(s.layout.Record(ref.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// Entry returns the persisted verification record for ref, if any.
func (s *Store) Entry(ref Ref) (*Entry, error) {
	e, err := readEntry(s.layout.Record(ref.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return e, nil
}

func (s *Store) record(ref Ref, size int64, modTime time.Time) {
	e := &Entry{
		Path:       ref.Path,
		Digest:     ref.Digest,
		Size:       size,
		ModTime:    modTime.UTC(),
		VerifiedAt: s.now().UTC(),
	}
	if err := writeEntry(s.layout.Record(ref.Path), e); err != nil {
		s.logger.Debug("⚠️ Failed to write verification record", "path", ref.Path, "error", err)
	}
}

func (s *Store) cached(path string) (verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verdicts[path]
	return v, ok
}

func (s *Store) remember(path string, v verdict) {
	s.mu.Lock()
	s.verdicts[path] = v
	s.mu.Unlock()
}

func (s *Store) forget(path string) {
	s.mu.Lock()
	delete(s.verdicts, path)
	s.mu.Unlock()
}

func (s *Store) lockPath(path string) func() {
	s.mu.Lock()
	m, ok := s.pathLocks[path]
	if !ok {
		m = &sync.Mutex{}
		s.pathLocks[path] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func checkRef(ref Ref) error {
	clean, err := layout.CleanLogical(ref.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	if clean != ref.Path {
		return fmt.Errorf("%w: path %q is not clean", ErrInvalidRef, ref.Path)
	}
	if ref.Digest.IsZero() {
		return fmt.Errorf("%w: %s has no digest", ErrInvalidRef, ref.Path)
	}
	return nil
}

var errTooLarge = errors.New("stream longer than expected size")

// copyChunks copies src to dst in digest.ChunkSize pieces, checking ctx
// between chunks and aborting once more than limit bytes arrive.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, limit int64) (int64, error) {
	buf := make([]byte, digest.ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit > 0 && written > limit {
				return written, errTooLarge
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fire-square/FireLaunch/internal/layout"
)

// LockPollInterval is how often WaitLock retries a held lock.
var LockPollInterval = 100 * time.Millisecond

// isProcessRunning checks if a process with given PID is still running
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, Signal(0) checks if process exists without actually sending a signal
	return process.Signal(syscall.Signal(0)) == nil
}

// TryLock takes the cross-process lock on the data root. It returns
// ErrLocked when another live process holds it. A lock left behind by a
// dead process is removed first. Within one Store the lock is counted:
// every successful TryLock needs its own Unlock.
func (s *Store) TryLock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockHolds > 0 {
		s.lockHolds++
		s.logger.Trace("🔒 Store lock re-entered", "holds", s.lockHolds)
		return nil
	}

	lockPath := s.layout.LockFile()
	if data, err := os.ReadFile(lockPath); err == nil {
		contents := strings.TrimSpace(string(data))
		if oldPid, err := strconv.Atoi(contents); err == nil {
			if isProcessRunning(oldPid) {
				s.logger.Debug("🔒 Lock held by active process", "pid", oldPid)
				return fmt.Errorf("%w: pid %d", ErrLocked, oldPid)
			}
			s.logger.Info("🧹 Removing stale lock from dead process", "pid", oldPid)
		} else {
			s.logger.Info("🧹 Removing invalid lock file (couldn't parse PID)")
		}
		os.Remove(lockPath)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, layout.FilePerms)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		os.Remove(lockPath)
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	// Two processes can judge the same lock stale; the later one removes the
	// earlier one's fresh lock. Only the process whose PID survives holds it.
	if !s.ownsLockFile() {
		s.logger.Debug("🔒 Lost the race for a stale lock")
		return fmt.Errorf("%w: lock file was replaced", ErrLocked)
	}

	s.lockHolds = 1
	s.logger.Debug("🔒 Acquired store lock", "pid", os.Getpid())
	return nil
}

// ownsLockFile reports whether the lock file carries this process's PID.
func (s *Store) ownsLockFile() bool {
	data, err := os.ReadFile(s.layout.LockFile())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	return err == nil && pid == os.Getpid()
}

// WaitLock retries TryLock until it succeeds or ctx is done.
func (s *Store) WaitLock(ctx context.Context) error {
	ticker := time.NewTicker(LockPollInterval)
	defer ticker.Stop()

	for attempt := 0; ; attempt++ {
		err := s.TryLock()
		if err == nil || !errors.Is(err, ErrLocked) {
			return err
		}
		if attempt%10 == 0 {
			s.logger.Info("⏳ Waiting for another FireLaunch process to finish")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Unlock releases one hold on the cross-process lock. The lock file is
// removed with the last hold, and only while it still carries our PID.
func (s *Store) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockHolds == 0 {
		return
	}
	s.lockHolds--
	if s.lockHolds > 0 {
		s.logger.Trace("🔓 Store lock still held", "holds", s.lockHolds)
		return
	}
	if !s.ownsLockFile() {
		s.logger.Warn("⚠️ Lock file no longer ours, leaving it in place", "path", s.layout.LockFile())
		return
	}
	if err := os.Remove(s.layout.LockFile()); err != nil {
		s.logger.Debug("⚠️ Failed to remove lock file", "error", err)
	} else {
		s.logger.Debug("🔓 Released store lock")
	}
}

// SweepPartials removes temporary files left behind by interrupted writes.
// Callers must hold the cross-process lock. Nothing is swept while another
// holder of this Store's lock may still be writing.
func (s *Store) SweepPartials() (int, error) {
	s.mu.Lock()
	holds := s.lockHolds
	s.mu.Unlock()
	if holds > 1 {
		s.logger.Debug("🧹 Skipping partial sweep, another run is active", "holds", holds)
		return 0, nil
	}

	removed := 0
	err := filepath.WalkDir(s.layout.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == layout.NativesDir && filepath.Dir(path) == s.layout.Root() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), layout.TempPrefix) {
			if err := os.Remove(path); err == nil {
				removed++
			} else {
				s.logger.Debug("⚠️ Failed to remove partial file", "path", path, "error", err)
			}
		}
		return nil
	})
	if removed > 0 {
		s.logger.Info("🧹 Removed partial downloads", "count", removed)
	}
	return removed, err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fire-square/FireLaunch/internal/layout"
)

func TestTryLock(t *testing.T) {
	root := t.TempDir()
	a, _ := Open(root, Options{Logger: testLogger()})
	b, _ := Open(root, Options{Logger: testLogger()})

	if err := a.TryLock(); err != nil {
		t.Fatalf("first TryLock: %v", err)
	}
	if err := a.TryLock(); err != nil {
		t.Errorf("re-entrant TryLock: %v", err)
	}
	if err := b.TryLock(); !errors.Is(err, ErrLocked) {
		t.Errorf("second store TryLock = %v, want ErrLocked", err)
	}

	a.Unlock()
	a.Unlock()
	if err := b.TryLock(); err != nil {
		t.Errorf("TryLock after Unlock: %v", err)
	}
	b.Unlock()
	if _, err := os.Stat(b.Layout().LockFile()); !os.IsNotExist(err) {
		t.Error("lock file still present after Unlock")
	}
}

func TestLockCountsHolders(t *testing.T) {
	root := t.TempDir()
	a, _ := Open(root, Options{Logger: testLogger()})
	b, _ := Open(root, Options{Logger: testLogger()})

	for i := 0; i < 2; i++ {
		if err := a.TryLock(); err != nil {
			t.Fatalf("TryLock %d: %v", i, err)
		}
	}

	a.Unlock()
	if _, err := os.Stat(a.Layout().LockFile()); err != nil {
		t.Fatalf("lock file removed while a holder remains: %v", err)
	}
	if err := b.TryLock(); !errors.Is(err, ErrLocked) {
		t.Errorf("TryLock while held = %v, want ErrLocked", err)
	}

	a.Unlock()
	if _, err := os.Stat(a.Layout().LockFile()); !os.IsNotExist(err) {
		t.Errorf("lock file present after last Unlock: %v", err)
	}
	a.Unlock()
	if err := b.TryLock(); err != nil {
		t.Errorf("TryLock after release: %v", err)
	}
	b.Unlock()
}

func TestUnlockLeavesReplacedLock(t *testing.T) {
	s, _ := Open(t.TempDir(), Options{Logger: testLogger()})
	if err := s.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	// Another process judged our lock stale and took it over.
	other := []byte(fmt.Sprintf("%d\n", os.Getpid()+1))
	if err := os.WriteFile(s.Layout().LockFile(), other, 0o644); err != nil {
		t.Fatalf("replace lock: %v", err)
	}

	s.Unlock()
	data, err := os.ReadFile(s.Layout().LockFile())
	if err != nil {
		t.Fatalf("replaced lock was removed: %v", err)
	}
	if string(data) != string(other) {
		t.Errorf("lock file = %q, want %q", data, other)
	}
}

func TestTryLockRemovesStaleLock(t *testing.T) {
	s, _ := Open(t.TempDir(), Options{Logger: testLogger()})
	// PIDs this large are never allocated.
	os.WriteFile(s.Layout().LockFile(), []byte(fmt.Sprintf("%d\n", 1<<30)), 0o644)

	if err := s.TryLock(); err != nil {
		t.Fatalf("TryLock with stale lock: %v", err)
	}
	s.Unlock()

	os.WriteFile(s.Layout().LockFile(), []byte("garbage"), 0o644)
	if err := s.TryLock(); err != nil {
		t.Fatalf("TryLock with invalid lock: %v", err)
	}
	s.Unlock()
}

func TestWaitLockHonoursContext(t *testing.T) {
	root := t.TempDir()
	holder, _ := Open(root, Options{Logger: testLogger()})
	waiter, _ := Open(root, Options{Logger: testLogger()})
	if err := holder.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := waiter.WaitLock(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitLock = %v, want deadline exceeded", err)
	}
}

func TestSweepPartials(t *testing.T) {
	s, _ := Open(t.TempDir(), Options{Logger: testLogger()})
	dir := s.Layout().Abs("libraries/x")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, layout.TempPrefix+"123"), []byte("partial"), 0o644)
	os.WriteFile(filepath.Join(dir, "kept.jar"), []byte("kept"), 0o644)

	if err := s.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer s.Unlock()
	if err := s.TryLock(); err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if n, err := s.SweepPartials(); err != nil || n != 0 {
		t.Errorf("SweepPartials with two holders = %d, %v, want 0, nil", n, err)
	}
	s.Unlock()

	n, err := s.SweepPartials()
	if err != nil || n != 1 {
		t.Fatalf("SweepPartials = %d, %v, want 1, nil", n, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "kept.jar")); err != nil {
		t.Errorf("regular file removed: %v", err)
	}
}

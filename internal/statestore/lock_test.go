package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileLockStealsStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json.lock")

	// Simulate an abandoned lock from a process that crashed long ago.
	stale := time.Now().Add(-time.Hour).UnixNano()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n%d\n", 99999, stale)), 0o644); err != nil {
		t.Fatalf("seed stale lock: %v", err)
	}

	lock := newFileLock(path, 10*time.Millisecond)
	release, err := lock.acquire()
	if err != nil {
		t.Fatalf("acquire returned error: %v", err)
	}
	release()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected lockfile removed after release, stat err=%v", err)
	}
}

func TestFileLockRejectsFreshLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json.lock")

	lock := newFileLock(path, time.Hour)
	release, err := lock.acquire()
	if err != nil {
		t.Fatalf("first acquire returned error: %v", err)
	}
	defer release()

	other := newFileLock(path, time.Hour)
	done := make(chan error, 1)
	go func() {
		_, err := other.acquire()
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected second acquire to fail or block, got nil error immediately")
		}
	case <-time.After(200 * time.Millisecond):
		// still blocked waiting on the held lock, which is the expected behavior
	}
}

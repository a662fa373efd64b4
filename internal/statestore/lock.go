package statestore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// fileLock is a cross-process advisory lock built from a lockfile
// (O_CREATE|O_EXCL), the way a single SQLite connection string serializes
// access in the teacher's pkg/db layer -- here there is no database, so the
// lockfile itself is the mutex. A lock older than staleness is considered
// abandoned (the previous process crashed while holding it) and is stolen.
//
// No file-locking library appears anywhere in the reference pack, so this is
// deliberately stdlib-only (os.OpenFile with O_EXCL).
type fileLock struct {
	path      string
	staleness time.Duration
}

func newFileLock(path string, staleness time.Duration) *fileLock {
	if staleness <= 0 {
		staleness = 30 * time.Second
	}
	return &fileLock{path: path, staleness: staleness}
}

// acquire blocks, retrying briefly, until the lockfile is created or an
// existing lock is found to be stale and stolen.
func (l *fileLock) acquire() (func(), error) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n%d\n", os.Getpid(), time.Now().UnixNano())
			f.Close()
			return func() { os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("statestore: create lock: %w", err)
		}

		if l.stealIfStale() {
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("statestore: timed out waiting for lock %s", l.path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// stealIfStale removes the lockfile if its recorded timestamp is older than
// staleness, reporting whether it did so.
func (l *fileLock) stealIfStale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return false
	}
	nanos, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(0, nanos)) < l.staleness {
		return false
	}
	return os.Remove(l.path) == nil
}

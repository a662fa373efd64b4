// Package statestore is the durable JSON document store: a single file
// holding the system's entire mutable state (orders, fills, events, risk
// events, settings), written atomically and guarded by both a cross-process
// advisory lock and an in-process mutex (spec.md §4.7).
//
// Grounded on the teacher's internal/order.PersistentQueue write path
// (temp-file write, fsync, os.Rename) -- generalized from an append-only WAL
// to a single rewritten JSON document, since the spec mandates one state
// file rather than a log.
package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trading-core/internal/domain"
)

// Store owns one JSON document on disk.
type Store struct {
	path      string
	lock      *fileLock
	mu        sync.Mutex
	retention domain.Retention
}

// Option configures a Store.
type Option func(*Store)

// WithRetention overrides the default retention policy.
func WithRetention(r domain.Retention) Option {
	return func(s *Store) { s.retention = r }
}

// WithLockStaleness overrides how long an abandoned lockfile is honored
// before being stolen.
func WithLockStaleness(d time.Duration) Option {
	return func(s *Store) { s.lock = newFileLock(s.path+".lock", d) }
}

// Open prepares a Store at path, creating the containing directory and an
// empty document if none exists yet.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("statestore: create directory: %w", err)
	}
	s := &Store{
		path:      path,
		lock:      newFileLock(path+".lock", 30*time.Second),
		retention: domain.DefaultRetention(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		initial := domain.State{Settings: domain.Settings{}}
		if err := writeAtomic(path, initial); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Read loads the current document without locking for write. Callers that
// intend to mutate must use Update instead, which re-reads under lock.
func (s *Store) Read() (domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFile(s.path)
}

// Update applies fn to the current document under both the cross-process
// file lock and the in-process mutex, prunes retention, and atomically
// rewrites the document. fn returning an error aborts the write entirely --
// the file on disk is left untouched.
func (s *Store) Update(fn func(*domain.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.lock.acquire()
	if err != nil {
		return fmt.Errorf("statestore: acquire lock: %w", err)
	}
	defer release()

	state, err := readFile(s.path)
	if err != nil {
		return err
	}

	if err := fn(&state); err != nil {
		return err
	}

	prune(&state, s.retention)

	return writeAtomic(s.path, state)
}

func readFile(path string) (domain.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.State{}, fmt.Errorf("statestore: read: %w", err)
	}
	var state domain.State
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.State{}, fmt.Errorf("statestore: decode: %w", err)
	}
	return state, nil
}

// writeAtomic marshals state and replaces path via a temp-file-then-rename,
// so a crash mid-write never leaves a truncated document (spec.md §4.7).
func writeAtomic(path string, state domain.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: encode: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("statestore: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("statestore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("statestore: sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statestore: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("statestore: rename temp file: %w", err)
	}
	return nil
}

package statestore

import (
	"path/filepath"
	"testing"
	"time"

	"trading-core/internal/domain"
)

func TestOpenCreatesEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	state, err := store.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(state.Orders) != 0 {
		t.Fatalf("expected empty orders, got %d", len(state.Orders))
	}
}

func TestUpdateIsAtomicAndVisibleAfterReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	err = store.Update(func(s *domain.State) error {
		s.Orders = append(s.Orders, domain.Order{ID: "o1", State: domain.StateNew, UpdatedAt: time.Now()})
		return nil
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	state, err := reopened.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(state.Orders) != 1 || state.Orders[0].ID != "o1" {
		t.Fatalf("expected persisted order o1, got %+v", state.Orders)
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	sentinel := &testError{"boom"}
	err = store.Update(func(s *domain.State) error {
		s.Orders = append(s.Orders, domain.Order{ID: "should-not-persist"})
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	state, err := store.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(state.Orders) != 0 {
		t.Fatalf("expected no persisted orders after aborted update, got %+v", state.Orders)
	}
}

func TestRetentionPrunesClosedOrdersButKeepsOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store, err := Open(path, WithRetention(domain.Retention{Enabled: true, ClosedOrders: 1}))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	err = store.Update(func(s *domain.State) error {
		base := time.Now()
		s.Orders = []domain.Order{
			{ID: "closed-1", State: domain.StateFilled, UpdatedAt: base},
			{ID: "closed-2", State: domain.StateFilled, UpdatedAt: base.Add(time.Minute)},
			{ID: "open-1", State: domain.StateNew, UpdatedAt: base},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	state, err := store.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(state.Orders) != 2 {
		t.Fatalf("expected 2 orders after prune (1 closed + 1 open), got %d: %+v", len(state.Orders), state.Orders)
	}
	var sawOpen, sawNewestClosed bool
	for _, o := range state.Orders {
		if o.ID == "open-1" {
			sawOpen = true
		}
		if o.ID == "closed-2" {
			sawNewestClosed = true
		}
	}
	if !sawOpen || !sawNewestClosed {
		t.Fatalf("expected open-1 and closed-2 to survive prune, got %+v", state.Orders)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

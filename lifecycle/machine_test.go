package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// memStore is a minimal in-package Store for machine tests.
type memStore struct {
	logs map[string][]*Entry
}

func newMemStore() *memStore { return &memStore{logs: make(map[string][]*Entry)} }

func (s *memStore) AppendLifecycleEntry(_ context.Context, e *Entry) error {
	s.logs[e.UserID] = append(s.logs[e.UserID], e)
	return nil
}

func (s *memStore) CurrentLifecycleState(_ context.Context, userID string) (*Entry, error) {
	log := s.logs[userID]
	if len(log) == 0 {
		return nil, nil
	}
	return log[len(log)-1], nil
}

func (s *memStore) ListLifecycleHistory(_ context.Context, filter *HistoryFilter) ([]*Entry, error) {
	log := s.logs[filter.UserID]
	out := make([]*Entry, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func TestNominalProgression(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newMemStore())

	for _, to := range []State{StateInvited, StateRegistered, StateActive} {
		if _, err := m.Transition(ctx, "user_1", to, "admin_1", nil); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	cur, err := m.Current(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if cur != StateActive {
		t.Errorf("current = %s, want ACTIVE", cur)
	}
}

func TestStrictRejectsOffTableEdge(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newMemStore())

	if _, err := m.Transition(ctx, "user_1", StateInvited, "", nil); err != nil {
		t.Fatal(err)
	}
	// INVITED → ACTIVE skips REGISTERED.
	if _, err := m.Transition(ctx, "user_1", StateActive, "", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	// Rejected transition must not append an entry.
	cur, _ := m.Current(ctx, "user_1")
	if cur != StateInvited {
		t.Errorf("current = %s, want INVITED", cur)
	}
}

func TestDeletedIsTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newMemStore())

	for _, to := range []State{StateInvited, StateDeleted} {
		if _, err := m.Transition(ctx, "user_1", to, "", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Transition(ctx, "user_1", StateActive, "", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestLenientAcceptsAnyEdge(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewMachine(store, WithLenient())

	// Straight to SUSPENDED with no history: off-table but accepted.
	if _, err := m.Transition(ctx, "user_1", StateSuspended, "", nil); err != nil {
		t.Fatal(err)
	}
	cur, _ := m.Current(ctx, "user_1")
	if cur != StateSuspended {
		t.Errorf("current = %s", cur)
	}
}

func TestUnknownStateRejectedEvenLenient(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newMemStore(), WithLenient())

	if _, err := m.Transition(ctx, "user_1", State("FROZEN"), "", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSuspensionAndReactivation(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(newMemStore())

	for _, to := range []State{StateInvited, StateRegistered, StateActive, StateSuspended, StateActive} {
		if _, err := m.Transition(ctx, "user_1", to, "admin_1", nil); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	cur, _ := m.Current(ctx, "user_1")
	if cur != StateActive {
		t.Errorf("current = %s, want ACTIVE after reactivation", cur)
	}
}

func TestTransitionHookObservesCommit(t *testing.T) {
	ctx := context.Background()
	var observed []State
	var froms []State
	m := NewMachine(newMemStore(), WithTransitionHook(func(_ context.Context, from State, e *Entry) error {
		froms = append(froms, from)
		observed = append(observed, e.State)
		return nil
	}))

	if _, err := m.Transition(ctx, "user_1", StateInvited, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Transition(ctx, "user_1", StateRegistered, "", nil); err != nil {
		t.Fatal(err)
	}

	if len(observed) != 2 || observed[1] != StateRegistered || froms[1] != StateInvited {
		t.Errorf("hook saw froms=%v states=%v", froms, observed)
	}
}

func TestEntriesStampedWithInjectedClock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(at)
	m := NewMachine(newMemStore(), WithMachineClock(clock))

	e, err := m.Transition(ctx, "user_1", StateInvited, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !e.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, at)
	}
}

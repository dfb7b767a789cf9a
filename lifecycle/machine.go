package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/gatewise/gatewise/id"
)

// ErrInvalidTransition is returned when a requested state change is not a
// legal edge of the transition table (strict mode only).
var ErrInvalidTransition = errors.New("lifecycle: invalid transition")

// transitions is the legal-edge table. The empty-string key holds the
// states a user with no history may enter.
var transitions = map[State][]State{
	"":              {StateInvited, StateRegistered},
	StateInvited:    {StateRegistered, StateDeleted},
	StateRegistered: {StateActive, StateDeleted},
	StateActive:     {StateInactive, StateSuspended, StateDeleted},
	StateInactive:   {StateActive, StateSuspended, StateDeleted},
	StateSuspended:  {StateActive, StateDeleted},
	StateDeleted:    nil,
}

// CanTransition reports whether from→to is a legal edge. Use the empty
// state as from for users with no history.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionHook observes committed transitions. Hook errors are logged
// and never fail the transition (the entry is already appended).
type TransitionHook func(ctx context.Context, from State, e *Entry) error

// Machine applies lifecycle transitions against the append-only log.
//
// In strict mode (the default) illegal edges are rejected. In lenient mode
// any transition is accepted — matching the historical free-transition
// behavior — but off-table and backward edges are logged as warnings.
type Machine struct {
	store   Store
	logger  *slog.Logger
	clock   clockwork.Clock
	lenient bool
	hooks   []TransitionHook
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLenient disables transition-table enforcement; off-table edges are
// logged instead of rejected.
func WithLenient() MachineOption { return func(m *Machine) { m.lenient = true } }

// WithMachineLogger sets the structured logger.
func WithMachineLogger(l *slog.Logger) MachineOption { return func(m *Machine) { m.logger = l } }

// WithMachineClock sets the clock used to stamp entries.
func WithMachineClock(c clockwork.Clock) MachineOption { return func(m *Machine) { m.clock = c } }

// WithTransitionHook registers a hook observing committed transitions.
func WithTransitionHook(h TransitionHook) MachineOption {
	return func(m *Machine) { m.hooks = append(m.hooks, h) }
}

// NewMachine creates a lifecycle machine over the given store.
func NewMachine(store Store, opts ...MachineOption) *Machine {
	m := &Machine{
		store:  store,
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the user's current state, or the empty state when the
// user has no lifecycle history.
func (m *Machine) Current(ctx context.Context, userID string) (State, error) {
	e, err := m.store.CurrentLifecycleState(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lifecycle: current state for %s: %w", userID, err)
	}
	if e == nil {
		return "", nil
	}
	return e.State, nil
}

// Transition appends a state change for the user, enforcing the transition
// table unless the machine is lenient.
func (m *Machine) Transition(ctx context.Context, userID string, to State, changedBy string, metadata map[string]any) (*Entry, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, to)
	}

	from, err := m.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(from, to) {
		if !m.lenient {
			return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, orNone(from), to)
		}
		m.logger.Warn("lifecycle: off-table transition accepted in lenient mode",
			"user_id", userID, "from", orNone(from), "to", to)
	}
	if from != "" && rank[to] < rank[from] {
		m.logger.Warn("lifecycle: backward transition",
			"user_id", userID, "from", from, "to", to, "changed_by", changedBy)
	}

	e := &Entry{
		ID:        id.NewLifecycleID(),
		UserID:    userID,
		State:     to,
		Metadata:  metadata,
		ChangedBy: changedBy,
		CreatedAt: m.clock.Now().UTC(),
	}
	if err := m.store.AppendLifecycleEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("lifecycle: append entry for %s: %w", userID, err)
	}

	for _, h := range m.hooks {
		if err := h(ctx, from, e); err != nil {
			m.logger.Error("lifecycle: transition hook failed",
				"user_id", userID, "to", to, "error", err)
		}
	}

	return e, nil
}

// History returns the user's lifecycle log, newest first.
func (m *Machine) History(ctx context.Context, userID string) ([]*Entry, error) {
	return m.store.ListLifecycleHistory(ctx, &HistoryFilter{UserID: userID})
}

func orNone(s State) string {
	if s == "" {
		return "(none)"
	}
	return string(s)
}

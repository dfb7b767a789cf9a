// Package lifecycle tracks a user's coarse lifecycle state as an
// append-only log. The current state is the most recent entry.
package lifecycle

import (
	"time"

	"github.com/gatewise/gatewise/id"
)

// State is a user's coarse lifecycle state.
type State string

const (
	// StateInvited means the user was invited but has not registered.
	StateInvited State = "INVITED"

	// StateRegistered means the user completed registration.
	StateRegistered State = "REGISTERED"

	// StateActive means the user is in good standing.
	StateActive State = "ACTIVE"

	// StateInactive means the user is dormant but may return.
	StateInactive State = "INACTIVE"

	// StateSuspended means the user was administratively suspended.
	StateSuspended State = "SUSPENDED"

	// StateDeleted is terminal.
	StateDeleted State = "DELETED"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInvited, StateRegistered, StateActive, StateInactive, StateSuspended, StateDeleted:
		return true
	}
	return false
}

// rank orders states along the nominal forward progression. Used only to
// detect backward transitions for lenient-mode warnings.
var rank = map[State]int{
	StateInvited:    0,
	StateRegistered: 1,
	StateActive:     2,
	StateInactive:   3,
	StateSuspended:  3,
	StateDeleted:    4,
}

// Entry is one row of the append-only lifecycle log.
type Entry struct {
	ID        id.LifecycleID `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	State     State          `json:"state" db:"state"`
	Metadata  map[string]any `json:"metadata,omitempty" db:"metadata"`
	ChangedBy string         `json:"changed_by,omitempty" db:"changed_by"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// HistoryFilter contains filters for listing lifecycle history.
type HistoryFilter struct {
	UserID string `json:"user_id,omitempty"`
	State  State  `json:"state,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Package temporal defines time-bounded and recurring permission grants.
package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/gatewise/gatewise/id"
)

// ErrInvalidSchedule is returned when a grant's temporal definition is
// malformed (empty recurring schedule, inverted window, out-of-range units).
var ErrInvalidSchedule = errors.New("temporal: invalid schedule")

// Type distinguishes the temporal grant flavors.
type Type string

const (
	// TypeTemporary is a one-off window granted for a limited time.
	TypeTemporary Type = "temporary"

	// TypeScheduled is a window planned in advance. Evaluated identically
	// to temporary; the distinction is informational.
	TypeScheduled Type = "scheduled"

	// TypeRecurring repeats on a day-of-week/hour schedule.
	TypeRecurring Type = "recurring"
)

// Valid reports whether t is a known grant type.
func (t Type) Valid() bool {
	switch t {
	case TypeTemporary, TypeScheduled, TypeRecurring:
		return true
	}
	return false
}

// Schedule defines when a recurring grant is active: the current local
// day-of-week must be in Days and the current hour in Hours. Months and
// DaysOfMonth, when non-empty, further constrain the match; when empty
// they are unconstrained.
type Schedule struct {
	Days        []int `json:"days"`                  // 0 (Sunday) … 6
	Hours       []int `json:"hours"`                 // 0 … 23
	Months      []int `json:"months,omitempty"`      // 1 … 12
	DaysOfMonth []int `json:"daysOfMonth,omitempty"` // 1 … 31
}

// Validate checks that the schedule is activatable: non-empty days and
// hours, every unit within range.
func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: recurring grant requires a schedule", ErrInvalidSchedule)
	}
	if len(s.Days) == 0 || len(s.Hours) == 0 {
		return fmt.Errorf("%w: recurring schedule requires non-empty days and hours", ErrInvalidSchedule)
	}
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day %d out of range [0,6]", ErrInvalidSchedule, d)
		}
	}
	for _, h := range s.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: hour %d out of range [0,23]", ErrInvalidSchedule, h)
		}
	}
	for _, m := range s.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: month %d out of range [1,12]", ErrInvalidSchedule, m)
		}
	}
	for _, d := range s.DaysOfMonth {
		if d < 1 || d > 31 {
			return fmt.Errorf("%w: day of month %d out of range [1,31]", ErrInvalidSchedule, d)
		}
	}
	return nil
}

// Grant is a time-gated permission grant. Temporary and scheduled grants
// are active within [StartTime, EndTime] inclusive; recurring grants are
// active when the evaluation instant matches Schedule. The IsActive flag
// is an explicit kill switch: when false the grant is inactive regardless
// of its window or schedule.
type Grant struct {
	ID           id.TemporalID   `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	PermissionID id.PermissionID `json:"permission_id" db:"permission_id"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty" db:"resource_id"`
	Type         Type            `json:"type" db:"type"`
	StartTime    time.Time       `json:"start_time,omitempty" db:"start_time"`
	EndTime      time.Time       `json:"end_time,omitempty" db:"end_time"`
	Schedule     *Schedule       `json:"schedule,omitempty" db:"-"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	Reason       string          `json:"reason,omitempty" db:"reason"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Validate checks the grant's temporal definition for its type.
func (g *Grant) Validate() error {
	switch g.Type {
	case TypeTemporary, TypeScheduled:
		if g.StartTime.IsZero() || g.EndTime.IsZero() {
			return fmt.Errorf("%w: %s grant requires start and end times", ErrInvalidSchedule, g.Type)
		}
		if g.EndTime.Before(g.StartTime) {
			return fmt.Errorf("%w: end time precedes start time", ErrInvalidSchedule)
		}
		return nil
	case TypeRecurring:
		return g.Schedule.Validate()
	default:
		return fmt.Errorf("%w: unknown grant type %q", ErrInvalidSchedule, g.Type)
	}
}

// ListFilter contains filters for listing temporal grants.
type ListFilter struct {
	UserID       string           `json:"user_id,omitempty"`
	PermissionID *id.PermissionID `json:"permission_id,omitempty"`
	ResourceType string           `json:"resource_type,omitempty"`
	Type         Type             `json:"type,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	Offset       int              `json:"offset,omitempty"`
}

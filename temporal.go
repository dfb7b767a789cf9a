package gatewise

import (
	"context"
	"fmt"
	"time"

	"github.com/gatewise/gatewise/id"
	"github.com/gatewise/gatewise/temporal"
)

// IsTemporalActive reports whether a time-based grant is active at the
// given instant. It is a pure function of its inputs: callers supply the
// clock reading, so the gate is deterministic under fake time.
//
// A record flagged inactive is inactive regardless of window or schedule.
// Temporary and scheduled grants are active within [StartTime, EndTime]
// inclusive at both ends. Recurring grants are active when the instant's
// day-of-week and hour are in the schedule's sets; an empty schedule is
// never active. Month and day-of-month sets, when present, must also
// match; when absent they are unconstrained.
func IsTemporalActive(g *temporal.Grant, now time.Time) bool {
	if g == nil || !g.IsActive {
		return false
	}

	switch g.Type {
	case temporal.TypeTemporary, temporal.TypeScheduled:
		return !now.Before(g.StartTime) && !now.After(g.EndTime)

	case temporal.TypeRecurring:
		s := g.Schedule
		if s == nil || len(s.Days) == 0 || len(s.Hours) == 0 {
			return false
		}
		if !containsInt(s.Days, int(now.Weekday())) {
			return false
		}
		if !containsInt(s.Hours, now.Hour()) {
			return false
		}
		if len(s.Months) > 0 && !containsInt(s.Months, int(now.Month())) {
			return false
		}
		if len(s.DaysOfMonth) > 0 && !containsInt(s.DaysOfMonth, now.Day()) {
			return false
		}
		return true

	default:
		return false
	}
}

func containsInt(s []int, v int) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// IsTimeBasedPermissionActive reports whether the grant is active at the
// given instant. A zero now uses the engine clock.
func (e *Engine) IsTimeBasedPermissionActive(g *temporal.Grant, now time.Time) bool {
	if now.IsZero() {
		now = e.clock.Now()
	}
	return IsTemporalActive(g, now)
}

// CreateTimeBasedPermission validates and persists a time-based grant.
// Recurring grants must carry a non-empty schedule at activation.
func (e *Engine) CreateTimeBasedPermission(ctx context.Context, g *temporal.Grant) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if g.ID.IsNil() {
		g.ID = id.NewTemporalID()
	}
	now := e.clock.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	return e.store.CreateTemporal(ctx, g)
}

// DeactivateTimeBasedPermission flips the grant's kill switch off. The
// grant stays on record but the gate reports it inactive everywhere.
func (e *Engine) DeactivateTimeBasedPermission(ctx context.Context, grantID id.TemporalID) error {
	g, err := e.store.GetTemporal(ctx, grantID)
	if err != nil {
		return err
	}
	g.IsActive = false
	g.UpdatedAt = e.clock.Now().UTC()
	return e.store.UpdateTemporal(ctx, g)
}

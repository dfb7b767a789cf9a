package lifecycle

import "context"

// Store defines persistence operations for the lifecycle log.
type Store interface {
	// AppendLifecycleEntry appends a state change. The log is append-only;
	// entries are never updated or deleted individually.
	AppendLifecycleEntry(ctx context.Context, e *Entry) error

	// CurrentLifecycleState returns the latest entry for a user, or nil
	// when the user has no lifecycle history.
	CurrentLifecycleState(ctx context.Context, userID string) (*Entry, error)

	// ListLifecycleHistory returns entries matching the filter, newest first.
	ListLifecycleHistory(ctx context.Context, filter *HistoryFilter) ([]*Entry, error)
}

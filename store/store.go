// Package store defines the aggregate persistence interface. Each
// subsystem (permission, role, grant, conditional, temporal, lifecycle,
// provisioning) defines its own store interface; the composite Store
// composes them all. Backends: Postgres, SQLite, and Memory.
package store

import (
	"context"

	"github.com/gatewise/gatewise/conditional"
	"github.com/gatewise/gatewise/grant"
	"github.com/gatewise/gatewise/lifecycle"
	"github.com/gatewise/gatewise/permission"
	"github.com/gatewise/gatewise/provisioning"
	"github.com/gatewise/gatewise/role"
	"github.com/gatewise/gatewise/temporal"
)

// Store is the aggregate persistence interface. Each subsystem store is a
// composable interface; a single backend implements all of them.
type Store interface {
	permission.Store
	role.Store
	grant.Store
	conditional.Store
	temporal.Store
	lifecycle.Store
	provisioning.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

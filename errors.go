package gatewise

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned by Enforce when a check is denied.
	ErrAccessDenied = errors.New("gatewise: access denied")

	// ErrNotFound is returned when a referenced role, permission, or grant
	// does not exist. 404 territory; never retried.
	ErrNotFound = errors.New("gatewise: not found")

	// ErrValidation is returned for malformed input: instantiating from a
	// non-template role, a cyclic parent chain, an empty recurring schedule
	// at activation, deleting a referenced permission. 400 territory.
	ErrValidation = errors.New("gatewise: validation failed")

	// ErrConfiguration signals an internal invariant violation, such as an
	// inheritance cycle discovered at resolve time that validation should
	// have prevented. The triggering check fails closed.
	ErrConfiguration = errors.New("gatewise: configuration error")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// loses: the role version the writer read is no longer current.
	ErrVersionConflict = errors.New("gatewise: version conflict")

	// ErrSystemRoleImmutable is returned when a caller tries to modify or
	// delete a seeded system role.
	ErrSystemRoleImmutable = fmt.Errorf("%w: system role is read-only", ErrValidation)

	// ErrCyclicInheritance is returned when a parent change would create a
	// cycle in the role tree. Matches both itself and ErrValidation.
	ErrCyclicInheritance = fmt.Errorf("%w: cyclic role inheritance", ErrValidation)

	// ErrInvalidCondition is returned when a condition expression is
	// structurally sound but unevaluable (unknown operator reached at
	// evaluation time).
	ErrInvalidCondition = errors.New("gatewise: invalid condition")
)

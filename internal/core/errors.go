package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")

	// ErrAuditFailed is returned alongside a valid mutation result when the
	// history entry for that mutation could not be appended.
	ErrAuditFailed = errors.New("audit trail append failed")
)

var (
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("membership %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("assignment %w", ErrNotFound)

	ErrAlreadyMember   = fmt.Errorf("user is already a member of the project: %w", ErrConflict)
	ErrAlreadyAssigned = fmt.Errorf("task is already assigned to this member: %w", ErrConflict)
	ErrProjectExists   = fmt.Errorf("project name already taken: %w", ErrConflict)
)

// invalidArgf builds an error that satisfies errors.Is(err, ErrInvalidArgument).
func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

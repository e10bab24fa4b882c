package core

import "github.com/valter-silva-au/mpt/pkg/models"

// Field carries an optional value together with whether the caller
// supplied it at all. Set=false means "not supplied"; Set=true with the
// zero Value is an explicit empty value.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a supplied Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Get returns the value and whether it was supplied.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Set
}

// TaskUpdate is a partial update of a task's mutable fields.
//
// Name, Description, Priority and Status are applied only when Set. The
// date fields use a nil Value as an explicit "clear this date" signal, so
// Some[*models.Date](nil) removes the date while an unset Field leaves it
// alone.
//
// ProjectID and CreatedBy are accepted so callers can pass a full task
// payload through, but they are never applied.
type TaskUpdate struct {
	Name        Field[string]
	Description Field[string]
	Priority    Field[models.Priority]
	Status      Field[models.TaskStatus]
	DueDate     Field[*models.Date]
	EndDate     Field[*models.Date]

	ProjectID Field[int64]
	CreatedBy Field[int64]
}

// IsEmpty reports whether no mutable field was supplied.
func (u TaskUpdate) IsEmpty() bool {
	return !u.Name.Set && !u.Description.Set && !u.Priority.Set &&
		!u.Status.Set && !u.DueDate.Set && !u.EndDate.Set
}

// validate checks the supplied enum values before anything is written.
func (u TaskUpdate) validate() error {
	if p, ok := u.Priority.Get(); ok && !p.Valid() {
		return invalidArgf("unknown priority %q", p)
	}
	if s, ok := u.Status.Get(); ok && !s.Valid() {
		return invalidArgf("unknown status %q", s)
	}
	return nil
}

// apply merges the supplied fields into t. Immutable fields are left as
// they are regardless of what the update carries.
func (u TaskUpdate) apply(t *models.Task) {
	if v, ok := u.Name.Get(); ok {
		t.Name = v
	}
	if v, ok := u.Description.Get(); ok {
		t.Description = models.StringPtr(v)
	}
	if v, ok := u.Priority.Get(); ok {
		t.Priority = v
	}
	if v, ok := u.Status.Get(); ok {
		t.Status = v
	}
	if v, ok := u.DueDate.Get(); ok {
		t.DueDate = copyDate(v)
	}
	if v, ok := u.EndDate.Get(); ok {
		t.EndDate = copyDate(v)
	}
}

func copyDate(d *models.Date) *models.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

package models

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists every valid Priority in ascending urgency.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) String() string { return string(p) }

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// Statuses lists every valid TaskStatus in board order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s TaskStatus) String() string { return string(s) }

// Task is a unit of work inside a project. ProjectID and CreatedBy are set
// once at creation and never change afterwards.
type Task struct {
	ID          int64      `yaml:"id" json:"id" db:"id"`
	ProjectID   int64      `yaml:"project_id" json:"project_id" db:"project_id"`
	CreatedBy   int64      `yaml:"created_by" json:"created_by" db:"created_by"`
	Name        string     `yaml:"name" json:"name" db:"name"`
	Description *string    `yaml:"description,omitempty" json:"description,omitempty" db:"description"`
	Priority    Priority   `yaml:"priority" json:"priority" db:"priority"`
	Status      TaskStatus `yaml:"status" json:"status" db:"status"`
	DueDate     *Date      `yaml:"due_date,omitempty" json:"due_date,omitempty" db:"-"`
	EndDate     *Date      `yaml:"end_date,omitempty" json:"end_date,omitempty" db:"-"`
}

// Clone returns a deep copy of t so callers can keep a pre-mutation
// snapshot while the original is modified.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.EndDate != nil {
		d := *t.EndDate
		out.EndDate = &d
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

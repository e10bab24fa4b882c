package models

import "time"

// Actor is the authenticated identity attempting an operation. It is
// resolved by the calling layer and passed explicitly to every call.
type Actor struct {
	ID    int64 `yaml:"id" json:"id"`
	Admin bool  `yaml:"admin" json:"admin"`
}

// Project groups tasks and memberships. CreatedBy is immutable once set.
type Project struct {
	ID          int64     `yaml:"id" json:"id" db:"id"`
	Name        string    `yaml:"name" json:"name" db:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty" db:"description"`
	StartDate   *Date     `yaml:"start_date,omitempty" json:"start_date,omitempty" db:"-"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at" db:"created_at"`
	CreatedBy   int64     `yaml:"created_by" json:"created_by" db:"created_by"`
}

// ProjectStats summarises the tasks of a project by status.
type ProjectStats struct {
	ProjectID  int64 `json:"project_id"`
	Total      int   `json:"total"`
	Todo       int   `json:"todo"`
	InProgress int   `json:"in_progress"`
	Done       int   `json:"done"`
	// Progress is the integer percentage of done tasks, 0 for an empty project.
	Progress int `json:"progress"`
}

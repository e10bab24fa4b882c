package models

import "time"

// Role is the grant a membership gives a user inside one project.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMember   Role = "MEMBER"
	RoleObserver Role = "OBSERVER"
)

// Roles lists every valid Role.
var Roles = []Role{RoleAdmin, RoleMember, RoleObserver}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleObserver:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Membership binds one user to one project with a role. There is at most
// one membership per (ProjectID, UserID) pair.
type Membership struct {
	ID        int64     `yaml:"id" json:"id" db:"id"`
	ProjectID int64     `yaml:"project_id" json:"project_id" db:"project_id"`
	UserID    int64     `yaml:"user_id" json:"user_id" db:"user_id"`
	Role      Role      `yaml:"role" json:"role" db:"role"`
	JoinedAt  time.Time `yaml:"joined_at" json:"joined_at" db:"joined_at"`
}

// Assignment links a task to the project member working on it.
type Assignment struct {
	ID           int64     `yaml:"id" json:"id" db:"id"`
	TaskID       int64     `yaml:"task_id" json:"task_id" db:"task_id"`
	MembershipID int64     `yaml:"membership_id" json:"membership_id" db:"membership_id"`
	AssignedBy   *int64    `yaml:"assigned_by,omitempty" json:"assigned_by,omitempty" db:"assigned_by"`
	AssignedAt   time.Time `yaml:"assigned_at" json:"assigned_at" db:"assigned_at"`
}

package models

import "time"

// HistoryEntry is one immutable record in a task's audit trail. ChangedBy
// is nil when the actor could not be resolved.
type HistoryEntry struct {
	ID                string    `json:"id" db:"id"`
	TaskID            int64     `json:"task_id" db:"task_id"`
	ChangedBy         *int64    `json:"changed_by,omitempty" db:"changed_by"`
	Timestamp         time.Time `json:"timestamp" db:"changed_at"`
	ChangeDescription string    `json:"change_description" db:"change_description"`
}

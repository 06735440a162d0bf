package model

import "time"

// TaskState is a task's lifecycle phase.
//
// Pending -> Active -> Completed; from Pending or Completed a delete moves the
// task to Tombstoned, from which an undo restores the prior state or the undo
// window expiry purges it for good.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskActive     TaskState = "active"
	TaskCompleted  TaskState = "completed"
	TaskTombstoned TaskState = "tombstoned"
	TaskPurged     TaskState = "purged"
)

// Task is a unit of work queued for estimation.
type Task struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	State     TaskState     `json:"state"`
	History   []RoundResult `json:"history,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RoundResult is a closed round folded into its task's history. Votes holds
// the full vote map as it stood at reveal; Average is nil when no numeric
// votes were present.
type RoundResult struct {
	Votes    map[string]string `json:"votes"`
	Average  *float64          `json:"average,omitempty"`
	ClosedAt time.Time         `json:"closedAt"`
}

package models

import (
	"time"
)

// Result is the immutable proof that a user solved a task. Points are a
// snapshot of the task's price at crediting time, so later price edits do
// not rewrite history. At most one result exists per session.
type Result struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultEntry is a result joined with display data of its task, used in
// progress listings.
type ResultEntry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	Level     Level     `json:"level"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress aggregates one user's solved tasks. Everything here is derived
// from the result records alone.
type Progress struct {
	Username    string        `json:"username"`
	Completed   int           `json:"completed"`
	TotalPoints int           `json:"total_points"`
	ByLevel     map[Level]int `json:"by_level"`
	Recent      []ResultEntry `json:"recent"`
}

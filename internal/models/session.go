package models

import (
	"time"
)

// SessionStatus represents the lifecycle state of a solving session.
// The wire values are fixed by the public API.
type SessionStatus string

const (
	SessionStarted  SessionStatus = "started" // created, no query executed yet
	SessionSolving  SessionStatus = "solve"   // at least one query executed
	SessionFinished SessionStatus = "finish"  // correct answer submitted, terminal
)

// IsTerminal returns true once the session can accept no further work.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionFinished
}

// Session is one learner's attempt at one task. The session id doubles as
// the key of its private sandbox database.
type Session struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"task_id"`
	UserID     string        `json:"user_id"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// SessionResponse is a session together with a snapshot of its task,
// captured at response time for display purposes.
type SessionResponse struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	Task      TaskSummary   `json:"task"`
	CreatedAt time.Time     `json:"created_at"`
}

// ExecuteRequest carries one raw SQL statement to run against a sandbox.
type ExecuteRequest struct {
	Query string `json:"query"`
}

// ExecuteResponse is the full result set of an executed statement.
type ExecuteResponse struct {
	Columns []string `json:"columns,omitempty"`
	Result  []Row    `json:"result"`
}

// SolveRequest carries a submitted final answer.
type SolveRequest struct {
	Answer string `json:"answer"`
}

// SolveResponse reports the outcome of an answer submission.
type SolveResponse struct {
	Correct bool             `json:"correct"`
	Message string           `json:"message"`
	Session *SessionResponse `json:"session"`
	Result  *Result          `json:"result,omitempty"`
}

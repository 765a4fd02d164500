package models

import (
	"time"
)

// Level grades task difficulty.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
	LevelExpert       Level = "Expert"
	LevelMaster       Level = "Master"
)

// Levels lists all difficulty levels in ascending order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert, LevelMaster}

// Valid reports whether l is a known difficulty level.
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// Task is a practice exercise backed by a template database. The answer
// and the template key never leave the server.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Level       Level     `json:"level"`
	TemplateKey string    `json:"-"`
	Answer      string    `json:"-"`
	Price       int       `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskSummary is the catalog listing view of a task.
type TaskSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Level       Level  `json:"level"`
	Price       int    `json:"price"`
}

// Summary returns the catalog listing view of the task.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Level:       t.Level,
		Price:       t.Price,
	}
}

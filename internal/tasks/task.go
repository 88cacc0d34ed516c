// Package tasks tracks the lifecycle of asynchronous chapter jobs.
package tasks

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown task IDs.
	ErrNotFound = errors.New("task not found")

	// ErrTaskFinished is returned when a completed or failed task is modified.
	ErrTaskFinished = errors.New("task already finished")
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Kind distinguishes the pipelines that create tasks.
type Kind string

const (
	KindTranslation Kind = "translation"
	KindAudio       Kind = "audio"
)

// Task is one asynchronous unit of chapter work.
type Task struct {
	ID           string     `json:"task_id"`
	Kind         Kind       `json:"kind"`
	BookID       string     `json:"book_id"`
	ChapterID    string     `json:"chapter_id"`
	Status       Status     `json:"status"`
	Progress     float64    `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	// Audio results.
	AudioURL string  `json:"audio_url,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Result carries the fields set when a task completes.
type Result struct {
	AudioURL string
	Duration float64
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Kind      Kind
	BookID    string
	ChapterID string
	Status    Status
	Active    bool // only pending and in-progress
}

func (f Filter) match(t *Task) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.BookID != "" && t.BookID != f.BookID {
		return false
	}
	if f.ChapterID != "" && t.ChapterID != f.ChapterID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Active && t.Status.Terminal() {
		return false
	}
	return true
}

// Store is the task registry shared by orchestrators and status readers.
// Every read returns a copy.
type Store interface {
	Create(kind Kind, bookID, chapterID string) (*Task, error)
	Get(id string) (*Task, error)
	SetStatus(id string, status Status) error
	SetProgress(id string, fraction float64) error
	SetError(id string, message string) error
	Complete(id string, result *Result) error
	ListActive() []Task
	List(filter Filter) []Task
	Cleanup(maxAge time.Duration) int
}

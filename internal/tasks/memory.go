package tasks

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps tasks in process memory. Tasks do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	now    func() time.Time
	logger *slog.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		tasks:  make(map[string]*Task),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Create registers a pending task with a fresh ID.
func (s *MemoryStore) Create(kind Kind, bookID, chapterID string) (*Task, error) {
	if kind == "" || bookID == "" || chapterID == "" {
		return nil, fmt.Errorf("kind, book_id and chapter_id are required")
	}
	t := &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		BookID:    bookID,
		ChapterID: chapterID,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.logger.Debug("task created", "task_id", t.ID, "kind", kind, "book_id", bookID, "chapter_id", chapterID)
	return t.clone(), nil
}

// Get returns a copy of the task.
func (s *MemoryStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.clone(), nil
}

// SetStatus moves a task to status. Moving to a terminal status stamps
// CompletedAt; completed also forces progress to 1.0.
func (s *MemoryStore) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	return s.update(id, func(t *Task) {
		t.Status = status
		if status.Terminal() {
			now := s.now()
			t.CompletedAt = &now
		}
		if status == StatusCompleted {
			t.Progress = 1.0
		}
	})
}

// SetProgress records a fraction in [0,1). Values below the current
// progress are ignored so progress never moves backwards; 1.0 is only
// reached through Complete.
func (s *MemoryStore) SetProgress(id string, fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	return s.update(id, func(t *Task) {
		if fraction >= 1 && t.Status != StatusCompleted {
			// Hold just below 1.0 until the artifact is persisted.
			fraction = maxPending
		}
		if fraction > t.Progress {
			t.Progress = fraction
		}
	})
}

// maxPending is the highest progress a task reports before completion.
const maxPending = 0.999

// SetError marks the task failed, keeping the progress it reached.
func (s *MemoryStore) SetError(id string, message string) error {
	return s.update(id, func(t *Task) {
		now := s.now()
		t.Status = StatusFailed
		t.ErrorMessage = message
		t.CompletedAt = &now
	})
}

// Complete marks the task completed with progress 1.0 and the given result.
func (s *MemoryStore) Complete(id string, result *Result) error {
	return s.update(id, func(t *Task) {
		now := s.now()
		t.Status = StatusCompleted
		t.Progress = 1.0
		t.CompletedAt = &now
		if result != nil {
			t.AudioURL = result.AudioURL
			t.Duration = result.Duration
		}
	})
}

func (s *MemoryStore) update(id string, fn func(t *Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskFinished, id, t.Status)
	}
	fn(t)
	return nil
}

// ListActive returns pending and in-progress tasks, oldest first.
func (s *MemoryStore) ListActive() []Task {
	return s.List(Filter{Active: true})
}

// List returns matching tasks, oldest first.
func (s *MemoryStore) List(filter Filter) []Task {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.match(t) {
			out = append(out, *t.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cleanup removes completed and failed tasks that finished more than
// maxAge ago and returns how many were removed. Pending and in-progress
// tasks are never removed; maxAge <= 0 removes every finished task.
func (s *MemoryStore) Cleanup(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if !t.Status.Terminal() || t.CompletedAt == nil {
			continue
		}
		if maxAge <= 0 || t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("cleaned up finished tasks", "removed", removed, "max_age", maxAge)
	}
	return removed
}

// CleanupHours is Cleanup with the age given in hours.
func (s *MemoryStore) CleanupHours(hours int) int {
	return s.Cleanup(time.Duration(hours) * time.Hour)
}

// Len returns the number of tracked tasks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (t *Task) clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)

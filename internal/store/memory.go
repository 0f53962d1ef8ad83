// Package store owns task records: a mutex-guarded in-memory map that is the
// single source of truth for task existence, and a sqlite ledger of finished
// transfers. Live task state is intentionally never persisted or reloaded.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
)

type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*domain.Task)}
}

func (s *TaskStore) Add(t *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *TaskStore) Get(id string) (*domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *TaskStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// All returns every task, oldest first. KSUIDs sort chronologically so the
// id is the creation order.
func (s *TaskStore) All() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sortByID(out)
	return out
}

// Active returns tasks currently holding a concurrency slot.
func (s *TaskStore) Active() []*domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Task
	for _, t := range s.tasks {
		if t.Status().IsActive() {
			out = append(out, t)
		}
	}
	sortByID(out)
	return out
}

// SweepTerminal removes every task that is terminal and completed earlier
// than now-maxAge, returning the removed ids. Tasks without a completedAt
// are never swept regardless of age.
func (s *TaskStore) SweepTerminal(maxAge time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	cutoff := now.Add(-maxAge)
	for id, t := range s.tasks {
		if !t.Status().IsTerminal() {
			continue
		}
		completed := t.CompletedAt()
		if completed.IsZero() || completed.After(cutoff) {
			continue
		}
		delete(s.tasks, id)
		removed = append(removed, id)
	}
	return removed
}

func sortByID(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID < tasks[j].ID
	})
}

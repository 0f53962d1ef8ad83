package domain

import (
	"sync"
	"time"
)

// Progress is the live state of one transfer. It is mutated only by the unit
// of work executing the task; everything else reads snapshots.
type Progress struct {
	DownloadedBytes int64      `json:"downloaded_bytes"`
	TotalBytes      int64      `json:"total_bytes"`
	Percentage      float64    `json:"percentage"`
	Speed           float64    `json:"speed"` // bytes per second
	ETASeconds      int64      `json:"eta"`
	Status          TaskStatus `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Task represents one requested media transfer and its lifecycle state.
// The identifying fields are immutable after creation; progress and the
// started/completed timestamps are guarded by the task's own lock.
type Task struct {
	ID             string
	SourceURL      string
	Title          string
	OutputPath     string
	Quality        Quality
	PostProcessing PostProcessingKind
	Formats        []FormatDescriptor

	// Headers and Cookies are forwarded verbatim to the transfer.
	// Never inspected, never logged.
	Headers map[string]string
	Cookies string

	CreatedAt time.Time

	mu          sync.RWMutex
	progress    Progress
	startedAt   time.Time
	completedAt time.Time
}

func NewTask(id string) *Task {
	return &Task{
		ID:        id,
		CreatedAt: time.Now(),
		progress:  Progress{Status: StatusPending},
	}
}

// Progress returns a snapshot of the live state.
func (t *Task) Progress() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.Status
}

// SetStatus advances the state machine, rejecting edges it does not define.
// Entering a terminal status records completedAt exactly once.
func (t *Task) SetStatus(next TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.progress.Status
	if !cur.CanTransition(next) {
		return &InvalidTransitionError{From: cur, To: next}
	}

	t.progress.Status = next
	if next.IsTerminal() && t.completedAt.IsZero() {
		t.completedAt = time.Now()
	}
	return nil
}

// Fail moves the task to FAILED with a human-readable cause.
func (t *Task) Fail(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.progress.Status
	if !cur.CanTransition(StatusFailed) {
		return &InvalidTransitionError{From: cur, To: StatusFailed}
	}

	t.progress.Status = StatusFailed
	t.progress.ErrorMessage = msg
	if t.completedAt.IsZero() {
		t.completedAt = time.Now()
	}
	return nil
}

// UpdateProgress applies fn to the live state under the task lock. Writes
// after a terminal status are rejected so a straggling unit of work cannot
// resurrect a finished task.
func (t *Task) UpdateProgress(fn func(p *Progress)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.progress.Status.IsTerminal() {
		return ErrTaskFinished
	}
	fn(&t.progress)
	return nil
}

// MarkStarted records startedAt. It is set exactly once, never reset.
func (t *Task) MarkStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
}

func (t *Task) StartedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

func (t *Task) CompletedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completedAt
}

// Duration is the wall-clock time the task has been (or was) running.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.startedAt.IsZero() {
		return 0
	}
	end := t.completedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(t.startedAt)
}

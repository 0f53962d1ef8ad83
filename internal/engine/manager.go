// Package engine schedules and drives media transfers: admission under the
// concurrency cap, the per-task unit of work, cooperative cancellation, and
// retention-based cleanup of finished tasks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/segmentio/ksuid"

	"github.com/vidfetch/vidfetch/internal/app"
	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/format"
	"github.com/vidfetch/vidfetch/internal/notify"
	"github.com/vidfetch/vidfetch/internal/transcode"
)

// CreateRequest carries everything the extraction collaborator resolved
// before task creation.
type CreateRequest struct {
	SourceURL      string
	Title          string
	Formats        []domain.FormatDescriptor
	Quality        domain.Quality
	PostProcessing domain.PostProcessingKind
	Headers        map[string]string
	Cookies        string

	// OutputPath overrides the derived filename. Uniqueness is the
	// caller's responsibility.
	OutputPath string
}

// Manager owns the task map and the running units of work. One manager
// instance serializes all admission and cancellation decisions.
type Manager struct {
	app     *app.Context
	fetcher *Fetcher
	post    *transcode.PostProcessor

	mu     sync.Mutex
	active map[string]*unit
}

// unit is the cancellation handle for one running unit of work.
type unit struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

func NewManager(appCtx *app.Context, fetcher *Fetcher, post *transcode.PostProcessor) *Manager {
	return &Manager{
		app:     appCtx,
		fetcher: fetcher,
		post:    post,
		active:  make(map[string]*unit),
	}
}

// Create registers a new PENDING task and returns it. It never starts the
// transfer.
func (m *Manager) Create(req CreateRequest) (*domain.Task, error) {
	if req.SourceURL == "" {
		return nil, fmt.Errorf("source url is required")
	}

	outDir := m.app.Config.Download.OutDir
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create out_dir: %w", err)
	}

	if req.PostProcessing == "" {
		req.PostProcessing = domain.PostProcessNone
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(outDir, deriveFilename(req.Title, req.PostProcessing, req.Formats))
	}

	t := domain.NewTask(ksuid.New().String())
	t.SourceURL = req.SourceURL
	t.Title = req.Title
	t.OutputPath = outputPath
	t.Quality = req.Quality
	t.PostProcessing = req.PostProcessing
	t.Formats = req.Formats
	t.Headers = req.Headers
	t.Cookies = req.Cookies

	m.app.Store.Add(t)
	m.app.Logger.Info("Created task %s: %s", t.ID, t.Title)
	return t, nil
}

// Start admits a PENDING task if the scheduler is under its concurrency cap
// and spawns its unit of work. At the cap it returns ErrCapacityExceeded and
// the task stays PENDING for a later retry.
func (m *Manager) Start(id string) error {
	t, ok := m.app.Store.Get(id)
	if !ok {
		return domain.ErrNotFound
	}

	m.mu.Lock()
	if len(m.active) >= m.app.Config.Download.MaxConcurrent {
		m.mu.Unlock()
		return domain.ErrCapacityExceeded
	}
	if err := t.SetStatus(domain.StatusStarting); err != nil {
		m.mu.Unlock()
		return err
	}
	t.MarkStarted()

	ctx, cancel := context.WithCancel(context.Background())
	u := &unit{cancel: cancel, done: make(chan struct{})}
	m.active[id] = u
	m.mu.Unlock()

	m.app.Notifier.Publish(id, t.Progress())
	go m.run(ctx, t, u)
	return nil
}

// Cancel signals the running unit for a task to stop at its next safe point.
// Exactly one caller wins a racing cancel; the rest get ErrNotActive.
func (m *Manager) Cancel(id string) error {
	if _, ok := m.app.Store.Get(id); !ok {
		return domain.ErrNotFound
	}

	m.mu.Lock()
	u, running := m.active[id]
	m.mu.Unlock()
	if !running {
		return domain.ErrNotActive
	}

	if !u.cancelled.CompareAndSwap(false, true) {
		return domain.ErrNotActive
	}
	u.cancel()
	return nil
}

func (m *Manager) Get(id string) (*domain.Task, error) {
	t, ok := m.app.Store.Get(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *Manager) All() []*domain.Task {
	return m.app.Store.All()
}

func (m *Manager) Active() []*domain.Task {
	return m.app.Store.Active()
}

// Delete removes a task the caller no longer wants. Running tasks must be
// cancelled first.
func (m *Manager) Delete(id string) error {
	if _, ok := m.app.Store.Get(id); !ok {
		return domain.ErrNotFound
	}

	m.mu.Lock()
	_, running := m.active[id]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("cannot delete a running task, cancel it first")
	}

	m.app.Store.Remove(id)
	m.app.Notifier.Drop(id)
	return nil
}

func (m *Manager) Subscribe(id string, obs notify.Observer) error {
	if _, ok := m.app.Store.Get(id); !ok {
		return domain.ErrNotFound
	}
	m.app.Notifier.Subscribe(id, obs)
	return nil
}

func (m *Manager) Unsubscribe(id string, obs notify.Observer) {
	m.app.Notifier.Unsubscribe(id, obs)
}

// Sweep evicts terminal tasks completed more than maxAge ago, along with
// their subscriber sets. Returns the number of evicted tasks.
func (m *Manager) Sweep(maxAge time.Duration) int {
	removed := m.app.Store.SweepTerminal(maxAge, time.Now())
	for _, id := range removed {
		m.app.Notifier.Drop(id)
	}
	if len(removed) > 0 {
		m.app.Logger.Info("Reaped %d finished tasks", len(removed))
	}
	return len(removed)
}

// RunReaper sweeps periodically until ctx is cancelled.
func (m *Manager) RunReaper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(maxAge)
		}
	}
}

// Shutdown cancels every running unit and waits for them to stop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	units := make([]*unit, 0, len(m.active))
	for _, u := range m.active {
		units = append(units, u)
	}
	m.mu.Unlock()

	for _, u := range units {
		u.cancelled.Store(true)
		u.cancel()
	}
	for _, u := range units {
		<-u.done
	}
}

// run drives one task from admission to a terminal status. The concurrency
// slot is released unconditionally, error path included.
func (m *Manager) run(ctx context.Context, t *domain.Task, u *unit) {
	defer close(u.done)
	defer func() {
		m.mu.Lock()
		delete(m.active, t.ID)
		m.mu.Unlock()
	}()
	defer u.cancel()

	err := m.execute(ctx, t)
	m.finalize(t, err)
}

func (m *Manager) execute(ctx context.Context, t *domain.Task) error {
	selected, err := format.Select(t.Formats, t.Quality)
	if err != nil {
		return err
	}

	if err := m.fetcher.Fetch(ctx, t, selected); err != nil {
		return err
	}

	if t.PostProcessing != domain.PostProcessNone {
		if err := t.SetStatus(domain.StatusProcessing); err != nil {
			return err
		}
		m.app.Notifier.Publish(t.ID, t.Progress())

		if perr := m.post.Run(ctx, t); perr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Best-effort: the fetched file is still the deliverable.
			m.app.Logger.Warn("Post-processing failed for %s: %v", t.ID, perr)
		}
	}
	return nil
}

// finalize maps the unit's outcome onto a terminal status and records it.
func (m *Manager) finalize(t *domain.Task, err error) {
	switch {
	case err == nil:
		_ = t.UpdateProgress(func(p *domain.Progress) {
			p.Percentage = 100
		})
		if serr := t.SetStatus(domain.StatusCompleted); serr != nil {
			m.app.Logger.Error("Could not complete %s: %v", t.ID, serr)
		} else {
			m.app.Logger.Info("Completed: %s (%s)", t.Title, t.ID)
		}
	case errors.Is(err, context.Canceled):
		// Cancellation is not a task failure: no error message kept.
		_ = t.SetStatus(domain.StatusCancelled)
		m.app.Logger.Info("Cancelled: %s", t.ID)
	default:
		_ = t.Fail(err.Error())
		m.app.Logger.Error("Failed %s: %v", t.ID, err)
	}

	m.app.Notifier.Publish(t.ID, t.Progress())

	if m.app.History != nil {
		if herr := m.app.History.Record(t); herr != nil {
			m.app.Logger.Warn("Failed to record history for %s: %v", t.ID, herr)
		}
	}
}

// deriveFilename builds a safe output filename from the display title and
// the post-processing kind, falling back to the first format's container.
func deriveFilename(title string, kind domain.PostProcessingKind, formats []domain.FormatDescriptor) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	if runes := []rune(name); len(runes) > 50 {
		name = strings.TrimSpace(string(runes[:50]))
	}
	if name == "" {
		name = "media"
	}

	var ext string
	switch kind {
	case domain.PostProcessAudio:
		ext = "mp3"
	case domain.PostProcessMP4:
		ext = "mp4"
	default:
		if len(formats) > 0 && formats[0].Ext != "" {
			ext = formats[0].Ext
		} else {
			ext = "mp4"
		}
	}

	return name + "." + ext
}

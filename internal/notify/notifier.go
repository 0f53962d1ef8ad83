// Package notify decouples task execution from however progress is
// transported outward. Observers are registered per task id and receive
// snapshots in the order the unit of work produced them.
package notify

import (
	"sync"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// Observer receives progress snapshots for one task. Implementations must be
// safe to call from the task's unit of work; a panicking observer is dropped
// from that publish but never affects the publisher or other observers.
// Observers are tracked by identity, so a subscribed value must be comparable.
type Observer interface {
	Notify(p domain.Progress)
}

// ObserverFunc adapts a plain function to the Observer contract. Subscribe its
// address, not the bare func value: func values have no identity to
// unsubscribe by.
type ObserverFunc func(p domain.Progress)

func (f ObserverFunc) Notify(p domain.Progress) { f(p) }

type Notifier struct {
	mu   sync.RWMutex
	subs map[string][]Observer
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string][]Observer)}
}

func (n *Notifier) Subscribe(taskID string, obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs[taskID] = append(n.subs[taskID], obs)
}

func (n *Notifier) Unsubscribe(taskID string, obs Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	list := n.subs[taskID]
	for i, o := range list {
		if o == obs {
			n.subs[taskID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(n.subs[taskID]) == 0 {
		delete(n.subs, taskID)
	}
}

// Publish delivers p to every observer currently subscribed for the task.
// Delivery is synchronous so per-task ordering follows production order.
func (n *Notifier) Publish(taskID string, p domain.Progress) {
	n.mu.RLock()
	list := make([]Observer, len(n.subs[taskID]))
	copy(list, n.subs[taskID])
	n.mu.RUnlock()

	for _, obs := range list {
		deliver(obs, p)
	}
}

// Drop removes the whole subscriber set for a task. Used by the reaper.
func (n *Notifier) Drop(taskID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, taskID)
}

// SubscriberCount is used by status queries and tests.
func (n *Notifier) SubscriberCount(taskID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[taskID])
}

func deliver(obs Observer, p domain.Progress) {
	defer func() {
		// A failing observer must not abort the task or starve its peers.
		_ = recover()
	}()
	obs.Notify(p)
}

package notify

import (
	"testing"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// recorder keeps every snapshot it receives; ObserverFunc closures over the
// same slice would be indistinguishable to Unsubscribe, a distinct pointer
// type is not.
type recorder struct {
	got []domain.Progress
}

func (r *recorder) Notify(p domain.Progress) { r.got = append(r.got, p) }

func TestPublishPreservesOrder(t *testing.T) {
	n := NewNotifier()
	rec := &recorder{}
	n.Subscribe("t1", rec)

	for i := 1; i <= 5; i++ {
		n.Publish("t1", domain.Progress{Percentage: float64(i * 20)})
	}

	if len(rec.got) != 5 {
		t.Fatalf("received %d snapshots, want 5", len(rec.got))
	}
	for i, p := range rec.got {
		if want := float64((i + 1) * 20); p.Percentage != want {
			t.Errorf("snapshot %d percentage = %v, want %v", i, p.Percentage, want)
		}
	}
}

func TestPublishIsScopedToTask(t *testing.T) {
	n := NewNotifier()
	rec := &recorder{}
	n.Subscribe("t1", rec)

	n.Publish("t2", domain.Progress{Percentage: 50})

	if len(rec.got) != 0 {
		t.Errorf("observer for t1 received t2's snapshot")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier()
	kept := &recorder{}
	removed := &recorder{}
	n.Subscribe("t1", kept)
	n.Subscribe("t1", removed)

	n.Unsubscribe("t1", removed)
	n.Publish("t1", domain.Progress{Percentage: 10})

	if len(removed.got) != 0 {
		t.Error("unsubscribed observer still received a snapshot")
	}
	if len(kept.got) != 1 {
		t.Errorf("remaining observer received %d snapshots, want 1", len(kept.got))
	}
	if n.SubscriberCount("t1") != 1 {
		t.Errorf("subscriber count = %d, want 1", n.SubscriberCount("t1"))
	}
}

func TestPanickingObserverIsIsolated(t *testing.T) {
	n := NewNotifier()
	rec := &recorder{}

	panicky := ObserverFunc(func(domain.Progress) { panic("boom") })
	n.Subscribe("t1", &panicky)
	n.Subscribe("t1", rec)

	n.Publish("t1", domain.Progress{Percentage: 42})

	if len(rec.got) != 1 || rec.got[0].Percentage != 42 {
		t.Errorf("healthy observer starved by a panicking peer: %+v", rec.got)
	}
}

func TestDropClearsSubscribers(t *testing.T) {
	n := NewNotifier()
	rec := &recorder{}
	n.Subscribe("t1", rec)
	n.Subscribe("t1", &recorder{})

	n.Drop("t1")

	if n.SubscriberCount("t1") != 0 {
		t.Errorf("subscriber count after Drop = %d", n.SubscriberCount("t1"))
	}
	n.Publish("t1", domain.Progress{})
	if len(rec.got) != 0 {
		t.Error("dropped observer still received a snapshot")
	}
}

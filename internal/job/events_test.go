package job

import (
	"testing"
)

func TestEventBus_PublishAssignsSequence(t *testing.T) {
	bus := NewEventBus(10)

	e1 := bus.Publish(Event{JobID: "a", Type: EventTypeStatus, Status: StatusProcessing})
	e2 := bus.Publish(Event{JobID: "a", Type: EventTypeProgress, Progress: 40})

	if e1.Seq != 1 || e2.Seq != 2 {
		t.Errorf("expected seq 1,2 got %d,%d", e1.Seq, e2.Seq)
	}
	if e1.Timestamp.IsZero() {
		t.Error("expected timestamp assigned")
	}
}

func TestEventBus_Since(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{JobID: "a"})
	bus.Publish(Event{JobID: "b"})
	bus.Publish(Event{JobID: "c"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].JobID != "b" {
		t.Errorf("expected b first, got %s", events[0].JobID)
	}
}

func TestEventBus_Bounded(t *testing.T) {
	bus := NewEventBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{JobID: "a"})
	}

	events := bus.Since(0)
	if len(events) != 3 {
		t.Errorf("expected buffer capped at 3, got %d", len(events))
	}
	if events[0].Seq != 3 {
		t.Errorf("expected oldest seq 3, got %d", events[0].Seq)
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(10)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Event{JobID: "a", Type: EventTypeProgress, Progress: 10})

	select {
	case e := <-ch:
		if e.JobID != "a" {
			t.Errorf("expected a, got %s", e.JobID)
		}
	default:
		t.Fatal("expected event delivered")
	}

	cancel()
	bus.Publish(Event{JobID: "b"})
	select {
	case e, ok := <-ch:
		if ok && e.JobID == "b" {
			t.Error("expected no delivery after cancel")
		}
	default:
	}
}

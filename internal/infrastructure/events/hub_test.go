package events

import (
	"testing"

	"github.com/taskmaster/agenda/internal/ports"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Publish(ports.Event{Kind: ports.EventChange, Collection: "tasks", Op: "save"})

	for _, ch := range []chan ports.Event{a, b} {
		select {
		case e := <-ch:
			if e.Collection != "tasks" || e.Kind != ports.EventChange {
				t.Errorf("unexpected event %+v", e)
			}
			if e.At.IsZero() {
				t.Error("expected publish time to be stamped")
			}
		default:
			t.Fatal("expected an event on every subscriber")
		}
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(ports.Event{Kind: ports.EventTick})
	}

	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
	if hub.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", hub.Dropped())
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", hub.Subscribers())
	}

	// publishing with no subscribers must not panic
	hub.Publish(ports.Event{Kind: ports.EventNotice})
}

package realtime

import (
	"testing"
	"time"
)

func TestPublishAndSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("exchanges")
	defer sub.Close()

	hub.Publish(Event{Table: "exchanges", Type: EventInsert, Record: "payload"})

	select {
	case event := <-sub.C:
		if event.Type != EventInsert {
			t.Errorf("Expected INSERT, got %s", event.Type)
		}
		if event.Record != "payload" {
			t.Errorf("Unexpected record %v", event.Record)
		}
		if event.At.IsZero() {
			t.Error("Expected event timestamp to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestSubscribe_TypeFilter(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	inserts := hub.Subscribe("exchanges", EventInsert)
	defer inserts.Close()

	hub.Publish(Event{Table: "exchanges", Type: EventUpdate})
	hub.Publish(Event{Table: "exchanges", Type: EventInsert})

	select {
	case event := <-inserts.C:
		if event.Type != EventInsert {
			t.Errorf("Expected filtered subscription to only see inserts, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for insert event")
	}

	select {
	case event := <-inserts.C:
		t.Errorf("Expected no further events, got %s", event.Type)
	default:
	}
}

func TestSubscribe_TableFilter(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	exchanges := hub.Subscribe("exchanges")
	defer exchanges.Close()

	hub.Publish(Event{Table: "profiles", Type: EventUpdate})

	select {
	case event := <-exchanges.C:
		t.Errorf("Expected no cross-table delivery, got %s on %s", event.Type, event.Table)
	default:
	}
}

func TestPublish_DropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("exchanges")
	defer sub.Close()

	// Never read: the buffer fills and further publishes must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			hub.Publish(Event{Table: "exchanges", Type: EventUpdate})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if len(sub.C) != subscriptionBuffer {
		t.Errorf("Expected a full buffer of %d events, got %d", subscriptionBuffer, len(sub.C))
	}
}

func TestSubscriptionClose_StopsDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe("exchanges")
	sub.Close()

	// Publishing after close must not panic.
	hub.Publish(Event{Table: "exchanges", Type: EventInsert})

	if _, ok := <-sub.C; ok {
		t.Error("Expected closed subscription channel")
	}
}

func TestHubClose_ClosesSubscribers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("exchanges")

	hub.Close()

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("Expected channel closed after hub close")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for channel close")
	}

	// Publish and a second Close after shutdown must be safe no-ops.
	hub.Publish(Event{Table: "exchanges", Type: EventInsert})
	sub.Close()
}

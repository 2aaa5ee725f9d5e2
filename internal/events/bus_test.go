package events

import (
	"testing"
	"time"
)

// TestBus_TopicDelivery verifies events reach subscribers of their topic
// and not subscribers of other topics.
func TestBus_TopicDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	taskSub := bus.Subscribe(TopicTask, 10)
	teamSub := bus.Subscribe(TopicTeam, 10)

	bus.Publish(TopicTask, TaskUpdatedEvent{ID: "t1", Status: "inProgress", Timestamp: time.Now()})

	select {
	case ev := <-taskSub.C:
		if ev.TaskID() != "t1" {
			t.Errorf("TaskID = %q, want t1", ev.TaskID())
		}
	case <-time.After(time.Second):
		t.Fatal("task subscriber did not receive event")
	}

	select {
	case ev := <-teamSub.C:
		t.Errorf("team subscriber received unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestBus_SubscribeAll verifies all-topic subscribers see every topic.
func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.SubscribeAll(10)

	bus.Publish(TopicTask, TaskUpdatedEvent{ID: "t1", Timestamp: time.Now()})
	bus.Publish(TopicTeam, TeamSpawnedEvent{CommanderID: "c1", Timestamp: time.Now()})

	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.C:
			types[ev.EventType()] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	if !types[EventTypeTaskUpdated] || !types[EventTypeTeamSpawned] {
		t.Errorf("Expected both event types, got %v", types)
	}
}

// TestBus_Unsubscribe verifies an unsubscribed channel is closed and
// receives nothing further.
func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicTask, 10)
	sub.Unsubscribe()

	bus.Publish(TopicTask, TaskUpdatedEvent{ID: "t1", Timestamp: time.Now()})

	if _, open := <-sub.C; open {
		t.Error("Expected closed channel after Unsubscribe")
	}

	// Must be safe to call again.
	sub.Unsubscribe()
}

// TestBus_FullSubscriberDropsEvent verifies publishing never blocks on a
// saturated subscriber.
func TestBus_FullSubscriberDropsEvent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(TopicTask, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(TopicTask, TaskUpdatedEvent{ID: "t1", Timestamp: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on full subscriber")
	}

	// Exactly one event fits the buffer.
	if ev := <-sub.C; ev.TaskID() != "t1" {
		t.Errorf("Unexpected event: %+v", ev)
	}
}

// TestBus_CloseIdempotent verifies Close can be called repeatedly and
// closes subscriber channels.
func TestBus_CloseIdempotent(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(TopicTask, 1)

	bus.Close()
	bus.Close()

	if _, open := <-sub.C; open {
		t.Error("Expected closed subscriber channel after bus Close")
	}

	// Publishing after close is a no-op.
	bus.Publish(TopicTask, TaskUpdatedEvent{ID: "t1", Timestamp: time.Now()})

	// Subscribing after close returns a closed channel.
	late := bus.Subscribe(TopicTask, 1)
	if _, open := <-late.C; open {
		t.Error("Expected closed channel for post-close subscription")
	}
}

package events

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicRelayState)
	defer unsubscribe()

	bus.Publish(TopicRelayState, "connected")
	bus.Publish(TopicChatEvent, "ignored")

	select {
	case got := <-ch:
		if got != "connected" {
			t.Fatalf("payload = %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no payload delivered")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected payload %v", got)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe(TopicChatEvent)
	defer unsubscribe()

	for i := 0; i < defaultBufferSize+5; i++ {
		bus.Publish(TopicChatEvent, i)
	}
	if got := bus.Drops(TopicChatEvent); got != 5 {
		t.Fatalf("drops = %d, want 5", got)
	}
}

func TestBusUnsubscribeAndClose(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicSourceState)
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}

	other, _ := bus.Subscribe(TopicSourceState)
	bus.Close()
	if _, ok := <-other; ok {
		t.Fatal("channel should be closed after Close")
	}
	bus.Publish(TopicSourceState, true)

	late, _ := bus.Subscribe(TopicSourceState)
	if _, ok := <-late; ok {
		t.Fatal("subscribe after Close should return a closed channel")
	}
}

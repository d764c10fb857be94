package eventbus

import (
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return evt
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe(TopicConversationOutcome)

	bus.Publish(TopicConversationOutcome, "answered")

	evt := receive(t, ch)
	if evt.Topic != TopicConversationOutcome || evt.Payload != "answered" {
		t.Errorf("event = %+v", evt)
	}
}

func TestBus_MultipleSubscribers_AllReceive(t *testing.T) {
	t.Parallel()
	bus := New()
	ch1 := bus.Subscribe("multi")
	ch2 := bus.Subscribe("multi")

	bus.Publish("multi", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		if evt := receive(t, ch); evt.Payload != 42 {
			t.Errorf("subscriber %d: payload = %v", i, evt.Payload)
		}
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	t.Parallel()
	bus := New()
	chA := bus.Subscribe("a")
	chB := bus.Subscribe("b")

	bus.Publish("a", "for-a")
	receive(t, chA)

	select {
	case evt := <-chB:
		t.Errorf("topic b received %v", evt)
	default:
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	t.Parallel()
	bus := NewWithBuffer(2)
	_ = bus.Subscribe("overflow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Publish("overflow", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked on a full buffer")
	}
	if got := bus.Dropped(); got != 3 {
		t.Errorf("Dropped = %d; want 3", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe("t")
	keep := bus.Subscribe("t")

	bus.Unsubscribe("t", ch)
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}

	bus.Publish("t", "x")
	receive(t, keep)
	bus.Unsubscribe("t", ch) // second call is a no-op
}

func TestBus_Close(t *testing.T) {
	t.Parallel()
	bus := New()
	ch := bus.Subscribe("t")

	bus.Close()
	bus.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}
	bus.Publish("t", "ignored")

	late := bus.Subscribe("t")
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestNewWithBuffer_NonPositiveUsesDefault(t *testing.T) {
	t.Parallel()
	if b := NewWithBuffer(0); b.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d", b.bufferSize)
	}
}

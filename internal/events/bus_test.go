package events

import "testing"

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventDeckPlay)

	b.Publish(EventDeckPlay, Payload{"deck": "a"})

	select {
	case got := <-sub:
		if got["deck"] != "a" {
			t.Fatalf("unexpected payload: %v", got)
		}
	default:
		t.Fatal("expected payload to be delivered")
	}
}

func TestBus_PublishDoesNotLeakAcrossEventTypes(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventDeckPlay)

	b.Publish(EventDeckPause, Payload{"deck": "a"})

	select {
	case got := <-sub:
		t.Fatalf("unexpected delivery for unsubscribed event type: %v", got)
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventDeckPlay)
	b.Unsubscribe(EventDeckPlay, sub)

	_, ok := <-sub
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestBus_PublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventDeckPlay)
	for i := 0; i < 100; i++ {
		b.Publish(EventDeckPlay, Payload{"i": i})
	}
	// A slow/absent consumer must never stall the publisher.
	_ = sub
}

package eventbus

import (
	"testing"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/rs/zerolog"
)

func TestNewRedisBus_EmptyAddrDisablesDistributedTransport(t *testing.T) {
	bus, err := NewRedisBus("", DefaultRedisConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer bus.Close()

	if bus.IsAvailable() {
		t.Fatal("expected distributed transport to be unavailable with empty addr")
	}
}

func TestNewRedisBus_UnreachableAddrDegradesGracefully(t *testing.T) {
	bus, err := NewRedisBus("127.0.0.1:1", DefaultRedisConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus should degrade rather than error, got: %v", err)
	}
	defer bus.Close()

	if bus.IsAvailable() {
		t.Fatal("expected distributed transport to be unavailable for unreachable redis")
	}
}

func TestRedisBus_PublishDeliversLocallyEvenWhenDisabled(t *testing.T) {
	bus, err := NewRedisBus("", DefaultRedisConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer bus.Close()

	sub := bus.Subscribe(events.EventDeckPlay)
	bus.Publish(events.EventDeckPlay, events.Payload{"deck": "a"})

	select {
	case got := <-sub:
		if got["deck"] != "a" {
			t.Fatalf("unexpected payload: %v", got)
		}
	default:
		t.Fatal("expected local delivery even without a distributed transport")
	}
}

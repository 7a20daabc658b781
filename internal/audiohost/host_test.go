package audiohost

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInitializeRequiresUserActivation(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	if err := h.Initialize(false); err != ErrUserActivationRequired {
		t.Fatalf("Initialize(false) = %v, want ErrUserActivationRequired", err)
	}
	if h.IsReady() {
		t.Fatal("host reported ready after a rejected activation")
	}
}

func TestInitializeSucceedsWhenActivated(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	defer h.Dispose()
	if err := h.Initialize(true); err != nil {
		t.Fatalf("Initialize(true) = %v, want nil", err)
	}
	if !h.IsReady() {
		t.Fatal("host not ready after successful Initialize")
	}
}

func TestSecondInitializeInReadyIsNoop(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	defer h.Dispose()
	if err := h.Initialize(true); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := h.Initialize(true); err != nil {
		t.Fatalf("second Initialize in Ready = %v, want nil", err)
	}
}

func TestNodeFactoriesFailBeforeInitialize(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	if _, err := h.CreateGain(); err != ErrNotReady {
		t.Fatalf("CreateGain before ready = %v, want ErrNotReady", err)
	}
	if _, err := h.CreateCrossfader(); err != ErrNotReady {
		t.Fatalf("CreateCrossfader before ready = %v, want ErrNotReady", err)
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	if err := h.Initialize(true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	h.Dispose()
	h.Dispose()
	if _, err := h.CreateGain(); err != ErrDisposed {
		t.Fatalf("CreateGain after dispose = %v, want ErrDisposed", err)
	}
}

func TestCreateLimiterAfterReady(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	defer h.Dispose()
	if err := h.Initialize(true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := h.CreateLimiter(); err != nil {
		t.Fatalf("CreateLimiter: %v", err)
	}
	if stats := h.Stats(); stats.ActiveNodes != 1 {
		t.Fatalf("active nodes = %d, want 1", stats.ActiveNodes)
	}
}

func TestCreateDelayAndReverbAfterReady(t *testing.T) {
	h := New(48000, 128, zerolog.Nop())
	defer h.Dispose()
	if err := h.Initialize(true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := h.CreateDelay(); err != nil {
		t.Fatalf("CreateDelay: %v", err)
	}
	if _, err := h.CreateReverb(); err != nil {
		t.Fatalf("CreateReverb: %v", err)
	}
	if stats := h.Stats(); stats.ActiveNodes != 2 {
		t.Fatalf("active nodes = %d, want 2", stats.ActiveNodes)
	}
}

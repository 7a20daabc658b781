package session

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
)

func newReadySession(t *testing.T) *Session {
	t.Helper()
	s := New(48000, 128, events.NewBus(), zerolog.Nop())
	if err := s.Initialize(true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(s.Dispose)
	return s
}

func testBundle(frames int) *models.StemBundle {
	buf := make([]float32, frames)
	return &models.StemBundle{
		SampleRate: 48000,
		Channels:   1,
		Frames:     frames,
		Drums:      append([]float32{}, buf...),
		Bass:       append([]float32{}, buf...),
		Melody:     append([]float32{}, buf...),
		Vocals:     append([]float32{}, buf...),
		Original:   append([]float32{}, buf...),
	}
}

func TestInitializeRequiresUserActivation(t *testing.T) {
	s := New(48000, 128, events.NewBus(), zerolog.Nop())
	defer s.Dispose()
	if err := s.Initialize(false); err != ErrUserActivationRequired {
		t.Fatalf("Initialize(false) = %v, want ErrUserActivationRequired", err)
	}
	if s.State() != StateUninitialized {
		t.Fatalf("state = %v, want Uninitialized", s.State())
	}
}

func TestInitializeReachesReadyAndCreatesBothDecks(t *testing.T) {
	s := newReadySession(t)
	if s.State() != StateReady {
		t.Fatalf("state = %v, want Ready", s.State())
	}
	if s.Deck(models.DeckA) == nil || s.Deck(models.DeckB) == nil {
		t.Fatal("expected both decks to be constructed")
	}
}

func TestSecondInitializeIsNoop(t *testing.T) {
	s := newReadySession(t)
	if err := s.Initialize(true); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestSyncRequiresBothBPMs(t *testing.T) {
	s := newReadySession(t)
	bpm := 120.0
	if err := s.Deck(models.DeckA).Load(&models.Track{ID: "a", BPM: &bpm}, testBundle(48000)); err != nil {
		t.Fatalf("Load A: %v", err)
	}
	if err := s.Deck(models.DeckB).Load(&models.Track{ID: "b"}, testBundle(48000)); err != nil {
		t.Fatalf("Load B: %v", err)
	}
	if err := s.Sync(models.DeckA); err != ErrMissingBPM {
		t.Fatalf("Sync without slave BPM = %v, want ErrMissingBPM", err)
	}
	if s.SyncState().Engaged {
		t.Fatal("expected sync to remain disengaged")
	}
}

func TestSyncEngagesAndComputesSlavePitch(t *testing.T) {
	s := newReadySession(t)
	masterBPM := 124.0
	slaveBPM := 120.0
	if err := s.Deck(models.DeckA).Load(&models.Track{ID: "a", BPM: &masterBPM}, testBundle(48000)); err != nil {
		t.Fatalf("Load A: %v", err)
	}
	if err := s.Deck(models.DeckB).Load(&models.Track{ID: "b", BPM: &slaveBPM}, testBundle(48000)); err != nil {
		t.Fatalf("Load B: %v", err)
	}
	if err := s.Sync(models.DeckA); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	sync := s.SyncState()
	if !sync.Engaged || sync.Master != models.DeckA || sync.Slave != models.DeckB {
		t.Fatalf("sync state = %+v, want engaged master=A slave=B", sync)
	}
	wantPitch := (124.0/120.0 - 1) * 100
	if got := s.Deck(models.DeckB).Pitch(); got < wantPitch-0.01 || got > wantPitch+0.01 {
		t.Fatalf("slave pitch = %v, want %v", got, wantPitch)
	}
	if s.Deck(models.DeckA).SyncRole() != models.SyncRoleMaster {
		t.Fatalf("master role = %v, want master", s.Deck(models.DeckA).SyncRole())
	}
}

func TestDirectSlavePitchChangeDisengagesSync(t *testing.T) {
	s := newReadySession(t)
	masterBPM := 130.0
	slaveBPM := 120.0
	if err := s.Deck(models.DeckA).Load(&models.Track{ID: "a", BPM: &masterBPM}, testBundle(48000)); err != nil {
		t.Fatalf("Load A: %v", err)
	}
	if err := s.Deck(models.DeckB).Load(&models.Track{ID: "b", BPM: &slaveBPM}, testBundle(48000)); err != nil {
		t.Fatalf("Load B: %v", err)
	}
	if err := s.Sync(models.DeckA); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := s.SetDeckPitch(models.DeckB, 3); err != nil {
		t.Fatalf("SetDeckPitch: %v", err)
	}
	if s.SyncState().Engaged {
		t.Fatal("expected direct slave pitch change to disengage sync")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	s := newReadySession(t)
	if err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := s.StartRecording(); err != nil {
		t.Fatalf("second StartRecording should be idempotent: %v", err)
	}
	s.TapRecorder([]float32{0.1, 0.2, 0.3})
	samples, err := s.StopRecording()
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("captured %d samples, want 3", len(samples))
	}
	empty, err := s.StopRecording()
	if err != nil {
		t.Fatalf("second StopRecording = %v, want nil", err)
	}
	if len(empty) != 0 {
		t.Fatalf("second StopRecording returned %d samples, want 0", len(empty))
	}
}

func TestCrossfaderGainsAndMixerState(t *testing.T) {
	s := newReadySession(t)
	if err := s.SetCrossfader(0.0); err != nil {
		t.Fatalf("SetCrossfader: %v", err)
	}
	gainA, gainB := s.CrossfaderGains()
	if gainA < 0.99 || gainB > 0.01 {
		t.Fatalf("gains at position 0 = (%v,%v), want fully on side A", gainA, gainB)
	}
	if s.MixerState().Crossfader != 0.0 {
		t.Fatalf("mixer state crossfader = %v, want 0", s.MixerState().Crossfader)
	}
}

func TestOperationsBeforeReadyFail(t *testing.T) {
	s := New(48000, 128, events.NewBus(), zerolog.Nop())
	defer s.Dispose()
	if err := s.SetCrossfader(0.5); err != ErrNotReady {
		t.Fatalf("SetCrossfader before ready = %v, want ErrNotReady", err)
	}
}

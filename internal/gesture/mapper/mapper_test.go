package mapper

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
)

// fakeDispatcher records every call the mapper makes so tests can assert
// on dispatched sequences without a real session coordinator.
type fakeDispatcher struct {
	volumes    []float64
	muted      []bool
	soloed     []bool
	crossfader []float64
	master     []float64
}

func (f *fakeDispatcher) SetStemVolume(_ models.DeckID, _ models.StemID, v float64) error {
	f.volumes = append(f.volumes, v)
	return nil
}
func (f *fakeDispatcher) SetStemMute(_ models.DeckID, _ models.StemID, muted bool) error {
	f.muted = append(f.muted, muted)
	return nil
}
func (f *fakeDispatcher) SetStemSolo(_ models.DeckID, _ models.StemID, soloed bool) error {
	f.soloed = append(f.soloed, soloed)
	return nil
}
func (f *fakeDispatcher) SetStemPan(_ models.DeckID, _ models.StemID, _ float64) error { return nil }
func (f *fakeDispatcher) SetStemEQ(_ models.DeckID, _ models.StemID, _ int, _ float64) error {
	return nil
}
func (f *fakeDispatcher) SetVolume(_ models.DeckID, _ float64) error { return nil }
func (f *fakeDispatcher) SetMasterVolume(v float64) error {
	f.master = append(f.master, v)
	return nil
}
func (f *fakeDispatcher) SetCrossfader(p float64) error {
	f.crossfader = append(f.crossfader, p)
	return nil
}
func (f *fakeDispatcher) SetFilter(_ models.DeckID, _ models.FilterParams) error { return nil }
func (f *fakeDispatcher) Cue(_ models.DeckID, _ int) error                      { return nil }
func (f *fakeDispatcher) SetEffectSend(_ models.DeckID, _ string, _ float64) error {
	return nil
}

func pinchResult(distance float64) models.GestureResult {
	return models.GestureResult{
		Class:      models.GesturePinch,
		Hand:       models.HandRight,
		Confidence: 0.9,
		Payload:    map[string]float64{"distance": distance},
		Timestamp:  time.Now(),
	}
}

// TestPinchToVolume_Monotonic exercises spec.md §8 scenario 5: a pinch
// sequence of decreasing distances should dispatch a monotonically
// nonincreasing sequence of volumes.
func TestPinchToVolume_Monotonic(t *testing.T) {
	disp := &fakeDispatcher{}
	profile := models.MappingProfile{
		ID: "test",
		Mappings: []models.GestureMappingYAML{{
			ID: "m1", Gesture: "pinch", HandRequirement: "right",
			Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
			Sensitivity: 1.0, Deadzone: 0.05, Smoothing: 0.2, Priority: 1, Enabled: true,
		}},
	}
	m := New(disp, nil, profile, zerolog.Nop())

	distances := []float64{0.50, 0.50, 0.48, 0.20, 0.05}
	for _, d := range distances {
		m.Process([]models.GestureResult{pinchResult(d)})
	}

	if len(disp.volumes) == 0 {
		t.Fatal("expected at least one dispatched volume")
	}
	for i := 1; i < len(disp.volumes); i++ {
		if disp.volumes[i] > disp.volumes[i-1]+1e-9 {
			t.Fatalf("dispatched volumes not nonincreasing: %v", disp.volumes)
		}
	}
	last := disp.volumes[len(disp.volumes)-1]
	if last < 0 || last > 1 {
		t.Fatalf("dispatched volume %v out of [0,1]", last)
	}
	if last > 0.2 {
		t.Fatalf("expected final volume to trend toward the final pinch distance, got %v", last)
	}
}

func TestMapperIdempotence_ChangeThreshold(t *testing.T) {
	disp := &fakeDispatcher{}
	profile := models.MappingProfile{
		Mappings: []models.GestureMappingYAML{{
			ID: "m1", Gesture: "pinch", HandRequirement: "right",
			Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
			Sensitivity: 1.0, Deadzone: 0, Smoothing: 0, Priority: 1, Enabled: true,
		}},
	}
	m := New(disp, nil, profile, zerolog.Nop())

	m.Process([]models.GestureResult{pinchResult(0.5)})
	m.Process([]models.GestureResult{pinchResult(0.5)})
	m.Process([]models.GestureResult{pinchResult(0.5)})

	if len(disp.volumes) != 1 {
		t.Fatalf("expected exactly one dispatch for repeated identical raw values, got %d: %v", len(disp.volumes), disp.volumes)
	}
}

func TestMapperPriority_HighestWins(t *testing.T) {
	disp := &fakeDispatcher{}
	profile := models.MappingProfile{
		Mappings: []models.GestureMappingYAML{
			{
				ID: "low", Gesture: "pinch", HandRequirement: "right",
				Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0, Smoothing: 0, Priority: 1, Enabled: true,
			},
			{
				ID: "high", Gesture: "pinch", HandRequirement: "right",
				Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
				Sensitivity: 2.0, Deadzone: 0, Smoothing: 0, Priority: 5, Enabled: true,
			},
		},
	}
	m := New(disp, nil, profile, zerolog.Nop())
	m.Process([]models.GestureResult{pinchResult(0.3)})

	if len(disp.volumes) != 1 {
		t.Fatalf("expected exactly one dispatch (highest priority wins per target), got %d", len(disp.volumes))
	}
	if disp.volumes[0] != 0.6 {
		t.Fatalf("expected the higher-priority mapping's sensitivity to apply (0.3*2=0.6), got %v", disp.volumes[0])
	}
}

func TestToggleMapping_FlipsOncePerRisingEdge(t *testing.T) {
	disp := &fakeDispatcher{}
	profile := models.MappingProfile{
		Mappings: []models.GestureMappingYAML{{
			ID: "fist-mute", Gesture: "fist", HandRequirement: "right",
			Kind: "mute", Deck: "a", Stem: "drums", Mode: "toggle",
			Sensitivity: 1.0, Priority: 1, Enabled: true,
		}},
	}
	m := New(disp, nil, profile, zerolog.Nop())
	fist := models.GestureResult{Class: models.GestureFist, Hand: models.HandRight, Confidence: 1.0, Timestamp: time.Now()}

	// Held for 3 frames: should only flip once.
	m.Process([]models.GestureResult{fist})
	m.Process([]models.GestureResult{fist})
	m.Process([]models.GestureResult{fist})
	if len(disp.muted) != 1 || !disp.muted[0] {
		t.Fatalf("expected exactly one mute=true dispatch, got %v", disp.muted)
	}

	// Released, then re-matched: should flip again.
	m.Process(nil)
	m.Process([]models.GestureResult{fist})
	if len(disp.muted) != 2 || disp.muted[1] {
		t.Fatalf("expected a second dispatch toggling mute back off, got %v", disp.muted)
	}
}

func TestDispatchError_PublishesMappingError(t *testing.T) {
	disp := &erroringDispatcher{fakeDispatcher: &fakeDispatcher{}}
	profile := models.MappingProfile{
		Mappings: []models.GestureMappingYAML{{
			ID: "m1", Gesture: "pinch", HandRequirement: "right",
			Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
			Sensitivity: 1.0, Priority: 1, Enabled: true,
		}},
	}
	bus := events.NewBus()
	errs := bus.Subscribe(events.EventMappingError)
	m := New(disp, bus, profile, zerolog.Nop())
	m.Process([]models.GestureResult{pinchResult(0.3)})
	// No panic, no crash: error path is silent from the caller's
	// perspective (spec.md §7: validation errors surface as events, not
	// failures of the frame that triggered them).
	select {
	case payload := <-errs:
		if payload["mapping"] != "m1" {
			t.Fatalf("mapping error payload = %v, want mapping m1", payload)
		}
	default:
		t.Fatal("expected a mapping:error event for the failed dispatch")
	}
}

type erroringDispatcher struct {
	*fakeDispatcher
}

func (e *erroringDispatcher) SetStemVolume(_ models.DeckID, _ models.StemID, _ float64) error {
	return errors.New("boom")
}

package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/gesture/smoother"
	"github.com/friendsincode/gesturedeck/internal/models"
)

func pinchObservation(distance float64, t time.Time) models.HandObservation {
	var obs models.HandObservation
	obs.Handedness = models.HandRight
	obs.Confidence = 0.95
	obs.CapturedAt = t
	// Thumb tip (4) and index tip (8) separated by distance on the x
	// axis reproduces the recognizer's pinch classifier (state.go).
	obs.Landmarks[4] = models.Landmark{X: 0.5, Y: 0.5, Z: 0}
	obs.Landmarks[8] = models.Landmark{X: 0.5 + distance, Y: 0.5, Z: 0}
	return obs
}

func TestPipelinePushFrameDispatchesThroughStore(t *testing.T) {
	sess, bus := newReadySession(t)
	st := New(sess, bus, zerolog.Nop())
	t.Cleanup(st.Close)

	profile := models.MappingProfile{
		Mappings: []models.GestureMappingYAML{{
			ID: "m1", Gesture: "pinch", HandRequirement: "right",
			Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
			Sensitivity: 1.0, Deadzone: 0, Smoothing: 0, Priority: 1, Enabled: true,
		}},
	}
	pl := NewPipelineFromStore(st, bus, profile, smoother.DefaultParams(), zerolog.Nop())

	base := time.Now()
	// All distances stay under the recognizer's 0.08 pinch threshold
	// (internal/gesture/recognizer/recognizer.go) so every frame
	// classifies as a held pinch with growing confidence as the fingers
	// close further.
	for i, d := range []float64{0.07, 0.06, 0.05, 0.03, 0.01} {
		obs := pinchObservation(d, base.Add(time.Duration(i*20)*time.Millisecond))
		pl.PushFrame(HandFrame{Right: &obs})
	}

	snap := st.Snapshot()
	stem := snap.Decks[models.DeckA].Stems[models.StemVocals]
	if stem.Volume >= 0.1 {
		t.Fatalf("expected the pinch sequence to have driven vocals volume down toward the final pinch distance, got %v", stem.Volume)
	}
}

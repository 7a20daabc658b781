package models

import "testing"

func TestStemControls_EffectiveGain(t *testing.T) {
	cases := []struct {
		name          string
		controls      StemControls
		anySoloInDeck bool
		want          float64
	}{
		{"plain volume", StemControls{Volume: 0.8}, false, 0.8},
		{"muted wins over volume", StemControls{Volume: 1, Muted: true}, false, 0},
		{"silenced by another stem's solo", StemControls{Volume: 1}, true, 0},
		{"soloed stem keeps its volume", StemControls{Volume: 0.6, Soloed: true}, true, 0.6},
		{"mute beats solo", StemControls{Volume: 1, Soloed: true, Muted: true}, true, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.controls.EffectiveGain(c.anySoloInDeck); got != c.want {
				t.Fatalf("EffectiveGain() = %f, want %f", got, c.want)
			}
		})
	}
}

func TestDeckID_OtherDeck(t *testing.T) {
	if DeckA.OtherDeck() != DeckB {
		t.Fatalf("expected DeckA's other deck to be DeckB")
	}
	if DeckB.OtherDeck() != DeckA {
		t.Fatalf("expected DeckB's other deck to be DeckA")
	}
}

func TestIsValidDeck(t *testing.T) {
	if !IsValidDeck(DeckA) || !IsValidDeck(DeckB) {
		t.Fatal("expected A and B to be valid decks")
	}
	if IsValidDeck("c") {
		t.Fatal("expected deck c to be invalid in the two-deck topology")
	}
}

func TestDefaultMixerState(t *testing.T) {
	m := DefaultMixerState()
	if m.Crossfader != 0.5 {
		t.Fatalf("expected centered crossfader, got %f", m.Crossfader)
	}
	if m.Curve != CurveConstantPower {
		t.Fatalf("expected constant-power default curve, got %s", m.Curve)
	}
	if !m.LimiterEnabled {
		t.Fatal("expected limiter enabled by default")
	}
}

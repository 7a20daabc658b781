package stemplayer

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/models"
)

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

func fakeClock(t *float64) clockFn {
	return func() float64 { return *t }
}

func TestLoadRejectsMisalignedBundle(t *testing.T) {
	clock := 0.0
	p := New(fakeClock(&clock), 5.0, 50, zerolog.Nop())
	bundle := testBundle(480)
	bundle.Bass = bundle.Bass[:100]
	if err := p.Load(bundle); err == nil {
		t.Fatal("expected error loading misaligned bundle")
	}
}

func TestTransportPlayPauseSeek(t *testing.T) {
	clock := 0.0
	p := New(fakeClock(&clock), 5.0, 50, zerolog.Nop())
	if err := p.Load(testBundle(48000)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	clock = 2.0
	if got := p.Position(); got < 1.9 || got > 2.1 {
		t.Fatalf("position after 2s elapsed = %v, want ~2.0", got)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock = 5.0
	if got := p.Position(); got < 1.9 || got > 2.1 {
		t.Fatalf("position while paused = %v, want ~2.0 (frozen)", got)
	}
	if err := p.Seek(-1); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got := p.Position(); got != 0 {
		t.Fatalf("seek(-1) clamped position = %v, want 0", got)
	}
}

func TestEffectiveGainSoloMutex(t *testing.T) {
	clock := 0.0
	p := New(fakeClock(&clock), 5.0, 50, zerolog.Nop())
	if err := p.Load(testBundle(48000)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.SetStemSolo(models.StemVocals, true); err != nil {
		t.Fatalf("SetStemSolo: %v", err)
	}
	if err := p.SetStemMute(models.StemDrums, true); err != nil {
		t.Fatalf("SetStemMute: %v", err)
	}
	if got := p.EffectiveStemGain(models.StemDrums); got != 0 {
		t.Fatalf("drums gain = %v, want 0 (muted)", got)
	}
	if got := p.EffectiveStemGain(models.StemBass); got != 0 {
		t.Fatalf("bass gain = %v, want 0 (non-soloed while another stem is soloed)", got)
	}
	if got := p.EffectiveStemGain(models.StemVocals); got != 1 {
		t.Fatalf("vocals gain = %v, want 1 (soloed)", got)
	}
}

func TestDriftMonitorReanchors(t *testing.T) {
	clock := 0.0
	p := New(fakeClock(&clock), 5.0, 50, zerolog.Nop())
	if err := p.Load(testBundle(48000)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	p.SimulateDrift(models.StemVocals, 0.010) // 10ms, exceeds 5ms threshold
	if p.checkDrift() != true {
		t.Fatal("expected checkDrift to report a re-anchor")
	}
	if p.MaxPairwiseDriftMS() > 0.001 {
		t.Fatalf("drift after re-anchor = %vms, want ~0", p.MaxPairwiseDriftMS())
	}
	if p.DriftEvents() != 1 {
		t.Fatalf("drift events = %d, want 1", p.DriftEvents())
	}
}

func TestStemMixRampsTowardTarget(t *testing.T) {
	clock := 0.0
	p := New(fakeClock(&clock), 5.0, 50, zerolog.Nop())
	if err := p.Load(testBundle(48000)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p.SetStemMix(1.0)
	originalGain, stemsGain := p.OriginalAndStemsGain()
	if originalGain < 0 || originalGain > 1 || stemsGain < 0 || stemsGain > 1 {
		t.Fatalf("gains out of range: original=%v stems=%v", originalGain, stemsGain)
	}
}

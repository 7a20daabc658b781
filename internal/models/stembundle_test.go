package models

import "testing"

func alignedBundle(frames int) *StemBundle {
	buf := make([]float32, frames)
	return &StemBundle{
		SampleRate: 48000,
		Channels:   1,
		Frames:     frames,
		Drums:      buf,
		Bass:       append([]float32{}, buf...),
		Melody:     append([]float32{}, buf...),
		Vocals:     append([]float32{}, buf...),
		Original:   append([]float32{}, buf...),
	}
}

func TestStemBundle_Validate_Aligned(t *testing.T) {
	b := alignedBundle(480)
	if err := b.Validate(); err != nil {
		t.Fatalf("expected aligned bundle to validate, got %v", err)
	}
}

func TestStemBundle_Validate_RejectsMissingStem(t *testing.T) {
	b := alignedBundle(480)
	b.Vocals = nil
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for missing vocals stem")
	}
}

func TestStemBundle_Validate_RejectsMismatchedFrameCount(t *testing.T) {
	b := alignedBundle(480)
	b.Bass = make([]float32, 479)
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for mismatched frame count")
	}
}

func TestIsValidStem(t *testing.T) {
	if !IsValidStem(StemDrums) {
		t.Fatal("expected drums to be a valid stem")
	}
	if IsValidStem(StemOrigin) {
		t.Fatal("original is not a controllable stem")
	}
}

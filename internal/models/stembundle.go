package models

import "fmt"

// StemID enumerates the four separated stems aligned to an original
// reference inside a StemBundle.
type StemID string

const (
	StemDrums   StemID = "drums"
	StemBass    StemID = "bass"
	StemMelody  StemID = "melody"
	StemVocals  StemID = "vocals"
	StemOrigin  StemID = "original" // the unseparated reference mix, not a controllable stem
)

// Stems lists the four controllable stems, in the deck's canonical order.
// StemOrigin is deliberately excluded — it is mixed in via the stem
// player's mix/original crossfade, not via per-stem controls.
var Stems = [4]StemID{StemDrums, StemBass, StemMelody, StemVocals}

// IsValidStem reports whether id is one of the four controllable stems.
func IsValidStem(id StemID) bool {
	for _, s := range Stems {
		if s == id {
			return true
		}
	}
	return false
}

// StemBundle packages five aligned audio buffers: the four separated
// stems plus the original reference. All five share sample rate, channel
// count, and frame count.
type StemBundle struct {
	SampleRate int
	Channels   int
	Frames     int

	Drums    []float32
	Bass     []float32
	Melody   []float32
	Vocals   []float32
	Original []float32
}

// Validate enforces the bundle invariant: every stream present, and all
// five sample-aligned at identical sample rate, channel count, and frame
// count. A non-conforming bundle must never reach a deck.
func (b *StemBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil stem bundle", ErrStemMisaligned)
	}
	streams := map[StemID][]float32{
		StemDrums:  b.Drums,
		StemBass:   b.Bass,
		StemMelody: b.Melody,
		StemVocals: b.Vocals,
		StemOrigin: b.Original,
	}
	expectedSamples := b.Frames * b.Channels
	for id, buf := range streams {
		if buf == nil {
			return fmt.Errorf("%w: stem %s is absent", ErrStemMisaligned, id)
		}
		if len(buf) != expectedSamples {
			return fmt.Errorf("%w: stem %s has %d samples, want %d", ErrStemMisaligned, id, len(buf), expectedSamples)
		}
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrStemMisaligned)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("%w: channel count must be positive", ErrStemMisaligned)
	}
	return nil
}

// Stream returns the buffer for the given stem identifier.
func (b *StemBundle) Stream(id StemID) ([]float32, bool) {
	switch id {
	case StemDrums:
		return b.Drums, true
	case StemBass:
		return b.Bass, true
	case StemMelody:
		return b.Melody, true
	case StemVocals:
		return b.Vocals, true
	case StemOrigin:
		return b.Original, true
	default:
		return nil, false
	}
}

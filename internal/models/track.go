package models

import "time"

// Track identifies an admitted source. It is immutable once loaded onto a
// deck; only a fresh load_track replaces it.
type Track struct {
	ID       string
	Source   string // opaque reference to the source collaborator (file path, URL, blob id)
	Duration time.Duration
	BPM      *float64 // nil if unknown; analysis client fills this in asynchronously
	Key      *string  // nil if unknown
	Waveform []float32
	Metadata map[string]any
}

// HasBPM reports whether a tempo has been established for this track,
// either at load time or by a later analysis response.
func (t *Track) HasBPM() bool {
	return t != nil && t.BPM != nil && *t.BPM > 0
}

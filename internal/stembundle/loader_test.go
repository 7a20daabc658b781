package stembundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeFixtureWAV(t *testing.T, path string, frames int, sampleRate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func TestLoadFixtureAlignedBundle(t *testing.T) {
	dir := t.TempDir()
	paths := FixturePaths{
		Drums:    filepath.Join(dir, "drums.wav"),
		Bass:     filepath.Join(dir, "bass.wav"),
		Melody:   filepath.Join(dir, "melody.wav"),
		Vocals:   filepath.Join(dir, "vocals.wav"),
		Original: filepath.Join(dir, "original.wav"),
	}
	for _, p := range []string{paths.Drums, paths.Bass, paths.Melody, paths.Vocals, paths.Original} {
		writeFixtureWAV(t, p, 480, 48000)
	}

	bundle, err := LoadFixture(paths)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if bundle.SampleRate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", bundle.SampleRate)
	}
	if bundle.Frames != 480 {
		t.Fatalf("frames = %d, want 480", bundle.Frames)
	}
}

func TestLoadFixtureRejectsMismatchedFrameCount(t *testing.T) {
	dir := t.TempDir()
	paths := FixturePaths{
		Drums:    filepath.Join(dir, "drums.wav"),
		Bass:     filepath.Join(dir, "bass.wav"),
		Melody:   filepath.Join(dir, "melody.wav"),
		Vocals:   filepath.Join(dir, "vocals.wav"),
		Original: filepath.Join(dir, "original.wav"),
	}
	writeFixtureWAV(t, paths.Drums, 480, 48000)
	writeFixtureWAV(t, paths.Bass, 400, 48000) // mismatched
	writeFixtureWAV(t, paths.Melody, 480, 48000)
	writeFixtureWAV(t, paths.Vocals, 480, 48000)
	writeFixtureWAV(t, paths.Original, 480, 48000)

	if _, err := LoadFixture(paths); err == nil {
		t.Fatal("expected error for mismatched frame count")
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stembundle decodes five aligned mono or interleaved WAV files
// into a models.StemBundle for tests and local fixture playback. The
// core's production stem-ingest path never touches WAV directly — a
// StemBundle normally arrives pre-decoded from the separation
// collaborator (spec.md §6) — so this package exists purely to build
// bundles from on-disk fixtures, grounded on
// schollz-221e/internal/getbpm.GetBPM's go-audio/wav decode shape (open,
// wav.NewDecoder, PCMBuffer, FullPCMBuffer) applied once per stem file.
package stembundle

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/friendsincode/gesturedeck/internal/models"
)

// FixturePaths names the five WAV files that make up one bundle on disk.
type FixturePaths struct {
	Drums    string
	Bass     string
	Melody   string
	Vocals   string
	Original string
}

// LoadFixture decodes all five WAV files named in paths and assembles a
// validated StemBundle. A file that cannot be opened or decoded fails
// with a wrapped decode error naming the stem; decoded streams that do
// not share sample rate, channel count, and frame count fail with
// models.ErrStemMisaligned.
func LoadFixture(paths FixturePaths) (*models.StemBundle, error) {
	drums, rate, ch, err := decodeWAV(paths.Drums)
	if err != nil {
		return nil, fmt.Errorf("decode drums: %w", err)
	}
	bass, _, _, err := decodeWAV(paths.Bass)
	if err != nil {
		return nil, fmt.Errorf("decode bass: %w", err)
	}
	melody, _, _, err := decodeWAV(paths.Melody)
	if err != nil {
		return nil, fmt.Errorf("decode melody: %w", err)
	}
	vocals, _, _, err := decodeWAV(paths.Vocals)
	if err != nil {
		return nil, fmt.Errorf("decode vocals: %w", err)
	}
	original, _, _, err := decodeWAV(paths.Original)
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}

	frames := len(drums) / ch
	bundle := &models.StemBundle{
		SampleRate: rate,
		Channels:   ch,
		Frames:     frames,
		Drums:      drums,
		Bass:       bass,
		Melody:     melody,
		Vocals:     vocals,
		Original:   original,
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}

// decodeWAV reads a single WAV file into an interleaved []float32 buffer
// normalized to [-1,+1], returning its sample rate and channel count.
func decodeWAV(path string) (samples []float32, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("%s: invalid WAV file", path)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode PCM: %w", err)
	}

	sampleRate = buf.Format.SampleRate
	channels = buf.Format.NumChannels
	samples = make([]float32, len(buf.Data))
	maxVal := float32(int(1) << (uint(buf.SourceBitDepth) - 1))
	if buf.SourceBitDepth == 0 {
		maxVal = 1 << 15
	}
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxVal
	}
	return samples, sampleRate, channels, nil
}

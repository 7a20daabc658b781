/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package waveform computes a downsampled peak envelope from a stem
// bundle's Original mono/stereo PCM for spec.md's Track.Waveform field.
// The windowed-peak algorithm is adapted from
// internal/webdj/waveform.go's computePeaksFromPCM: that function reads
// s16le frames off an ffmpeg pipe and caches compressed results in
// Postgres; this version reads the already-decoded float32 samples this
// module keeps in memory (models.StemBundle.Original) and returns the
// peaks directly, with no subprocess, codec, or cache layer — none of
// which this spec's in-memory, no-storage-engine core has a use for.
package waveform

// SamplesPerSecond is the default peak-window rate: one peak sample per
// ~23 ms of audio, matching internal/webdj/waveform.go's own default
// resolution.
const SamplesPerSecond = 44

// Compute returns one peak magnitude per window of pcm, where a window
// spans sampleRate/samplesPerSec frames. Multi-channel audio is
// interleaved; peaks are taken across all channels in a frame so a
// transient in any channel shows up in the envelope.
func Compute(pcm []float32, sampleRate, channels, samplesPerSec int) []float32 {
	if sampleRate <= 0 || channels <= 0 || len(pcm) == 0 {
		return nil
	}
	if samplesPerSec <= 0 {
		samplesPerSec = SamplesPerSecond
	}
	framesPerWindow := sampleRate / samplesPerSec
	if framesPerWindow <= 0 {
		framesPerWindow = 1
	}

	frameCount := len(pcm) / channels
	windowCount := (frameCount + framesPerWindow - 1) / framesPerWindow
	peaks := make([]float32, 0, windowCount)

	var peak float32
	framesInWindow := 0
	for frame := 0; frame < frameCount; frame++ {
		for c := 0; c < channels; c++ {
			if v := absf32(pcm[frame*channels+c]); v > peak {
				peak = v
			}
		}
		framesInWindow++
		if framesInWindow >= framesPerWindow {
			peaks = append(peaks, peak)
			peak = 0
			framesInWindow = 0
		}
	}
	if framesInWindow > 0 {
		peaks = append(peaks, peak)
	}
	return peaks
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import "sync"

// Recorder taps the master bus pre-output and accumulates captured
// samples in memory, per spec.md §4.5's "returns a blob of captured
// samples" contract. start_recording is idempotent while active, and
// stop_recording is idempotent while inactive (spec.md §5); only one
// recording may be active at a time.
type Recorder struct {
	mu     sync.Mutex
	active bool
	buf    []float32
}

// newRecorder returns an idle recorder.
func newRecorder() *Recorder {
	return &Recorder{}
}

// Start begins capture. Calling Start while already active is a no-op,
// matching spec.md §4.5's idempotence requirement.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.active = true
	r.buf = r.buf[:0]
}

// IsActive reports whether a recording is currently in progress.
func (r *Recorder) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Tap appends master-bus samples to the in-progress recording. It is a
// no-op when no recording is active, so the master bus can call it
// unconditionally on every processed block.
func (r *Recorder) Tap(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.buf = append(r.buf, samples...)
}

// Stop ends the recording and returns the captured samples. Stop is
// idempotent: calling it with no recording in progress is not an error,
// per spec.md §5 ("a second stop without a start returns empty") — it
// returns an empty, non-nil slice.
func (r *Recorder) Stop() ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return []float32{}, nil
	}
	r.active = false
	out := make([]float32, len(r.buf))
	copy(out, r.buf)
	r.buf = r.buf[:0]
	return out, nil
}

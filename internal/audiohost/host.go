/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audiohost implements the audio host and clock (C1): a single
// output graph with a monotonic sample clock, latency reporting, and a
// signal-node factory gated on "initialize only after user activation".
// Lifecycle shape (explicit New + idempotent Dispose, a
// context-cancelled background stats loop) is grounded on
// internal/mediaengine/supervisor.go's monitor/restart loop, generalized
// from GStreamer pipeline health to in-process dropout counting since
// this host never shells out to a subprocess.
package audiohost

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/signalnode"
)

var (
	// ErrUserActivationRequired is returned by Initialize when invoked
	// outside a user-triggered code path.
	ErrUserActivationRequired = errors.New("audio host: user activation required")
	// ErrAlreadyInitialized names the already-initialized condition for
	// callers. Initialize itself never returns it: a second call in the
	// Ready state is a no-op success (spec.md §4.5).
	ErrAlreadyInitialized = errors.New("audio host: already initialized")
	// ErrNotReady is returned by every node factory before Initialize
	// succeeds.
	ErrNotReady = errors.New("audio host: not ready")
	// ErrDisposed is returned by any operation after Dispose.
	ErrDisposed = errors.New("audio host: disposed")
)

// State is the host's lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady          State = "ready"
	StateDisposed        State = "disposed"
)

// Stats is the host's observable snapshot, sampled at 1 Hz per spec.md §4.1.
type Stats struct {
	SampleRate      int
	BaseLatencyMS   float64
	OutputLatencyMS float64
	ActiveNodes     int
	DropoutCount    int64
}

// Host owns the single output graph and sample clock for a process. A
// second construction attempt (New called again) is not prevented by
// this package directly — the session coordinator (C5) is responsible
// for the "one audio context" invariant by constructing exactly one
// Host and never exposing the constructor beyond its own New.
type Host struct {
	sampleRate int
	blockSize  int
	logger     zerolog.Logger

	mu    sync.RWMutex
	state State

	startedAt    time.Time
	activeNodes  int64
	dropoutCount int64

	stopStats chan struct{}
}

// New constructs an uninitialized host at the given sample rate and
// block size (the processing quantum; spec.md's "interactive" latency
// target assumes a small block, default 128 frames).
func New(sampleRate, blockSize int, logger zerolog.Logger) *Host {
	return &Host{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		logger:     logger.With().Str("component", "audiohost").Logger(),
		state:      StateUninitialized,
	}
}

// Initialize transitions the host to Ready. userActivated stands in for
// the platform's "was this call reached from a user gesture" check; the
// core surfaces ErrUserActivationRequired verbatim when it is false, per
// spec.md §4.1's failure semantics, and leaves state unchanged so a
// caller may retry from an activated path.
func (h *Host) Initialize(userActivated bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady {
		// Second call while Ready is a no-op success (spec.md §4.5).
		return nil
	}
	if h.state == StateDisposed {
		return ErrDisposed
	}
	if !userActivated {
		return ErrUserActivationRequired
	}

	h.state = StateReady
	h.startedAt = time.Now()
	h.stopStats = make(chan struct{})
	go h.statsLoop()

	h.logger.Info().
		Int("sample_rate", h.sampleRate).
		Int("block_size", h.blockSize).
		Msg("audio host ready")
	return nil
}

// IsReady reports whether the host has completed initialization.
func (h *Host) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state == StateReady
}

// Now returns a monotonic clock reading in seconds, anchored at
// Initialize. It is meaningless (0) before the host is Ready.
func (h *Host) Now() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateReady {
		return 0
	}
	return time.Since(h.startedAt).Seconds()
}

// SampleRate returns the host's fixed output sample rate.
func (h *Host) SampleRate() int { return h.sampleRate }

// BlockSize returns the host's fixed processing quantum, in frames.
func (h *Host) BlockSize() int { return h.blockSize }

func (h *Host) requireReady() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch h.state {
	case StateDisposed:
		return ErrDisposed
	case StateReady:
		return nil
	default:
		return ErrNotReady
	}
}

// CreateGain returns a new Gain node, or ErrNotReady before Initialize.
func (h *Host) CreateGain() (*signalnode.Gain, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewGain(h.sampleRate), nil
}

// CreateEQ3 returns a new EQ3 node, or ErrNotReady before Initialize.
func (h *Host) CreateEQ3() (*signalnode.EQ3, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewEQ3(h.sampleRate), nil
}

// CreateFilter returns a new Filter node, or ErrNotReady before Initialize.
func (h *Host) CreateFilter() (*signalnode.Filter, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewFilter(h.sampleRate), nil
}

// CreateCompressor returns a new Compressor node, or ErrNotReady before
// Initialize.
func (h *Host) CreateCompressor() (*signalnode.Compressor, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewCompressor(h.sampleRate), nil
}

// CreateLimiter returns a new master-bus limiter node, or ErrNotReady
// before Initialize.
func (h *Host) CreateLimiter() (*signalnode.Compressor, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewLimiter(h.sampleRate), nil
}

// CreateCrossfader returns a new Crossfader node, or ErrNotReady before
// Initialize.
func (h *Host) CreateCrossfader() (*signalnode.Crossfader, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewCrossfader(), nil
}

// CreateDelay returns a new Delay effect node, or ErrNotReady before
// Initialize.
func (h *Host) CreateDelay() (*signalnode.Delay, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewDelay(h.sampleRate), nil
}

// CreateReverb returns a new Reverb effect node, or ErrNotReady before
// Initialize.
func (h *Host) CreateReverb() (*signalnode.Reverb, error) {
	if err := h.requireReady(); err != nil {
		return nil, err
	}
	atomic.AddInt64(&h.activeNodes, 1)
	return signalnode.NewReverb(h.sampleRate), nil
}

// ReportUnderrun records a buffer underrun. Underruns are counted, not
// fatal (spec.md §4.1).
func (h *Host) ReportUnderrun() {
	atomic.AddInt64(&h.dropoutCount, 1)
}

// Stats returns the host's current observable snapshot.
func (h *Host) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	base := float64(h.blockSize) / float64(h.sampleRate) * 1000.0
	return Stats{
		SampleRate:      h.sampleRate,
		BaseLatencyMS:   base,
		OutputLatencyMS: base * 2, // input+output buffering, a conservative estimate
		ActiveNodes:     int(atomic.LoadInt64(&h.activeNodes)),
		DropoutCount:    atomic.LoadInt64(&h.dropoutCount),
	}
}

func (h *Host) statsLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopStats:
			return
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Debug().
				Int("active_nodes", stats.ActiveNodes).
				Int64("dropouts", stats.DropoutCount).
				Msg("audio host stats")
		}
	}
}

// Dispose stops the stats loop and transitions to Disposed. It is
// idempotent: a second Dispose call is a no-op.
func (h *Host) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDisposed {
		return
	}
	if h.stopStats != nil {
		close(h.stopStats)
	}
	h.state = StateDisposed
	atomic.StoreInt64(&h.activeNodes, 0)
	h.logger.Info().Msg("audio host disposed")
}

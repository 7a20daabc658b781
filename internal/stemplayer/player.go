/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stemplayer implements the four-stem synchronized transport
// (C3): a single scheduled start/stop/seek timestamp shared by all five
// streams, a periodic drift monitor that re-anchors on excess pairwise
// drift, the mix/original crossfade, and the per-stem solo mutex. The
// periodic-sampling idiom (a ticker-driven loop that samples state every
// fixed interval) is grounded on internal/playout/crossfade.go's
// pcmCrossfadeSession.Pump frame loop; this player generalizes it from a
// single two-track fade to five aligned streams with an added drift
// check, since the teacher never synchronizes more than one stream pair.
package stemplayer

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/signalnode"
)

var (
	// ErrStemMisaligned is returned by Load when the bundle fails
	// models.StemBundle.Validate.
	ErrStemMisaligned = models.ErrStemMisaligned
	// ErrNoBundleLoaded is returned by transport commands before Load.
	ErrNoBundleLoaded = errors.New("stem player: no bundle loaded")
)

// clockFn returns the current time in seconds, matching audiohost.Host.Now.
type clockFn func() float64

// Player plays a StemBundle such that all five streams stay sample
// aligned, exposing per-stem controls and a single mix/original
// crossfade.
type Player struct {
	now clockFn

	driftThresholdMS float64
	monitorInterval  time.Duration

	logger zerolog.Logger

	mu            sync.Mutex
	bundle        *models.StemBundle
	plain         bool    // true when loaded via LoadPlain (Track, no StemBundle)
	plainDuration float64 // seconds; used in place of bundle.Frames/SampleRate when plain
	rate          float64 // [0.5,2.0]
	mixM          *signalnode.Ramp
	playing       bool
	anchorAt      float64 // host.Now() at last play/seek
	anchorPos     float64 // seconds, position at anchorAt

	// stemDriftSec simulates the per-stem clock skew a real multi-voice
	// audio backend could accumulate; every stem shares one logical
	// position, perturbed by this offset, so the drift monitor has
	// something concrete to measure and re-anchor against.
	stemDriftSec map[models.StemID]float64

	controls map[models.StemID]*models.StemControls

	driftEvents int
	stopMonitor chan struct{}
}

// New constructs a Player. now supplies the host's monotonic clock;
// driftThresholdMS and monitorIntervalMS set the drift monitor's
// threshold and tick (the session coordinator passes 5 ms / 50 ms, per
// spec.md §4.3).
func New(now clockFn, driftThresholdMS float64, monitorIntervalMS int, logger zerolog.Logger) *Player {
	p := &Player{
		now:              now,
		driftThresholdMS: driftThresholdMS,
		monitorInterval:  time.Duration(monitorIntervalMS) * time.Millisecond,
		logger:           logger.With().Str("component", "stemplayer").Logger(),
		rate:             1.0,
		mixM:             signalnode.NewRamp(0),
		stemDriftSec:     make(map[models.StemID]float64),
		controls:         make(map[models.StemID]*models.StemControls),
	}
	for _, id := range models.Stems {
		ctrl := models.StemControls{Volume: 1.0, Pan: 0}
		p.controls[id] = &ctrl
	}
	return p
}

// Load validates and installs a new StemBundle, resetting transport and
// per-stem state to defaults.
func (p *Player) Load(bundle *models.StemBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bundle = bundle
	p.plain = false
	p.plainDuration = 0
	p.playing = false
	p.anchorAt = 0
	p.anchorPos = 0
	p.rate = 1.0
	for _, id := range models.Stems {
		p.controls[id] = &models.StemControls{Volume: 1.0}
		p.stemDriftSec[id] = 0
	}
	return nil
}

// LoadPlain installs a bare Track with no StemBundle, per spec.md §4.4's
// "compose a stem player (when stems loaded) or a plain player (when
// only Track)". Transport works directly off durationSec; per-stem
// controls (solo/mute/pan/EQ), the drift monitor, and the mix/original
// crossfade have no stems to act on and stay inert.
func (p *Player) LoadPlain(durationSec float64) error {
	if durationSec < 0 {
		durationSec = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bundle = nil
	p.plain = true
	p.plainDuration = durationSec
	p.playing = false
	p.anchorAt = 0
	p.anchorPos = 0
	p.rate = 1.0
	for _, id := range models.Stems {
		p.controls[id] = &models.StemControls{Volume: 1.0}
		p.stemDriftSec[id] = 0
	}
	return nil
}

// Duration returns the bundle's (or plain track's) total duration in
// seconds, or 0 if nothing is loaded.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationLocked()
}

// Bundle returns the loaded StemBundle, or nil in plain mode or when
// nothing is loaded. Callers must treat the returned bundle as
// read-only; it is the same pointer the player mixes from.
func (p *Player) Bundle() *models.StemBundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bundle
}

func (p *Player) durationLocked() float64 {
	if p.bundle != nil {
		if p.bundle.SampleRate == 0 {
			return 0
		}
		return float64(p.bundle.Frames) / float64(p.bundle.SampleRate)
	}
	if p.plain {
		return p.plainDuration
	}
	return 0
}

// loadedLocked reports whether a bundle or a plain track has been
// loaded, i.e. whether transport commands are valid.
func (p *Player) loadedLocked() bool {
	return p.bundle != nil || p.plain
}

// Play starts playback from the current position, anchored at the
// host's current timestamp (spec.md §4.3: "a single scheduled start ...
// time derived from host.now()+ε").
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loadedLocked() {
		return ErrNoBundleLoaded
	}
	if !p.playing {
		p.anchorAt = p.now()
		p.playing = true
	}
	return nil
}

// Pause freezes the transport at its current position.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loadedLocked() {
		return ErrNoBundleLoaded
	}
	if p.playing {
		p.anchorPos = p.positionLocked()
		p.playing = false
	}
	return nil
}

// Stop halts playback and resets position to zero.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loadedLocked() {
		return ErrNoBundleLoaded
	}
	p.playing = false
	p.anchorPos = 0
	p.anchorAt = 0
	return nil
}

// Seek clamps t to [0,duration] and re-anchors the transport there,
// preserving play/pause state.
func (p *Player) Seek(t float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loadedLocked() {
		return ErrNoBundleLoaded
	}
	dur := p.durationLocked()
	if t < 0 {
		t = 0
	}
	if t > dur {
		t = dur
	}
	p.anchorPos = t
	p.anchorAt = p.now()
	return nil
}

// SetRate clamps r to [0.5,2.0] and applies it to subsequent position
// computation without discontinuity: the current position becomes the
// new anchor.
func (p *Player) SetRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r < 0.5 {
		r = 0.5
	}
	if r > 2.0 {
		r = 2.0
	}
	p.anchorPos = p.positionLocked()
	p.anchorAt = p.now()
	p.rate = r
}

// Rate returns the current playback-rate factor.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Position returns the current playback position in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	if !p.playing {
		return p.anchorPos
	}
	elapsed := (p.now() - p.anchorAt) * p.rate
	pos := p.anchorPos + elapsed
	dur := p.durationLocked()
	if dur > 0 && pos > dur {
		return dur
	}
	return pos
}

// IsPlaying reports the transport state.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// StemPosition returns the given stem's perturbed position (base
// position plus any simulated drift), used by the drift monitor.
func (p *Player) StemPosition(id models.StemID) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked() + p.stemDriftSec[id]
}

// SimulateDrift perturbs a stem's reported position by offsetSeconds,
// standing in for the clock skew a real multi-voice audio backend might
// accumulate between otherwise-synchronized streams.
func (p *Player) SimulateDrift(id models.StemID, offsetSeconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stemDriftSec[id] = offsetSeconds
}

// MaxPairwiseDriftMS returns the largest pairwise drift, in
// milliseconds, across the four stems plus the original reference.
func (p *Player) MaxPairwiseDriftMS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxPairwiseDriftMSLocked()
}

func (p *Player) maxPairwiseDriftMSLocked() float64 {
	base := p.positionLocked()
	positions := make([]float64, 0, len(models.Stems)+1)
	positions = append(positions, base+p.stemDriftSec[models.StemOrigin])
	for _, id := range models.Stems {
		positions = append(positions, base+p.stemDriftSec[id])
	}
	maxP, minP := positions[0], positions[0]
	for _, pos := range positions[1:] {
		if pos > maxP {
			maxP = pos
		}
		if pos < minP {
			minP = pos
		}
	}
	return (maxP - minP) * 1000.0
}

// DriftEvents returns the count of re-anchor events the monitor has
// performed.
func (p *Player) DriftEvents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.driftEvents
}

// checkDrift re-anchors all stems to their median position if the
// pairwise drift exceeds the configured threshold, per spec.md §4.3:
// "pause, seek all stems to the median position, resume at the next
// scheduled boundary." Returns true if a re-anchor occurred.
func (p *Player) checkDrift() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bundle == nil {
		return false
	}
	if p.maxPairwiseDriftMSLocked() <= p.driftThresholdMS {
		return false
	}

	base := p.positionLocked()
	positions := make([]float64, 0, len(models.Stems)+1)
	positions = append(positions, base+p.stemDriftSec[models.StemOrigin])
	for _, id := range models.Stems {
		positions = append(positions, base+p.stemDriftSec[id])
	}
	sort.Float64s(positions)
	median := positions[len(positions)/2]

	wasPlaying := p.playing
	p.playing = false
	p.anchorPos = median
	p.anchorAt = p.now()
	for id := range p.stemDriftSec {
		p.stemDriftSec[id] = 0
	}
	p.stemDriftSec[models.StemOrigin] = 0
	if wasPlaying {
		p.playing = true
	}
	p.driftEvents++
	p.logger.Warn().
		Float64("median_position", median).
		Int("drift_events", p.driftEvents).
		Msg("stem drift exceeded threshold, re-anchored")
	return true
}

// StartMonitor launches the periodic drift-check loop. Stop it with
// StopMonitor.
func (p *Player) StartMonitor() {
	p.mu.Lock()
	if p.stopMonitor != nil {
		p.mu.Unlock()
		return
	}
	p.stopMonitor = make(chan struct{})
	stop := p.stopMonitor
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.monitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.checkDrift()
			}
		}
	}()
}

// StopMonitor halts the drift-check loop. Idempotent.
func (p *Player) StopMonitor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopMonitor == nil {
		return
	}
	close(p.stopMonitor)
	p.stopMonitor = nil
}

// SetStemVolume clamps volume to [0,1] for the given stem.
func (p *Player) SetStemVolume(id models.StemID, volume float64) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[id].Volume = clamp01(volume)
	return nil
}

// SetStemMute sets the stem's mute flag.
func (p *Player) SetStemMute(id models.StemID, muted bool) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[id].Muted = muted
	return nil
}

// SetStemSolo sets the stem's solo flag. Setting solo=true on one stem
// does not clear others explicitly — spec.md §3 allows at most one
// exclusive-solo flag, so the caller (internal/deck) is expected to
// clear any previously soloed stem before setting a new one; this
// method itself enforces nothing beyond validating the stem id, keeping
// the invariant the caller's responsibility the same way the spec
// frames "exclusive-solo" as a single flag rather than a player-level
// mutex.
func (p *Player) SetStemSolo(id models.StemID, soloed bool) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[id].Soloed = soloed
	return nil
}

// SetStemPan clamps pan to [-1,+1] for the given stem.
func (p *Player) SetStemPan(id models.StemID, pan float64) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.controls[id].Pan = clamp(pan, -1, 1)
	return nil
}

// SetStemEQ clamps gainDB to [-26,+26] and sets the given band (0=low,
// 1=mid, 2=high) of the stem's per-band EQ gain.
func (p *Player) SetStemEQ(id models.StemID, band int, gainDB float64) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	gainDB = clamp(gainDB, signalnode.EQGainMin, signalnode.EQGainMax)
	p.mu.Lock()
	defer p.mu.Unlock()
	switch band {
	case 0:
		p.controls[id].EQ.Low = gainDB
	case 1:
		p.controls[id].EQ.Mid = gainDB
	case 2:
		p.controls[id].EQ.High = gainDB
	default:
		return models.ErrOutOfRange
	}
	return nil
}

// StemControls returns a copy of the given stem's current control state.
func (p *Player) StemControls(id models.StemID) (models.StemControls, error) {
	if !models.IsValidStem(id) {
		return models.StemControls{}, models.ErrInvalidStemID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.controls[id], nil
}

// AnySoloed reports whether any stem in this player currently holds the
// solo flag.
func (p *Player) AnySoloed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range models.Stems {
		if p.controls[id].Soloed {
			return true
		}
	}
	return false
}

// EffectiveStemGain returns the stem's effective mix contribution, per
// spec.md §8's universal invariant: volume · ¬mute · (¬any_solo ∨ solo).
func (p *Player) EffectiveStemGain(id models.StemID) float64 {
	if !models.IsValidStem(id) {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	anySolo := false
	for _, sid := range models.Stems {
		if p.controls[sid].Soloed {
			anySolo = true
			break
		}
	}
	return p.controls[id].EffectiveGain(anySolo)
}

// SetStemMix clamps m to [0,1] and begins a 10 ms ramp of the
// mix/original crossfade, per spec.md §4.3.
func (p *Player) SetStemMix(m float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rampSamples := 0
	if p.bundle != nil {
		rampSamples = int(10.0 * float64(p.bundle.SampleRate) / 1000.0)
	}
	p.mixM.SetTarget(clamp01(m), rampSamples)
}

// StemMix returns the current instantaneous mix/original crossfade
// value: 0 = stems only, 1 = original only.
func (p *Player) StemMix() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mixM.Value()
}

// OriginalAndStemsGain returns the (originalGain, stemsGain) pair for
// the current mix/original crossfade position.
func (p *Player) OriginalAndStemsGain() (originalGain, stemsGain float64) {
	m := p.StemMix()
	return m, 1 - m
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package deck implements C4: a deck composes a stem player with the
// channel-strip nodes (gain, EQ3, filter), cue points, and pitch, and
// emits the transport/lifecycle events spec.md §4.4 and §6 name.
// Method shape (Load/Play/Pause/Seek/SetVolume/SetEQ/SetPitch/SetCue/
// DeleteCue, clamp-then-apply-then-broadcast) is grounded directly on
// internal/webdj/service.go's per-session deck methods, generalized from
// a single 2-band-dB-range per-deck EQ over one buffer to this spec's
// ±26 dB 3-band EQ driving a stemplayer.Player underneath.
package deck

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/signalnode"
	"github.com/friendsincode/gesturedeck/internal/stemplayer"
	"github.com/friendsincode/gesturedeck/internal/waveform"
)

var (
	// ErrNoTrackLoaded is returned by transport operations before Load.
	ErrNoTrackLoaded = errors.New("deck: no track loaded")
	// ErrInvalidCueIndex is returned for a cue index outside [0,7].
	ErrInvalidCueIndex = models.ErrInvalidCueIndex
	// ErrCueNotSet is returned by Cue(idx) when that slot has never been
	// set with SetCue.
	ErrCueNotSet = errors.New("deck: cue point not set")
)

// NodeFactory is the subset of audiohost.Host a deck needs to build its
// channel-strip nodes, accepted as an interface so deck tests don't need
// a real Host.
type NodeFactory interface {
	CreateGain() (*signalnode.Gain, error)
	CreateEQ3() (*signalnode.EQ3, error)
	CreateFilter() (*signalnode.Filter, error)
	CreateDelay() (*signalnode.Delay, error)
	CreateReverb() (*signalnode.Reverb, error)
	SampleRate() int
}

// EffectDelay and EffectReverb are the two named effect sends
// SetEffectSend/EffectSend accept, per spec.md §1's "... → filter →
// effects → channel gain → ..." stage. Any other name is stored but
// drives no DSP node (forward-compatible with a future effect without
// breaking existing callers).
const (
	EffectDelay  = "delay"
	EffectReverb = "reverb"
)

// Deck composes a stem player with a channel strip: gain, 3-band EQ,
// filter, effect sends, pitch, and up to 8 cue points.
type Deck struct {
	id     models.DeckID
	bus    *events.Bus
	logger zerolog.Logger

	player *stemplayer.Player

	mu           sync.RWMutex
	track        *models.Track
	gain         *signalnode.Gain
	eq           *signalnode.EQ3
	filter       *signalnode.Filter
	delay        *signalnode.Delay
	reverb       *signalnode.Reverb
	effectSends  map[string]float64
	pitchPercent float64
	cues         [models.MaxCuePoints]models.CuePoint
	syncRole     models.SyncRole

	stopPositionTicker chan struct{}
}

// New constructs a deck with its channel-strip nodes built from factory,
// an empty stem player driven by now, and the given event bus for
// lifecycle/transport notifications.
func New(id models.DeckID, factory NodeFactory, now func() float64, driftThresholdMS float64, syncMonitorIntervalMS int, bus *events.Bus, logger zerolog.Logger) (*Deck, error) {
	gain, err := factory.CreateGain()
	if err != nil {
		return nil, fmt.Errorf("create gain: %w", err)
	}
	eq, err := factory.CreateEQ3()
	if err != nil {
		return nil, fmt.Errorf("create eq3: %w", err)
	}
	filter, err := factory.CreateFilter()
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}
	delay, err := factory.CreateDelay()
	if err != nil {
		return nil, fmt.Errorf("create delay: %w", err)
	}
	reverb, err := factory.CreateReverb()
	if err != nil {
		return nil, fmt.Errorf("create reverb: %w", err)
	}

	d := &Deck{
		id:          id,
		bus:         bus,
		logger:      logger.With().Str("component", "deck").Str("deck", string(id)).Logger(),
		player:      stemplayer.New(now, driftThresholdMS, syncMonitorIntervalMS, logger),
		gain:        gain,
		eq:          eq,
		filter:      filter,
		delay:       delay,
		reverb:      reverb,
		effectSends: make(map[string]float64),
	}
	return d, nil
}

// ID returns the deck's identifier.
func (d *Deck) ID() models.DeckID { return d.id }

// Player exposes the underlying stem player for the mixer bus to read
// per-stem/mix gains from.
func (d *Deck) Player() *stemplayer.Player { return d.player }

// Gain exposes the deck's channel-strip gain node.
func (d *Deck) Gain() *signalnode.Gain { return d.gain }

// Load installs a track, resets the channel strip to defaults, and
// emits EventDeckLoaded. bundle is optional: per spec.md §4.4 ("compose
// a stem player (when stems loaded) or a plain player (when only
// Track)"), a nil bundle composes a plain player driven by track's own
// Duration, with no per-stem audio to mix. A non-nil bundle still goes
// through Player.Load's full StemBundle.Validate, so a misaligned
// bundle is rejected with models.ErrStemMisaligned exactly as before.
func (d *Deck) Load(track *models.Track, bundle *models.StemBundle) error {
	if bundle == nil {
		if err := d.player.LoadPlain(track.Duration.Seconds()); err != nil {
			d.publish(events.EventDeckError, events.Payload{"error": err.Error()})
			return err
		}
	} else {
		if err := d.player.Load(bundle); err != nil {
			d.publish(events.EventDeckError, events.Payload{"error": err.Error()})
			return err
		}
		if len(track.Waveform) == 0 {
			track.Waveform = waveform.Compute(bundle.Original, bundle.SampleRate, bundle.Channels, waveform.SamplesPerSecond)
		}
	}

	d.mu.Lock()
	d.track = track
	d.pitchPercent = 0
	d.effectSends = make(map[string]float64)
	d.cues = [models.MaxCuePoints]models.CuePoint{}
	d.mu.Unlock()

	d.gain.Set(1.0, 0)
	d.eq.Reset()
	d.filter.Set(models.FilterParams{Type: models.FilterLowpass, Frequency: signalnode.FilterFreqMax, Q: 0.707, Enabled: false})
	d.delay.SetSend(0)
	d.reverb.SetSend(0)

	d.player.StartMonitor()
	d.startPositionTicker()

	d.publish(events.EventDeckLoaded, events.Payload{"track_id": track.ID})
	return nil
}

// Play starts playback.
func (d *Deck) Play() error {
	if !d.hasTrack() {
		return ErrNoTrackLoaded
	}
	if err := d.player.Play(); err != nil {
		return err
	}
	d.publish(events.EventDeckPlay, events.Payload{})
	return nil
}

// Pause pauses playback.
func (d *Deck) Pause() error {
	if !d.hasTrack() {
		return ErrNoTrackLoaded
	}
	if err := d.player.Pause(); err != nil {
		return err
	}
	d.publish(events.EventDeckPause, events.Payload{})
	return nil
}

// Stop halts playback and resets position to zero.
func (d *Deck) Stop() error {
	if !d.hasTrack() {
		return ErrNoTrackLoaded
	}
	if err := d.player.Stop(); err != nil {
		return err
	}
	d.publish(events.EventDeckStop, events.Payload{})
	return nil
}

func (d *Deck) hasTrack() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.track != nil
}

// SetCue stores the deck's current position at cue index idx∈[0,7].
func (d *Deck) SetCue(idx int) error {
	if idx < 0 || idx >= models.MaxCuePoints {
		return ErrInvalidCueIndex
	}
	pos := d.player.Position()
	dur := d.player.Duration()
	norm := 0.0
	if dur > 0 {
		norm = pos / dur
	}
	d.mu.Lock()
	d.cues[idx] = models.CuePoint{Index: idx, Position: norm, Set: true}
	d.mu.Unlock()
	return nil
}

// DeleteCue clears cue index idx.
func (d *Deck) DeleteCue(idx int) error {
	if idx < 0 || idx >= models.MaxCuePoints {
		return ErrInvalidCueIndex
	}
	d.mu.Lock()
	d.cues[idx] = models.CuePoint{}
	d.mu.Unlock()
	return nil
}

// Cue jumps playback to the stored position at cue index idx.
func (d *Deck) Cue(idx int) error {
	if idx < 0 || idx >= models.MaxCuePoints {
		return ErrInvalidCueIndex
	}
	d.mu.RLock()
	cue := d.cues[idx]
	d.mu.RUnlock()
	if !cue.Set {
		return ErrCueNotSet
	}
	dur := d.player.Duration()
	return d.player.Seek(cue.Position * dur)
}

// CuePoint returns a copy of the cue stored at idx.
func (d *Deck) CuePoint(idx int) (models.CuePoint, error) {
	if idx < 0 || idx >= models.MaxCuePoints {
		return models.CuePoint{}, ErrInvalidCueIndex
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cues[idx], nil
}

// SetVolume clamps v to [0,1] and ramps the deck's channel-strip gain.
func (d *Deck) SetVolume(v float64) {
	d.gain.Set(v, 0)
	d.publish(events.EventStemControlChanged, events.Payload{"volume": v})
}

// Volume returns the deck's current instantaneous channel-strip gain.
func (d *Deck) Volume() float64 {
	return d.gain.Value()
}

// SetEQ clamps gainDB to [-26,+26] and ramps the given band (0=low,
// 1=mid, 2=high).
func (d *Deck) SetEQ(band int, gainDB float64) {
	d.eq.SetBand(band, gainDB)
}

// ResetEQ flattens all three bands in one operation, per spec.md §4.2.
func (d *Deck) ResetEQ() {
	d.eq.Reset()
}

// SetFilter reconfigures the deck's filter node.
func (d *Deck) SetFilter(params models.FilterParams) {
	d.filter.Set(params)
}

// SetEffectSend clamps level to [0,1] for the named effect send and, for
// EffectDelay/EffectReverb, drives the corresponding DSP node's wet
// level so the effects stage of the signal chain actually reflects it
// (Process applies both in series, after the filter).
func (d *Deck) SetEffectSend(name string, level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	d.mu.Lock()
	d.effectSends[name] = level
	d.mu.Unlock()

	switch name {
	case EffectDelay:
		d.delay.SetSend(level)
	case EffectReverb:
		d.reverb.SetSend(level)
	}
}

// EffectSend returns the current level of the named effect send.
func (d *Deck) EffectSend(name string) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.effectSends[name]
}

// Process runs buf through this deck's channel-strip signal chain in
// spec.md §1's documented order: gain → 3-band EQ → filter → effects
// (delay, reverb). The crossfader and master limiter sit downstream
// in the coordinator's mixer bus, not here.
func (d *Deck) Process(buf []float32) {
	d.gain.Process(buf)
	d.eq.Process(buf)
	d.filter.Process(buf)
	d.delay.Process(buf)
	d.reverb.Process(buf)
}

// SetStemVolume clamps v to [0,1] for the given stem.
func (d *Deck) SetStemVolume(id models.StemID, v float64) error {
	if err := d.player.SetStemVolume(id, v); err != nil {
		return err
	}
	d.publish(events.EventStemControlChanged, events.Payload{"stem": string(id), "volume": v})
	return nil
}

// SetStemMute sets the stem's mute flag. Mute state is preserved across
// transport operations, per spec.md §3.
func (d *Deck) SetStemMute(id models.StemID, muted bool) error {
	if err := d.player.SetStemMute(id, muted); err != nil {
		return err
	}
	d.publish(events.EventStemControlChanged, events.Payload{"stem": string(id), "muted": muted})
	return nil
}

// SetStemSolo sets the stem's exclusive-solo flag, clearing any other
// soloed stem in this deck first — spec.md §3 allows at most one
// exclusive-solo flag per deck.
func (d *Deck) SetStemSolo(id models.StemID, soloed bool) error {
	if !models.IsValidStem(id) {
		return models.ErrInvalidStemID
	}
	if soloed {
		for _, other := range models.Stems {
			if other != id {
				_ = d.player.SetStemSolo(other, false)
			}
		}
	}
	if err := d.player.SetStemSolo(id, soloed); err != nil {
		return err
	}
	d.publish(events.EventStemControlChanged, events.Payload{"stem": string(id), "soloed": soloed})
	return nil
}

// SetStemPan clamps pan to [-1,+1] for the given stem.
func (d *Deck) SetStemPan(id models.StemID, pan float64) error {
	if err := d.player.SetStemPan(id, pan); err != nil {
		return err
	}
	d.publish(events.EventStemControlChanged, events.Payload{"stem": string(id), "pan": pan})
	return nil
}

// SetStemEQ clamps gainDB to [-26,+26] for the given stem/band.
func (d *Deck) SetStemEQ(id models.StemID, band int, gainDB float64) error {
	if err := d.player.SetStemEQ(id, band, gainDB); err != nil {
		return err
	}
	d.publish(events.EventStemControlChanged, events.Payload{"stem": string(id), "band": band, "eq_db": gainDB})
	return nil
}

// SetStemMix clamps m to [0,1] and ramps the mix/original crossfade.
func (d *Deck) SetStemMix(m float64) {
	d.player.SetStemMix(m)
	d.publish(events.EventStemControlChanged, events.Payload{"mix": m})
}

// PitchMin and PitchMax bound a deck's pitch control.
const (
	PitchMin = -8.0
	PitchMax = 8.0
)

// SetPitch clamps pct to [-8,+8] and applies it as a uniform
// playback-rate factor across every stem, preserving inter-stem
// alignment (spec.md §4.4).
func (d *Deck) SetPitch(pct float64) {
	if pct < PitchMin {
		pct = PitchMin
	}
	if pct > PitchMax {
		pct = PitchMax
	}
	d.mu.Lock()
	d.pitchPercent = pct
	d.mu.Unlock()
	d.player.SetRate(1 + pct/100.0)
}

// Pitch returns the deck's current pitch percentage.
func (d *Deck) Pitch() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pitchPercent
}

// CurrentBPM returns the track's original BPM scaled by the current
// playback rate, or 0 if no BPM is known.
func (d *Deck) CurrentBPM() float64 {
	d.mu.RLock()
	track := d.track
	d.mu.RUnlock()
	if track == nil || !track.HasBPM() {
		return 0
	}
	return *track.BPM * d.player.Rate()
}

// Position returns the normalized [0,1] playback position.
func (d *Deck) Position() float64 {
	dur := d.player.Duration()
	if dur <= 0 {
		return 0
	}
	pos := d.player.Position() / dur
	if pos > 1 {
		return 1
	}
	if pos < 0 {
		return 0
	}
	return pos
}

// IsPlaying reports the transport state.
func (d *Deck) IsPlaying() bool {
	return d.player.IsPlaying()
}

// SyncRole returns the deck's current beat-sync role.
func (d *Deck) SyncRole() models.SyncRole {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.syncRole
}

// SetSyncRole is called by the session coordinator's beat-sync state
// machine to tag this deck as master, slave, or neither.
func (d *Deck) SetSyncRole(role models.SyncRole) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncRole = role
}

// Track returns the deck's currently loaded track, or nil.
func (d *Deck) Track() *models.Track {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.track
}

// Bundle returns the deck's loaded StemBundle, or nil in plain-player
// mode or when nothing is loaded. Used by analysis (C6) to obtain the
// raw samples behind an analyze request.
func (d *Deck) Bundle() *models.StemBundle {
	return d.player.Bundle()
}

func (d *Deck) publish(eventType events.EventType, payload events.Payload) {
	if d.bus == nil {
		return
	}
	payload["deck"] = string(d.id)
	d.bus.Publish(eventType, payload)
}

// startPositionTicker emits EventPositionUpdate at ≈20 Hz per spec.md
// §4.4, stopping any previously running ticker first (a fresh Load
// resets transport state, so its ticker is restarted too).
func (d *Deck) startPositionTicker() {
	d.mu.Lock()
	if d.stopPositionTicker != nil {
		close(d.stopPositionTicker)
	}
	stop := make(chan struct{})
	d.stopPositionTicker = stop
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond) // 20 Hz
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.publish(events.EventPositionUpdate, events.Payload{"position": d.Position()})
			}
		}
	}()
}

// Dispose stops the deck's background tickers (position, drift monitor)
// without releasing the underlying StemBundle — that remains owned by
// whatever called Load until the deck itself is destroyed at session
// teardown.
func (d *Deck) Dispose() {
	d.player.StopMonitor()
	d.mu.Lock()
	if d.stopPositionTicker != nil {
		close(d.stopPositionTicker)
		d.stopPositionTicker = nil
	}
	d.mu.Unlock()
}

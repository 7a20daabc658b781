/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session implements the session coordinator (C5): the
// singleton owner of the audio host, both decks, the master bus, the
// beat-sync state machine, and the recorder. Lifecycle shape (mu-guarded
// state, event publication on every mutation, a session map narrowed
// here to the two fixed decks of SPEC_FULL.md's two-deck topology) is
// grounded on internal/webdj/service.go's Service, and the beat-sync
// bookkeeping is grounded on internal/playout/director.go's ticking
// played/active state-map idiom, generalized from track playout
// scheduling to a master/slave BPM binding.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/analysis"
	"github.com/friendsincode/gesturedeck/internal/audiohost"
	"github.com/friendsincode/gesturedeck/internal/deck"
	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/signalnode"
	"github.com/friendsincode/gesturedeck/internal/telemetry"
)

// State is the coordinator's initialization state machine position, per
// spec.md §4.5.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateHostReady      State = "host_ready"
	StateDecksReady      State = "decks_ready"
	StateReady           State = "ready"
	StateDegraded        State = "degraded_init"
	StateDisposed        State = "disposed"
)

var (
	// ErrUserActivationRequired mirrors audiohost's error so callers can
	// check it without importing that package directly.
	ErrUserActivationRequired = audiohost.ErrUserActivationRequired
	// ErrAlreadyDisposed is returned by any coordinator operation after
	// Dispose.
	ErrAlreadyDisposed = errors.New("session: already disposed")
	// ErrMissingBPM is returned by Sync when either deck lacks a known
	// tempo.
	ErrMissingBPM = errors.New("session: both decks must have a known BPM to sync")
	// ErrNotReady is returned by deck/mixer operations before the
	// coordinator reaches Ready.
	ErrNotReady = errors.New("session: not ready")
	// ErrNoBundleToAnalyze is returned by Analyze when the target deck
	// has no StemBundle loaded (plain-player mode has no PCM to analyze).
	ErrNoBundleToAnalyze = errors.New("session: deck has no stem bundle loaded")
	// ErrAnalysisUnavailable is returned by Analyze when no analysis
	// client has been attached via SetAnalysisClient.
	ErrAnalysisUnavailable = errors.New("session: no analysis client attached")
)

// PitchDeltaMin and PitchDeltaMax bound the beat-sync pitch_delta
// computation before it is applied to the slave deck (which further
// clamps to deck.PitchMin/PitchMax), per spec.md §4.5.
const (
	PitchDeltaMin = -100.0
	PitchDeltaMax = 100.0
)

// Session is the singleton coordinator. It constructs its audiohost.Host
// once, on the first Initialize, and reuses it on every later call, so
// one coordinator holds one audio context (spec.md §3). audiohost.New is
// exported, and nothing prevents other code from constructing a second
// Host.
type Session struct {
	sampleRate int
	blockSize  int
	bus        *events.Bus
	logger     zerolog.Logger

	mu    sync.RWMutex
	state State

	host  *audiohost.Host
	decks map[models.DeckID]*deck.Deck

	crossfader *signalnode.Crossfader
	masterGain *signalnode.Gain
	limiter    *signalnode.Compressor
	mixer      models.MixerState

	sync models.SyncState

	recorder *Recorder

	analysisClient *analysis.Client
}

// New constructs an uninitialized coordinator.
func New(sampleRate, blockSize int, bus *events.Bus, logger zerolog.Logger) *Session {
	return &Session{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		bus:        bus,
		logger:     logger.With().Str("component", "session").Logger(),
		state:      StateUninitialized,
		decks:      make(map[models.DeckID]*deck.Deck),
		mixer:      models.DefaultMixerState(),
		recorder:   newRecorder(),
	}
}

// SetAnalysisClient attaches the C6 analysis client Analyze dispatches
// through. Optional: a coordinator with no client attached returns
// ErrAnalysisUnavailable from Analyze rather than panicking, so CLI
// paths that never configure a worker (e.g. "simulate") keep working.
func (s *Session) SetAnalysisClient(c *analysis.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysisClient = c
}

// Initialize drives the initialization state machine through
// HostReady -> DecksReady -> Ready. A second call while already Ready is
// a no-op success. A call without user activation returns
// ErrUserActivationRequired and leaves the state unchanged. Any other
// step failure lands the coordinator in Degraded,
// emits initialization:error, and retains whatever partial state was
// already constructed so a caller may retry.
func (s *Session) Initialize(userActivated bool) error {
	s.mu.Lock()
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrAlreadyDisposed
	}
	if s.host == nil {
		s.host = audiohost.New(s.sampleRate, s.blockSize, s.logger)
	}
	s.mu.Unlock()

	if err := s.host.Initialize(userActivated); err != nil {
		if errors.Is(err, audiohost.ErrUserActivationRequired) {
			return ErrUserActivationRequired
		}
		s.degrade(fmt.Errorf("host init: %w", err))
		return err
	}
	s.setState(StateHostReady)

	if err := s.initializeDecks(); err != nil {
		s.degrade(fmt.Errorf("deck init: %w", err))
		return err
	}
	s.setState(StateDecksReady)

	if err := s.connectMasterBus(); err != nil {
		s.degrade(fmt.Errorf("master bus init: %w", err))
		return err
	}
	s.setState(StateReady)

	s.logger.Info().Msg("session coordinator ready")
	return nil
}

func (s *Session) initializeDecks() error {
	for _, id := range []models.DeckID{models.DeckA, models.DeckB} {
		d, err := deck.New(id, s.host, s.host.Now, 5.0, 50, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("deck %s: %w", id, err)
		}
		s.mu.Lock()
		s.decks[id] = d
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) connectMasterBus() error {
	crossfader, err := s.host.CreateCrossfader()
	if err != nil {
		return fmt.Errorf("crossfader: %w", err)
	}
	masterGain, err := s.host.CreateGain()
	if err != nil {
		return fmt.Errorf("master gain: %w", err)
	}
	limiter, err := s.host.CreateLimiter()
	if err != nil {
		return fmt.Errorf("limiter: %w", err)
	}

	s.mu.Lock()
	s.crossfader = crossfader
	s.masterGain = masterGain
	s.limiter = limiter
	s.mu.Unlock()
	return nil
}

func (s *Session) degrade(cause error) {
	s.setState(StateDegraded)
	s.publish(events.EventInitializationError, events.Payload{"error": cause.Error()})
	s.logger.Error().Err(cause).Msg("session initialization degraded")
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the coordinator's current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsReady reports whether the coordinator has reached Ready.
func (s *Session) IsReady() bool {
	return s.State() == StateReady
}

func (s *Session) requireReady() error {
	if s.State() != StateReady {
		return ErrNotReady
	}
	return nil
}

// Deck returns the deck with the given id, or nil if unknown.
func (s *Session) Deck(id models.DeckID) *deck.Deck {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decks[id]
}

// Host returns the coordinator's audio host.
func (s *Session) Host() *audiohost.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.host
}

// SetCrossfader clamps position to [0,1] and updates both the
// crossfader node and the coordinator's published mixer state.
func (s *Session) SetCrossfader(position float64) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.mu.Lock()
	s.crossfader.SetPosition(position)
	s.mixer.Crossfader = position
	s.mu.Unlock()
	s.publish(events.EventCrossfaderChange, events.Payload{"position": position})
	return nil
}

// SetCrossfaderCurve selects the gain law the crossfader applies.
func (s *Session) SetCrossfaderCurve(curve models.CrossfaderCurve) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.mu.Lock()
	s.crossfader.SetCurve(curve)
	s.mixer.Curve = curve
	s.mu.Unlock()
	s.publish(events.EventCrossfaderChange, events.Payload{"curve": string(curve)})
	return nil
}

// CrossfaderGains returns the current per-side gains the crossfader
// applies to decks A and B (two-deck topology, spec.md §4.5's
// A→side-A, B→side-B routing rule).
func (s *Session) CrossfaderGains() (gainA, gainB float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.crossfader == nil {
		return 1, 1
	}
	return s.crossfader.Gains()
}

// SetMasterVolume clamps v to [0,1] and ramps the master gain node.
func (s *Session) SetMasterVolume(v float64) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.mu.Lock()
	s.masterGain.Set(v, 0)
	s.mixer.MasterGain = v
	s.mu.Unlock()
	return nil
}

// MixerState returns a snapshot of the coordinator-owned master-bus
// state.
func (s *Session) MixerState() models.MixerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mixer
}

// SyncState returns a snapshot of the beat-sync state machine.
func (s *Session) SyncState() models.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sync
}

// Sync engages beat-sync with masterID as the tempo reference and the
// other deck in the two-deck topology as the slave. It implements
// spec.md §4.5's beat-sync state machine: both decks must have a known
// BPM, the slave's pitch is set to
// (masterBPM/slaveBPM - 1) * 100 clamped to [-100,+100] (further
// clamped to deck.PitchMin/PitchMax at the deck's own setter boundary),
// and re-engaging with a different master disengages the previous pair
// first.
func (s *Session) Sync(masterID models.DeckID) error {
	_, span := telemetry.StartSpan(context.Background(), "gesturedeck.session", "sync")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"master": string(masterID)})

	if err := s.requireReady(); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if !models.IsValidDeck(masterID) {
		telemetry.RecordError(span, models.ErrInvalidDeckID)
		return models.ErrInvalidDeckID
	}
	slaveID := masterID.OtherDeck()

	master := s.Deck(masterID)
	slave := s.Deck(slaveID)
	masterBPM := master.CurrentBPM()
	slaveBPM := slave.CurrentBPM()
	if masterBPM <= 0 || slaveBPM <= 0 {
		s.publish(events.EventSyncSkipped, events.Payload{"reason": "missing_bpm"})
		telemetry.RecordError(span, ErrMissingBPM)
		return ErrMissingBPM
	}

	s.mu.RLock()
	alreadySynced := s.sync.Engaged
	s.mu.RUnlock()
	if alreadySynced {
		s.disengageLocked()
	}

	pitchDelta := clampPitchDelta((masterBPM/slaveBPM - 1) * 100)
	slave.SetPitch(pitchDelta)
	master.SetSyncRole(models.SyncRoleMaster)
	slave.SetSyncRole(models.SyncRoleSlave)

	s.mu.Lock()
	s.sync = models.SyncState{
		Master:    masterID,
		Slave:     slaveID,
		MasterBPM: masterBPM,
		SlaveBPM:  slaveBPM,
		EngagedAt: time.Now(),
		Engaged:   true,
	}
	s.mu.Unlock()

	s.publish(events.EventSyncEngaged, events.Payload{"master": string(masterID), "slave": string(slaveID), "pitch_delta": pitchDelta})
	return nil
}

// Unsync disengages beat-sync, resetting both decks' sync roles to
// none. It is a no-op if sync was not engaged.
func (s *Session) Unsync() {
	s.mu.RLock()
	engaged := s.sync.Engaged
	s.mu.RUnlock()
	if !engaged {
		return
	}
	s.disengageLocked()
	s.publish(events.EventSyncDisengaged, events.Payload{})
}

func (s *Session) disengageLocked() {
	s.mu.RLock()
	masterID, slaveID := s.sync.Master, s.sync.Slave
	s.mu.RUnlock()
	if master := s.Deck(masterID); master != nil {
		master.SetSyncRole(models.SyncRoleNone)
	}
	if slave := s.Deck(slaveID); slave != nil {
		slave.SetSyncRole(models.SyncRoleNone)
	}
	s.mu.Lock()
	s.sync = models.SyncState{}
	s.mu.Unlock()
}

// SetDeckPitch routes a pitch change through the beat-sync state
// machine: a change on the engaged master recomputes the slave's pitch
// in the same call, per spec.md §4.5; a change on anything else
// (including the engaged slave) disengages sync, since it would
// otherwise silently drift the pair out of lock.
func (s *Session) SetDeckPitch(id models.DeckID, pct float64) error {
	d := s.Deck(id)
	if d == nil {
		return models.ErrInvalidDeckID
	}

	s.mu.RLock()
	sync := s.sync
	s.mu.RUnlock()

	d.SetPitch(pct)

	if !sync.Engaged {
		return nil
	}
	if id == sync.Master {
		master := d
		slave := s.Deck(sync.Slave)
		masterBPM := master.CurrentBPM()
		slaveBPM := masterBPM // slave track BPM is fixed; recompute against its original tempo below
		if track := slave.Track(); track.HasBPM() {
			slaveBPM = *track.BPM
		}
		pitchDelta := clampPitchDelta((masterBPM/slaveBPM - 1) * 100)
		slave.SetPitch(pitchDelta)

		s.mu.Lock()
		s.sync.MasterBPM = masterBPM
		s.mu.Unlock()
		return nil
	}

	// Any other deck's pitch changed while engaged (including the slave
	// itself being driven directly) breaks the lock.
	s.Unsync()
	return nil
}

func clampPitchDelta(v float64) float64 {
	if v < PitchDeltaMin {
		return PitchDeltaMin
	}
	if v > PitchDeltaMax {
		return PitchDeltaMax
	}
	return v
}

// deckFor resolves id to a ready deck, or the validation/readiness error
// that every deck- and stem-scoped coordinator command shares.
func (s *Session) deckFor(id models.DeckID) (*deck.Deck, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if !models.IsValidDeck(id) {
		return nil, models.ErrInvalidDeckID
	}
	return s.Deck(id), nil
}

// LoadTrack installs track (and, for stem playback, bundle) onto deck id.
func (s *Session) LoadTrack(id models.DeckID, track *models.Track, bundle *models.StemBundle) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.Load(track, bundle)
}

// Analyze runs the attached analysis client (C6) against deck id's
// loaded StemBundle, publishing analysis:complete or analysis:error and
// returning the same result/error to the caller. It blocks the calling
// goroutine only, never the audio domain, per spec.md §7's "analyze may
// suspend the control domain only" rule — callers that want this
// non-blocking should call it from their own goroutine.
func (s *Session) Analyze(ctx context.Context, id models.DeckID, features ...analysis.Feature) (analysis.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "gesturedeck.session", "analyze")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"deck": string(id)})

	d, err := s.deckFor(id)
	if err != nil {
		telemetry.RecordError(span, err)
		return analysis.Result{}, err
	}
	s.mu.RLock()
	client := s.analysisClient
	s.mu.RUnlock()
	if client == nil {
		telemetry.RecordError(span, ErrAnalysisUnavailable)
		return analysis.Result{}, ErrAnalysisUnavailable
	}
	bundle := d.Bundle()
	if bundle == nil {
		telemetry.RecordError(span, ErrNoBundleToAnalyze)
		return analysis.Result{}, ErrNoBundleToAnalyze
	}
	if len(features) == 0 {
		features = []analysis.Feature{analysis.FeatureBPM, analysis.FeatureKey, analysis.FeatureOnsets}
	}
	result, err := client.Analyze(ctx, analysis.Request{
		Samples:    bundle.Original,
		SampleRate: bundle.SampleRate,
		Channels:   bundle.Channels,
		Features:   features,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.publish(events.EventAnalysisError, events.Payload{"deck": string(id), "error": err.Error()})
		return analysis.Result{}, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{"bpm": result.BPM, "key": result.Key})
	s.publish(events.EventAnalysisComplete, events.Payload{
		"deck": string(id),
		"bpm":  result.BPM,
		"key":  result.Key,
	})
	return result, nil
}

// Play/Pause/Stop/Cue route the corresponding transport command to deck
// id, per spec.md §6.
func (s *Session) Play(id models.DeckID) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.Play()
}

func (s *Session) Pause(id models.DeckID) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.Pause()
}

func (s *Session) Stop(id models.DeckID) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.Stop()
}

func (s *Session) Cue(id models.DeckID, idx int) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.Cue(idx)
}

func (s *Session) SetCue(id models.DeckID, idx int) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetCue(idx)
}

func (s *Session) DeleteCue(id models.DeckID, idx int) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.DeleteCue(idx)
}

// SetVolume, SetEQ, ResetEQ, SetFilter, and SetEffectSend route
// channel-strip commands to deck id.
func (s *Session) SetVolume(id models.DeckID, v float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.SetVolume(v)
	return nil
}

func (s *Session) SetEQ(id models.DeckID, band int, gainDB float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.SetEQ(band, gainDB)
	return nil
}

func (s *Session) ResetEQ(id models.DeckID) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.ResetEQ()
	return nil
}

func (s *Session) SetFilter(id models.DeckID, params models.FilterParams) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.SetFilter(params)
	return nil
}

func (s *Session) SetEffectSend(id models.DeckID, name string, level float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.SetEffectSend(name, level)
	return nil
}

// SetStemVolume, SetStemMute, SetStemSolo, SetStemPan, SetStemEQ, and
// SetStemMix route per-stem commands (spec.md §6) to deck id's stem
// player.
func (s *Session) SetStemVolume(id models.DeckID, stem models.StemID, v float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetStemVolume(stem, v)
}

func (s *Session) SetStemMute(id models.DeckID, stem models.StemID, muted bool) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetStemMute(stem, muted)
}

func (s *Session) SetStemSolo(id models.DeckID, stem models.StemID, soloed bool) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetStemSolo(stem, soloed)
}

func (s *Session) SetStemPan(id models.DeckID, stem models.StemID, pan float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetStemPan(stem, pan)
}

func (s *Session) SetStemEQ(id models.DeckID, stem models.StemID, band int, gainDB float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	return d.SetStemEQ(stem, band, gainDB)
}

func (s *Session) SetStemMix(id models.DeckID, m float64) error {
	d, err := s.deckFor(id)
	if err != nil {
		return err
	}
	d.SetStemMix(m)
	return nil
}

// SetLimiter enables or disables the master limiter.
func (s *Session) SetLimiter(enabled bool) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.mu.Lock()
	s.mixer.LimiterEnabled = enabled
	s.mu.Unlock()
	return nil
}

// StartRecording begins capturing the master bus. Idempotent while
// already active.
func (s *Session) StartRecording() error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.recorder.Start()
	s.mu.Lock()
	s.mixer.RecordingActive = true
	s.mu.Unlock()
	s.publish(events.EventRecordingStart, events.Payload{})
	return nil
}

// StopRecording ends capture and returns the recorded samples.
func (s *Session) StopRecording() ([]float32, error) {
	samples, err := s.recorder.Stop()
	if err != nil {
		s.publish(events.EventRecordingError, events.Payload{"error": err.Error()})
		return nil, err
	}
	s.mu.Lock()
	s.mixer.RecordingActive = false
	s.mu.Unlock()
	s.publish(events.EventRecordingStop, events.Payload{"samples": len(samples)})
	return samples, nil
}

// TapRecorder feeds a processed master-bus block to the recorder. It is
// exposed so the host's real-time callback (outside this package) can
// forward blocks without reaching into the recorder directly.
func (s *Session) TapRecorder(block []float32) {
	s.recorder.Tap(block)
}

func (s *Session) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload)
}

// Dispose tears the coordinator down: decks are disposed first, then
// the master bus, then the host, per spec.md §4.5's resource policy.
// It is idempotent.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return
	}
	decks := make([]*deck.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		decks = append(decks, d)
	}
	host := s.host
	s.state = StateDisposed
	s.mu.Unlock()

	for _, d := range decks {
		d.Dispose()
	}
	if host != nil {
		host.Dispose()
	}
	s.logger.Info().Msg("session coordinator disposed")
}

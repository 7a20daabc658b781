/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package mapper

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
)

// Dispatcher is the subset of the session coordinator's command surface
// the mapper drives. A narrow interface keeps mapper tests from needing
// a real Session.
type Dispatcher interface {
	SetStemVolume(deck models.DeckID, stem models.StemID, v float64) error
	SetStemMute(deck models.DeckID, stem models.StemID, muted bool) error
	SetStemSolo(deck models.DeckID, stem models.StemID, soloed bool) error
	SetStemPan(deck models.DeckID, stem models.StemID, pan float64) error
	SetStemEQ(deck models.DeckID, stem models.StemID, band int, gainDB float64) error
	SetVolume(deck models.DeckID, v float64) error
	SetMasterVolume(v float64) error
	SetCrossfader(position float64) error
	SetFilter(deck models.DeckID, params models.FilterParams) error
	Cue(deck models.DeckID, idx int) error
	SetEffectSend(deck models.DeckID, name string, level float64) error
}

// ChangeThreshold is the minimum change in a mapping's shaped value
// required to dispatch a new command, per spec.md §4.9 step 6.
const ChangeThreshold = 0.01

// mappingState is the per-mapping processing state the pipeline in
// spec.md §4.9 carries frame to frame: the smoothed value, the last
// dispatched value (for the change-threshold gate), a toggle latch, and
// the previous frame's match (for trigger edge-detection).
type mappingState struct {
	haveValue   bool
	smoothed    float64
	haveLast    bool
	lastDisp    float64
	toggleOn    bool
	wasMatching bool
}

// Mapper implements C9: it evaluates the active MappingProfile's rules
// against each frame's gated GestureResults and dispatches shaped
// control commands to a Dispatcher.
type Mapper struct {
	dispatcher Dispatcher
	bus        *events.Bus
	logger     zerolog.Logger

	mu       sync.Mutex
	enabled  bool
	profile  models.MappingProfile
	mappings []models.GestureMapping
	state    map[string]*mappingState
}

// New constructs an enabled mapper with the given profile already active.
func New(dispatcher Dispatcher, bus *events.Bus, profile models.MappingProfile, logger zerolog.Logger) *Mapper {
	m := &Mapper{
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger.With().Str("component", "gesture_mapper").Logger(),
		enabled:    true,
		state:      make(map[string]*mappingState),
	}
	m.SetProfile(profile)
	return m
}

// SetEnabled toggles whether Process evaluates mappings at all.
func (m *Mapper) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// SetProfile replaces the active profile wholesale, resetting all
// per-mapping processing state.
func (m *Mapper) SetProfile(profile models.MappingProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = profile
	m.mappings = ParseMappings(profile)
	m.state = make(map[string]*mappingState)
}

// ActiveProfile returns the currently active profile's id.
func (m *Mapper) ActiveProfile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.ID
}

// AddMapping appends a mapping to the active profile.
func (m *Mapper) AddMapping(mapping models.GestureMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings = append(m.mappings, mapping)
	m.state[mapping.ID] = &mappingState{}
}

// RemoveMapping removes the mapping with the given id, if present.
func (m *Mapper) RemoveMapping(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, mapping := range m.mappings {
		if mapping.ID == id {
			m.mappings = append(m.mappings[:i], m.mappings[i+1:]...)
			break
		}
	}
	delete(m.state, id)
}

// match pairs a GestureMapping with the GestureResult it matched this
// frame, kept together through priority resolution.
type match struct {
	mapping models.GestureMapping
	result  models.GestureResult
}

// targetKey identifies the control a mapping drives, so only the
// highest-priority mapping matching each target dispatches per frame
// (spec.md §4.9's priority/conflict rule).
func targetKey(t models.ControlTarget, kind models.ControlKind) string {
	switch {
	case t.Crossfader:
		return "crossfader"
	case t.Master:
		return string(kind) + ":master"
	default:
		return string(kind) + ":" + string(t.Deck) + ":" + string(t.Stem)
	}
}

// Process evaluates every enabled mapping in the active profile against
// this frame's gated results and dispatches at most one command per
// control target, per spec.md §4.9.
func (m *Mapper) Process(results []models.GestureResult) {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	mappings := append([]models.GestureMapping(nil), m.mappings...)
	m.mu.Unlock()

	var matches []match
	for _, mp := range mappings {
		if !mp.Enabled {
			continue
		}
		if r, ok := bestMatch(mp, results); ok {
			matches = append(matches, match{mapping: mp, result: r})
		} else {
			m.handleTriggerReset(mp)
		}
	}

	// Highest priority wins per control target; ties resolved by mapping
	// id, per spec.md §4.9.
	winners := make(map[string]match)
	for _, cand := range matches {
		key := targetKey(cand.mapping.Target, cand.mapping.Kind)
		existing, ok := winners[key]
		if !ok {
			winners[key] = cand
			continue
		}
		if cand.mapping.Priority > existing.mapping.Priority {
			winners[key] = cand
			continue
		}
		if cand.mapping.Priority == existing.mapping.Priority && cand.mapping.ID < existing.mapping.ID {
			winners[key] = cand
		}
	}

	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.apply(winners[k].mapping, winners[k].result)
	}
}

// bestMatch finds the gesture result, if any, satisfying mapping's
// gesture class and hand requirement.
func bestMatch(mp models.GestureMapping, results []models.GestureResult) (models.GestureResult, bool) {
	isTwoHandClass := func(c models.GestureClass) bool {
		return c == models.GestureTwoHandPinch || c == models.GestureTwoHandRotate || c == models.GestureSpread
	}
	var best models.GestureResult
	found := false
	for _, r := range results {
		if r.Class != mp.Gesture {
			continue
		}
		if !mp.HandRequirement.Matches(r.Hand, isTwoHandClass(r.Class)) {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best = r
			found = true
		}
	}
	return best, found
}

func (m *Mapper) stateFor(id string) *mappingState {
	st, ok := m.state[id]
	if !ok {
		st = &mappingState{}
		m.state[id] = st
	}
	return st
}

// handleTriggerReset clears a trigger mapping's edge-detection flag when
// its gesture is no longer matching, so the next occurrence is seen as a
// fresh rising edge.
func (m *Mapper) handleTriggerReset(mp models.GestureMapping) {
	if mp.Mode != models.ModeTrigger {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFor(mp.ID).wasMatching = false
}

// apply runs one mapping's raw-value extraction, deadzone, sensitivity,
// smoothing, and change-threshold pipeline (spec.md §4.9 steps 2-6) and
// dispatches the result (step 7).
func (m *Mapper) apply(mp models.GestureMapping, result models.GestureResult) {
	switch mp.Mode {
	case models.ModeTrigger:
		m.applyTrigger(mp, result)
	case models.ModeToggle:
		m.applyToggle(mp, result)
	default:
		m.applyContinuous(mp, result)
	}
}

func (m *Mapper) applyTrigger(mp models.GestureMapping, result models.GestureResult) {
	m.mu.Lock()
	st := m.stateFor(mp.ID)
	rising := !st.wasMatching
	st.wasMatching = true
	m.mu.Unlock()
	if !rising {
		return
	}
	m.dispatchPulse(mp)
}

func (m *Mapper) applyToggle(mp models.GestureMapping, result models.GestureResult) {
	m.mu.Lock()
	st := m.stateFor(mp.ID)
	rising := !st.wasMatching
	st.wasMatching = true
	if !rising {
		m.mu.Unlock()
		return
	}
	st.toggleOn = !st.toggleOn
	on := st.toggleOn
	m.mu.Unlock()
	m.dispatchToggle(mp, on)
}

func (m *Mapper) applyContinuous(mp models.GestureMapping, result models.GestureResult) {
	raw, ok := rawValue(mp.Gesture, result)
	if !ok {
		return
	}

	center := controlCenter(mp.Kind, mp.Target)
	if math.Abs(raw-center) < mp.Parameters.Deadzone {
		return
	}

	scaled := center + (raw-center)*mp.Parameters.Sensitivity
	scaled = clampToDomain(mp.Kind, scaled)

	m.mu.Lock()
	st := m.stateFor(mp.ID)
	alpha := clamp01(1 - mp.Parameters.Smoothing)
	if !st.haveValue {
		st.smoothed = scaled
		st.haveValue = true
	} else {
		st.smoothed = st.smoothed + alpha*(scaled-st.smoothed)
	}
	value := st.smoothed

	if st.haveLast && math.Abs(value-st.lastDisp) < ChangeThreshold {
		m.mu.Unlock()
		return
	}
	st.lastDisp = value
	st.haveLast = true
	m.mu.Unlock()

	m.dispatchContinuous(mp, value)
}

// rawValue extracts a mapping's raw [0,1]-ish scalar from a gesture
// result's payload, by the per-class convention spec.md §4.9 describes
// (gesture class -> payload key -> its own reference normalization).
func rawValue(class models.GestureClass, result models.GestureResult) (float64, bool) {
	switch class {
	case models.GesturePinch:
		v, ok := result.Payload["distance"]
		return v, ok
	case models.GestureSwipe:
		v, ok := result.Payload["speed"]
		if !ok {
			return 0, false
		}
		return clamp01(v / 2.0), true
	case models.GestureTwoHandRotate:
		v, ok := result.Payload["angle_delta"]
		if !ok {
			return 0, false
		}
		return clamp01((v + math.Pi) / (2 * math.Pi)), true
	case models.GestureSpread, models.GestureTwoHandPinch:
		key := "distance_delta"
		if class == models.GestureTwoHandPinch {
			key = "separation"
		}
		v, ok := result.Payload[key]
		if !ok {
			return 0, false
		}
		return clamp01(v), true
	case models.GestureFingerCount:
		return clamp01(float64(result.FingerCount) / 5.0), true
	case models.GesturePalmOpen:
		v, ok := result.Payload["extended"]
		if !ok {
			return 0, false
		}
		return clamp01(v / 5.0), true
	default:
		return 0, false
	}
}

// controlCenter is the neutral raw value the deadzone gate measures
// against: bipolar controls (pan, crossfader) rest at their domain's
// midpoint, everything else rests at its domain's floor.
func controlCenter(kind models.ControlKind, target models.ControlTarget) float64 {
	switch kind {
	case models.ControlPan:
		return 0.5
	case models.ControlCrossfader:
		return 0.5
	default:
		return 0
	}
}

func clampToDomain(kind models.ControlKind, v float64) float64 {
	switch kind {
	case models.ControlPan:
		return clamp(v*2-1, -1, 1)
	default:
		return clamp01(v)
	}
}

func (m *Mapper) dispatchContinuous(mp models.GestureMapping, value float64) {
	var err error
	switch mp.Kind {
	case models.ControlVolume:
		if mp.Target.Master {
			err = m.dispatcher.SetMasterVolume(value)
		} else if mp.Target.Stem != "" {
			err = m.dispatcher.SetStemVolume(mp.Target.Deck, mp.Target.Stem, value)
		} else {
			err = m.dispatcher.SetVolume(mp.Target.Deck, value)
		}
	case models.ControlPan:
		err = m.dispatcher.SetStemPan(mp.Target.Deck, mp.Target.Stem, value)
	case models.ControlCrossfader:
		err = m.dispatcher.SetCrossfader(value)
	case models.ControlEQ:
		gainDB := (value*2 - 1) * signalnodeEQRange
		err = m.dispatcher.SetStemEQ(mp.Target.Deck, mp.Target.Stem, 1, gainDB)
	case models.ControlFilter:
		err = m.dispatcher.SetFilter(mp.Target.Deck, models.FilterParams{
			Type:      models.FilterLowpass,
			Frequency: logFrequency(value),
			Q:         1.0,
			Enabled:   true,
		})
	case models.ControlEffect:
		err = m.dispatcher.SetEffectSend(mp.Target.Deck, "default", value)
	default:
		return
	}
	m.reportDispatch(mp, err)
}

func (m *Mapper) dispatchToggle(mp models.GestureMapping, on bool) {
	var err error
	switch mp.Kind {
	case models.ControlMute:
		err = m.dispatcher.SetStemMute(mp.Target.Deck, mp.Target.Stem, on)
	case models.ControlSolo:
		err = m.dispatcher.SetStemSolo(mp.Target.Deck, mp.Target.Stem, on)
	default:
		return
	}
	m.reportDispatch(mp, err)
}

func (m *Mapper) dispatchPulse(mp models.GestureMapping) {
	var err error
	switch mp.Kind {
	case models.ControlCue:
		err = m.dispatcher.Cue(mp.Target.Deck, 0)
	default:
		return
	}
	m.reportDispatch(mp, err)
}

// signalnodeEQRange keeps the mapper's filter/EQ dispatch self-contained
// without importing internal/signalnode just for its gain bound constant.
const signalnodeEQRange = 26.0

// logFrequency maps a [0,1] control value onto [20,20000] Hz
// logarithmically, matching how a DJ filter knob typically sweeps.
func logFrequency(v float64) float64 {
	const lo, hi = 20.0, 20000.0
	return lo * math.Pow(hi/lo, v)
}

func (m *Mapper) reportDispatch(mp models.GestureMapping, err error) {
	if err != nil {
		m.logger.Debug().Str("mapping", mp.ID).Err(err).Msg("mapping dispatch failed")
		m.publish(events.EventMappingError, events.Payload{"mapping": mp.ID, "error": err.Error()})
		return
	}
	m.publish(events.EventMappingDispatched, events.Payload{"mapping": mp.ID, "kind": string(mp.Kind)})
}

func (m *Mapper) publish(eventType events.EventType, payload events.Payload) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventType, payload)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store implements the observable session store (C10): a single
// point through which the control domain dispatches commands to the
// session coordinator and through which UI/control-surface consumers
// subscribe to state snapshots. The Subscribe/unsubscribe/broadcast
// shape is grounded on internal/webdj/service.go's Service.Subscribe and
// broadcastUpdate (per-client buffered channel, append-and-swap
// subscriber list, non-blocking send); Dispatch routes through
// internal/session.Session exactly as webdj's command handlers route
// through its own service methods, generalized from one in-process
// Session to a reusable dispatch table keyed by command name so
// internal/gesture/mapper and cmd/gesturedeckctl share one entrypoint.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/session"
	"github.com/friendsincode/gesturedeck/internal/telemetry"
)

// Snapshot is a point-in-time, read-only view of session state, assembled
// from the coordinator's exported getters. It never touches the audio
// domain directly.
type Snapshot struct {
	At        time.Time
	Mixer     models.MixerState
	Sync      models.SyncState
	Decks     map[models.DeckID]DeckSnapshot
}

// DeckSnapshot is one deck's read-only view.
type DeckSnapshot struct {
	Playing  bool
	Position float64
	Volume   float64
	Pitch    float64
	BPM      float64
	SyncRole models.SyncRole
	Track    *models.Track
	Stems    map[models.StemID]models.StemControls
}

// Update is pushed to subscribers whenever a tracked event fires. Kind
// mirrors the originating events.EventType so a UI can route without
// re-deriving it from Snapshot diffs.
type Update struct {
	Kind      events.EventType
	At        time.Time
	Deck      models.DeckID
	Payload   events.Payload
	Snapshot  Snapshot
}

// Store wraps a *session.Session with an observable snapshot and a
// command dispatch table.
type Store struct {
	session *session.Session
	bus     *events.Bus
	logger  zerolog.Logger

	mu          sync.RWMutex
	subscribers []chan *Update
	stop        chan struct{}
}

// New constructs a Store around sess, subscribing to the deck, stem,
// crossfader, sync, recording, mapping, performance-degraded and drift
// event types so each fires a snapshot update. Initialization,
// performance-update, gesture-detected and analysis events are not
// watched.
func New(sess *session.Session, bus *events.Bus, logger zerolog.Logger) *Store {
	s := &Store{
		session: sess,
		bus:     bus,
		logger:  logger.With().Str("component", "store").Logger(),
		stop:    make(chan struct{}),
	}
	s.watch(events.EventDeckPlay)
	s.watch(events.EventDeckPause)
	s.watch(events.EventDeckStop)
	s.watch(events.EventDeckLoaded)
	s.watch(events.EventDeckError)
	s.watch(events.EventPositionUpdate)
	s.watch(events.EventStemControlChanged)
	s.watch(events.EventCrossfaderChange)
	s.watch(events.EventSyncEngaged)
	s.watch(events.EventSyncDisengaged)
	s.watch(events.EventSyncSkipped)
	s.watch(events.EventRecordingStart)
	s.watch(events.EventRecordingStop)
	s.watch(events.EventRecordingError)
	s.watch(events.EventMappingDispatched)
	s.watch(events.EventMappingError)
	s.watch(events.EventPerformanceDegraded)
	s.watch(events.EventDriftDetected)
	return s
}

// watch subscribes to one event type and forwards it (plus a fresh
// snapshot) to every current subscriber.
func (s *Store) watch(eventType events.EventType) {
	sub := s.bus.Subscribe(eventType)
	go func() {
		for {
			select {
			case payload, ok := <-sub:
				if !ok {
					return
				}
				s.broadcast(eventType, payload)
			case <-s.stop:
				return
			}
		}
	}()
}

// Snapshot assembles the current session state.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		At:    timeNow(),
		Mixer: s.session.MixerState(),
		Sync:  s.session.SyncState(),
		Decks: make(map[models.DeckID]DeckSnapshot, 2),
	}
	for _, id := range []models.DeckID{models.DeckA, models.DeckB} {
		d := s.session.Deck(id)
		if d == nil {
			continue
		}
		stems := make(map[models.StemID]models.StemControls, len(models.Stems))
		for _, stemID := range models.Stems {
			if sc, err := d.Player().StemControls(stemID); err == nil {
				stems[stemID] = sc
			}
		}
		snap.Decks[id] = DeckSnapshot{
			Playing:  d.IsPlaying(),
			Position: d.Position(),
			Volume:   d.Volume(),
			Pitch:    d.Pitch(),
			BPM:      d.CurrentBPM(),
			SyncRole: d.SyncRole(),
			Track:    d.Track(),
			Stems:    stems,
		}
	}
	return snap
}

// broadcast fans a fresh Update out to every subscriber. Delivery is
// non-blocking: a subscriber whose buffer is full misses the update
// rather than stalling the event-watch goroutine, matching
// events.Bus.Publish's own degrade-rather-than-block contract.
func (s *Store) broadcast(eventType events.EventType, payload events.Payload) {
	deck, _ := payload["deck"].(string)
	update := &Update{
		Kind:     eventType,
		At:       timeNow(),
		Deck:     models.DeckID(deck),
		Payload:  payload,
		Snapshot: s.Snapshot(),
	}
	s.mu.RLock()
	subs := append([]chan *Update(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- update:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (s *Store) Subscribe() (<-chan *Update, func()) {
	ch := make(chan *Update, 16)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Close stops every event-watch goroutine. Subscriber channels are never
// closed; an unsubscribe function only removes its channel from the
// fan-out list.
func (s *Store) Close() {
	close(s.stop)
}

// Command is a named, parameterized instruction the store can route to
// the session coordinator, used by control surfaces (cmd/gesturedeckctl,
// a future HTTP/WebSocket layer) that speak in serialized commands
// rather than direct Go calls.
type Command struct {
	Name   string
	Deck   models.DeckID
	Stem   models.StemID
	Band   int
	Index  int
	Value  float64
	Bool   bool
	Filter models.FilterParams
	Name2  string // secondary name argument (effect send name)
}

// Dispatch routes a Command to the matching session.Session method. It
// returns an error for both invalid sessions state (propagated from the
// coordinator) and unrecognized command names. Every dispatch opens its
// own control-domain span, named after the command, so a trace backend
// can show dispatch latency per command kind.
func (s *Store) Dispatch(cmd Command) error {
	_, span := telemetry.StartSpan(context.Background(), "gesturedeck.store", "dispatch."+cmd.Name)
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"deck": string(cmd.Deck), "command": cmd.Name})
	err := s.dispatch(cmd)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func (s *Store) dispatch(cmd Command) error {
	switch cmd.Name {
	case "play":
		return s.session.Play(cmd.Deck)
	case "pause":
		return s.session.Pause(cmd.Deck)
	case "stop":
		return s.session.Stop(cmd.Deck)
	case "cue":
		return s.session.Cue(cmd.Deck, cmd.Index)
	case "set_cue":
		return s.session.SetCue(cmd.Deck, cmd.Index)
	case "delete_cue":
		return s.session.DeleteCue(cmd.Deck, cmd.Index)
	case "set_volume":
		return s.session.SetVolume(cmd.Deck, cmd.Value)
	case "set_eq":
		return s.session.SetEQ(cmd.Deck, cmd.Band, cmd.Value)
	case "reset_eq":
		return s.session.ResetEQ(cmd.Deck)
	case "set_filter":
		return s.session.SetFilter(cmd.Deck, cmd.Filter)
	case "set_effect_send":
		return s.session.SetEffectSend(cmd.Deck, cmd.Name2, cmd.Value)
	case "set_stem_volume":
		return s.session.SetStemVolume(cmd.Deck, cmd.Stem, cmd.Value)
	case "set_stem_mute":
		return s.session.SetStemMute(cmd.Deck, cmd.Stem, cmd.Bool)
	case "set_stem_solo":
		return s.session.SetStemSolo(cmd.Deck, cmd.Stem, cmd.Bool)
	case "set_stem_pan":
		return s.session.SetStemPan(cmd.Deck, cmd.Stem, cmd.Value)
	case "set_stem_eq":
		return s.session.SetStemEQ(cmd.Deck, cmd.Stem, cmd.Band, cmd.Value)
	case "set_stem_mix":
		return s.session.SetStemMix(cmd.Deck, cmd.Value)
	case "set_crossfader":
		return s.session.SetCrossfader(cmd.Value)
	case "set_crossfader_curve":
		return s.session.SetCrossfaderCurve(models.CrossfaderCurve(cmd.Name2))
	case "set_master_volume":
		return s.session.SetMasterVolume(cmd.Value)
	case "set_limiter":
		return s.session.SetLimiter(cmd.Bool)
	case "set_pitch":
		return s.session.SetDeckPitch(cmd.Deck, cmd.Value)
	case "sync":
		return s.session.Sync(cmd.Deck)
	case "unsync":
		s.session.Unsync()
		return nil
	default:
		return fmt.Errorf("store: unrecognized command %q", cmd.Name)
	}
}

// timeNow is a thin indirection so tests can't accidentally depend on
// wall-clock ordering across fast successive snapshots.
var timeNow = time.Now

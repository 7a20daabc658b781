/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"github.com/rs/zerolog"

	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/gesture/mapper"
	"github.com/friendsincode/gesturedeck/internal/gesture/recognizer"
	"github.com/friendsincode/gesturedeck/internal/gesture/smoother"
	"github.com/friendsincode/gesturedeck/internal/models"
)

// HandFrame is one capture tick from the gesture tracker: at most one
// observation per hand, per spec.md §4.1 ("the tracker reports zero, one,
// or two hands per frame").
type HandFrame struct {
	Left  *models.HandObservation
	Right *models.HandObservation
}

// Pipeline wires the landmark smoother (C7), the gesture recognizer
// (C8), and the gesture-to-control mapper (C9) into the single
// push_hand_observation(frame) entrypoint spec.md §4 describes as the
// control domain's per-frame ingress. One Pipeline serves one session.
type Pipeline struct {
	left  *smoother.Smoother
	right *smoother.Smoother
	rec   *recognizer.Recognizer
	mp    *mapper.Mapper
}

// NewPipeline constructs a Pipeline dispatching matched gestures through
// mp. params selects the smoother's Kalman tuning (smoother.DefaultParams
// or smoother.ReduceLatencyParams).
func NewPipeline(mp *mapper.Mapper, params smoother.Params) *Pipeline {
	return &Pipeline{
		left:  smoother.New(params),
		right: smoother.New(params),
		rec:   recognizer.New(),
		mp:    mp,
	}
}

// PushFrame smooths, classifies, and dispatches one capture tick. It
// returns the gated gesture results the frame produced, mainly for tests
// and the CLI's simulate subcommand; production callers can ignore the
// return value.
func (p *Pipeline) PushFrame(frame HandFrame) []models.GestureResult {
	var left, right *models.HandObservation
	if frame.Left != nil {
		smoothed := p.left.Smooth(*frame.Left)
		left = &smoothed
	}
	if frame.Right != nil {
		smoothed := p.right.Smooth(*frame.Right)
		right = &smoothed
	}
	results := p.rec.Classify(left, right)
	p.mp.Process(results)
	return results
}

// NewPipelineFromStore builds a Pipeline whose Mapper dispatches through
// store and publishes gesture/mapping events on bus, the wiring
// cmd/gesturedeckctl and any future control-surface frontend share.
func NewPipelineFromStore(st *Store, bus *events.Bus, profile models.MappingProfile, params smoother.Params, logger zerolog.Logger) *Pipeline {
	mp := mapper.New(st.session, bus, profile, logger)
	return NewPipeline(mp, params)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recognizer implements the gesture recognizer (C8):
// single-hand and two-hand classifiers plus the confidence-gating
// pipeline (edge penalty, temporal stability, velocity stability,
// absolute floor) that decides which candidate classifications survive
// to be emitted. There is no computer-vision precedent anywhere in the
// teacher repo; every threshold here is grounded directly on spec.md
// §4.8's definitions.
package recognizer

import (
	"math"
	"time"

	"github.com/friendsincode/gesturedeck/internal/models"
)

// MediaPipe-style hand landmark indices this package reads.
const (
	lmWrist     = 0
	lmThumbTip  = 4
	lmThumbIP   = 3
	lmThumbMCP  = 2
	lmIndexMCP  = 5
	lmIndexPIP  = 6
	lmIndexTip  = 8
	lmMiddleMCP = 9
	lmMiddlePIP = 10
	lmMiddleTip = 12
	lmRingMCP   = 13
	lmRingPIP   = 14
	lmRingTip   = 16
	lmPinkyMCP  = 17
	lmPinkyPIP  = 18
	lmPinkyTip  = 20
)

// Thresholds from spec.md §4.8.
const (
	PinchDistanceThreshold = 0.08
	FistCurlRatio          = 0.45
	SwipeVelocityThreshold = 0.5 // normalized units/s
	SwipeDominantFrames    = 3
	TwoHandSeparationTarget = 0.3

	EdgeMargin     = 0.05
	EdgePenalty    = 0.8
	TemporalMin    = 0.4
	VelocityMin    = 0.3
	ConfidenceFloor = 0.6

	HistoryWindow = 50
	HistoryMaxAge = time.Second
)

type finger struct {
	tip, pip, mcp int
	extendedRatio float64 // typical extended-tip-to-wrist distance, as a multiple of hand scale
}

// fingers lists the five digits in a fixed order reused by Fist,
// PalmOpen, and FingerCount.
var fingers = []finger{
	{lmThumbTip, lmThumbIP, lmThumbMCP, 1.3},
	{lmIndexTip, lmIndexPIP, lmIndexMCP, 2.2},
	{lmMiddleTip, lmMiddlePIP, lmMiddleMCP, 2.4},
	{lmRingTip, lmRingPIP, lmRingMCP, 2.2},
	{lmPinkyTip, lmPinkyPIP, lmPinkyMCP, 1.8},
}

func dist(a, b models.Landmark) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// handScale estimates this frame's hand size from the wrist-to-middle-
// MCP distance, so the curl/extension thresholds below adapt to the
// tracked hand's apparent size rather than assuming a fixed scale.
func handScale(obs models.HandObservation) float64 {
	return dist(obs.Landmarks[lmWrist], obs.Landmarks[lmMiddleMCP])
}

func isCurled(obs models.HandObservation, f finger) bool {
	scale := handScale(obs)
	if scale <= 0 {
		return false
	}
	tipDist := dist(obs.Landmarks[lmWrist], obs.Landmarks[f.tip])
	return tipDist < scale*f.extendedRatio*FistCurlRatio
}

func isExtended(obs models.HandObservation, f finger) bool {
	tipDist := dist(obs.Landmarks[lmWrist], obs.Landmarks[f.tip])
	pipDist := dist(obs.Landmarks[lmWrist], obs.Landmarks[f.pip])
	return tipDist > pipDist
}

func extendedCount(obs models.HandObservation) int {
	n := 0
	for _, f := range fingers {
		if isExtended(obs, f) {
			n++
		}
	}
	return n
}

func nearEdge(obs models.HandObservation) bool {
	for _, lm := range obs.Landmarks {
		if lm.X < EdgeMargin || lm.X > 1-EdgeMargin || lm.Y < EdgeMargin || lm.Y > 1-EdgeMargin {
			return true
		}
	}
	return false
}

// candidate is a pre-gate classification produced by one of the
// single/two-hand classifier functions below.
type candidate struct {
	result    models.GestureResult
	nearEdge  bool
	tipVelocity float64 // normalized units/s, used for velocity-stability gating
}

func classifyPinch(obs models.HandObservation) (candidate, bool) {
	d := dist(obs.Landmarks[lmThumbTip], obs.Landmarks[lmIndexTip])
	if d >= PinchDistanceThreshold {
		return candidate{}, false
	}
	confidence := 1 - d/PinchDistanceThreshold
	return candidate{
		result: models.GestureResult{
			Class:      models.GesturePinch,
			Hand:       obs.Handedness,
			Confidence: confidence,
			Payload:    map[string]float64{"distance": d},
			Timestamp:  obs.CapturedAt,
		},
		nearEdge: nearEdge(obs),
	}, true
}

func classifyFist(obs models.HandObservation) (candidate, bool) {
	curled := 0
	for _, f := range fingers {
		if isCurled(obs, f) {
			curled++
		}
	}
	if curled < len(fingers) {
		return candidate{}, false
	}
	return candidate{
		result: models.GestureResult{
			Class:      models.GestureFist,
			Hand:       obs.Handedness,
			Confidence: 1.0,
			Timestamp:  obs.CapturedAt,
		},
		nearEdge: nearEdge(obs),
	}, true
}

func classifyPalmOpen(obs models.HandObservation) (candidate, bool) {
	n := extendedCount(obs)
	if n < 3 {
		return candidate{}, false
	}
	return candidate{
		result: models.GestureResult{
			Class:      models.GesturePalmOpen,
			Hand:       obs.Handedness,
			Confidence: float64(n) / float64(len(fingers)),
			Payload:    map[string]float64{"extended": float64(n)},
			Timestamp:  obs.CapturedAt,
		},
		nearEdge: nearEdge(obs),
	}, true
}

func classifyFingerCount(obs models.HandObservation) (candidate, bool) {
	n := extendedCount(obs)
	return candidate{
		result: models.GestureResult{
			Class:       models.GestureFingerCount,
			Hand:        obs.Handedness,
			Confidence:  1.0,
			FingerCount: n,
			Timestamp:   obs.CapturedAt,
		},
		nearEdge: nearEdge(obs),
	}, true
}

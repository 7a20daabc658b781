/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the data types shared across the mixer core:
// tracks, stem bundles, channel-strip and mixer state, hand observations,
// gesture results, and gesture-mapping profiles. None of it is persisted —
// the core keeps no storage engine, so these are plain in-memory structs
// rather than the gorm-tagged records a grimnir_radio model would carry.
package models

import "errors"

// Validation errors shared across components. Kind-specific lifecycle,
// resource, and state errors live beside the component that owns them
// (internal/audiohost, internal/stemplayer, internal/analysis,
// internal/session).
var (
	// ErrOutOfRange is returned when a numeric parameter could not be
	// clamped into its documented domain (e.g. an invalid band index).
	ErrOutOfRange = errors.New("value out of range")
	// ErrInvalidDeckID is returned for any deck identifier outside the
	// session's configured topology.
	ErrInvalidDeckID = errors.New("invalid deck id")
	// ErrInvalidStemID is returned for any stem identifier outside the
	// fixed four-stem set.
	ErrInvalidStemID = errors.New("invalid stem id")
	// ErrInvalidCueIndex is returned for a cue index outside [0,7].
	ErrInvalidCueIndex = errors.New("invalid cue index")
	// ErrStemMisaligned is returned when a StemBundle's five streams do
	// not share sample rate, channel count, and frame count, or when one
	// is absent entirely.
	ErrStemMisaligned = errors.New("stem bundle misaligned")
)

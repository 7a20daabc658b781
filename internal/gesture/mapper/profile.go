/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mapper implements the gesture-to-control mapper (C9): it
// applies the active MappingProfile to each frame's gated GestureResults
// and dispatches shaped control commands to the session coordinator.
// Priority-ordered conflict resolution (highest mapping priority wins per
// control target) is grounded on internal/priority/resolver.go's
// CanPreempt/determineTransitionType model, generalized from station
// source priority to per-control-target mapping priority; profile
// load/save as data rather than code (spec.md §9) uses gopkg.in/yaml.v3,
// the teacher's own YAML library.
package mapper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/gesturedeck/internal/models"
)

// LoadProfile reads a MappingProfile from a YAML file at path.
func LoadProfile(path string) (models.MappingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.MappingProfile{}, fmt.Errorf("read mapping profile: %w", err)
	}
	var profile models.MappingProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return models.MappingProfile{}, fmt.Errorf("parse mapping profile: %w", err)
	}
	return profile, nil
}

// SaveProfile writes profile to path as YAML.
func SaveProfile(path string, profile models.MappingProfile) error {
	data, err := yaml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal mapping profile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ParseMappings converts a profile's on-disk YAML rules into the
// in-memory GestureMapping form the mapper evaluates against. Rules with
// an unrecognized gesture, kind, or mode are skipped rather than
// rejecting the whole profile, so one bad rule doesn't disable every
// other mapping.
func ParseMappings(profile models.MappingProfile) []models.GestureMapping {
	out := make([]models.GestureMapping, 0, len(profile.Mappings))
	for _, raw := range profile.Mappings {
		m, ok := parseOne(raw)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func parseOne(raw models.GestureMappingYAML) (models.GestureMapping, bool) {
	gesture, ok := parseGestureClass(raw.Gesture)
	if !ok {
		return models.GestureMapping{}, false
	}
	hand, ok := parseHandRequirement(raw.HandRequirement)
	if !ok {
		return models.GestureMapping{}, false
	}
	kind, ok := parseControlKind(raw.Kind)
	if !ok {
		return models.GestureMapping{}, false
	}
	mode, ok := parseMappingMode(raw.Mode)
	if !ok {
		return models.GestureMapping{}, false
	}
	return models.GestureMapping{
		ID:              raw.ID,
		Gesture:         gesture,
		HandRequirement: hand,
		Kind:            kind,
		Target: models.ControlTarget{
			Deck:       models.DeckID(raw.Deck),
			Stem:       models.StemID(raw.Stem),
			Master:     raw.Master,
			Crossfader: raw.Crossfader,
		},
		Mode: mode,
		Parameters: models.MappingParameters{
			Sensitivity: clampSensitivity(raw.Sensitivity),
			Deadzone:    clampDeadzone(raw.Deadzone),
			Smoothing:   clamp01(raw.Smoothing),
		},
		Priority: raw.Priority,
		Enabled:  raw.Enabled,
	}, true
}

func parseGestureClass(s string) (models.GestureClass, bool) {
	switch models.GestureClass(s) {
	case models.GesturePinch, models.GestureFist, models.GesturePalmOpen,
		models.GestureFingerCount, models.GestureSwipe, models.GestureTwoHandPinch,
		models.GestureTwoHandRotate, models.GestureSpread:
		return models.GestureClass(s), true
	default:
		return "", false
	}
}

func parseHandRequirement(s string) (models.HandRequirement, bool) {
	switch models.HandRequirement(s) {
	case models.HandRequirementLeft, models.HandRequirementRight,
		models.HandRequirementBoth, models.HandRequirementAny:
		return models.HandRequirement(s), true
	default:
		return "", false
	}
}

func parseControlKind(s string) (models.ControlKind, bool) {
	switch models.ControlKind(s) {
	case models.ControlVolume, models.ControlMute, models.ControlSolo,
		models.ControlPan, models.ControlEQ, models.ControlFilter,
		models.ControlCrossfader, models.ControlCue, models.ControlEffect:
		return models.ControlKind(s), true
	default:
		return "", false
	}
}

func parseMappingMode(s string) (models.MappingMode, bool) {
	switch models.MappingMode(s) {
	case models.ModeContinuous, models.ModeToggle, models.ModeTrigger:
		return models.MappingMode(s), true
	default:
		return "", false
	}
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clampSensitivity(v float64) float64 { return clamp(v, 0.1, 10) }

func clampDeadzone(v float64) float64 { return clamp(v, 0, 0.3) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DefaultProfile returns a minimal built-in profile covering the volume,
// mute, crossfader, filter, solo and cue control kinds (no pan, eq or
// effect mapping), used when no profile file is configured (config.go's
// MappingProfilePath empty case).
func DefaultProfile() models.MappingProfile {
	return models.MappingProfile{
		ID:   "default",
		Name: "Default gesture profile",
		Mappings: []models.GestureMappingYAML{
			{
				ID: "pinch-right-vocals-a", Gesture: "pinch", HandRequirement: "right",
				Kind: "volume", Deck: "a", Stem: "vocals", Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0.05, Smoothing: 0.2, Priority: 1, Enabled: true,
			},
			{
				ID: "pinch-left-vocals-b", Gesture: "pinch", HandRequirement: "left",
				Kind: "volume", Deck: "b", Stem: "vocals", Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0.05, Smoothing: 0.2, Priority: 1, Enabled: true,
			},
			{
				ID: "fist-right-mute-drums-a", Gesture: "fist", HandRequirement: "right",
				Kind: "mute", Deck: "a", Stem: "drums", Mode: "toggle",
				Sensitivity: 1.0, Priority: 2, Enabled: true,
			},
			{
				ID: "swipe-any-crossfader", Gesture: "swipe", HandRequirement: "any",
				Kind: "crossfader", Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0.02, Smoothing: 0.3, Priority: 1, Enabled: true,
			},
			{
				ID: "spread-both-master-volume", Gesture: "spread", HandRequirement: "both",
				Kind: "volume", Master: true, Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0.02, Smoothing: 0.25, Priority: 1, Enabled: true,
			},
			{
				ID: "two-hand-rotate-filter-a", Gesture: "two_hand_rotate", HandRequirement: "both",
				Kind: "filter", Deck: "a", Mode: "continuous",
				Sensitivity: 1.0, Deadzone: 0.02, Smoothing: 0.3, Priority: 1, Enabled: true,
			},
			{
				ID: "palm-open-right-solo-vocals-a", Gesture: "palm_open", HandRequirement: "right",
				Kind: "solo", Deck: "a", Stem: "vocals", Mode: "toggle",
				Sensitivity: 1.0, Priority: 2, Enabled: true,
			},
			{
				ID: "two-hand-pinch-cue-a", Gesture: "two_hand_pinch", HandRequirement: "both",
				Kind: "cue", Deck: "a", Mode: "trigger",
				Sensitivity: 1.0, Priority: 3, Enabled: true,
			},
		},
	}
}

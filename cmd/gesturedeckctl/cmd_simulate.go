/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/gesturedeck/internal/config"
	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/gesture/mapper"
	"github.com/friendsincode/gesturedeck/internal/gesture/smoother"
	"github.com/friendsincode/gesturedeck/internal/logging"
	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/session"
	"github.com/friendsincode/gesturedeck/internal/store"
)

var (
	simulateDeck    string
	simulateStem    string
	simulateSteps   int
	simulateProfile string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a synthetic closing-pinch gesture and print the dispatched commands",
	Long: `simulate feeds a scripted sequence of synthetic hand observations (a right
hand pinching progressively tighter) through the smoother, recognizer, and
mapper, printing every control command the mapper dispatches. It is a
smoke test for the gesture pipeline's wiring, not a substitute for a real
hand tracker (out of scope per spec.md's Non-goals).`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateDeck, "deck", "a", "Target deck (a|b)")
	simulateCmd.Flags().StringVar(&simulateStem, "stem", "vocals", "Target stem")
	simulateCmd.Flags().IntVar(&simulateSteps, "steps", 8, "Number of frames to replay")
	simulateCmd.Flags().StringVar(&simulateProfile, "profile", "", "Mapping profile YAML file (default: built-in pinch-to-volume)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Setup(cfg.Environment)

	bus := events.NewBus()
	sess := session.New(cfg.SampleRate, cfg.BlockSize, bus, logger)
	if err := sess.Initialize(true); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	defer sess.Dispose()

	st := store.New(sess, bus, logger)
	defer st.Close()

	profile, err := simulateMappingProfile()
	if err != nil {
		return err
	}
	pipeline := store.NewPipelineFromStore(st, bus, profile, smoother.DefaultParams(), logger)

	ch, unsubscribe := st.Subscribe()
	defer unsubscribe()
	go func() {
		for update := range ch {
			if update.Kind == events.EventMappingDispatched {
				fmt.Printf("dispatched: %+v\n", update.Payload)
			}
		}
	}()

	base := time.Now()
	for i := 0; i < simulateSteps; i++ {
		// A pinch distance easing from 0.07 down toward 0.005 over
		// simulateSteps frames, staying under the recognizer's 0.08
		// threshold throughout.
		frac := float64(i) / float64(max(simulateSteps-1, 1))
		distance := 0.07 - frac*0.065
		obs := models.HandObservation{
			Handedness: models.HandRight,
			Confidence: 0.95,
			CapturedAt: base.Add(time.Duration(i*20) * time.Millisecond),
		}
		obs.Landmarks[4] = models.Landmark{X: 0.5, Y: 0.5}
		obs.Landmarks[8] = models.Landmark{X: 0.5 + math.Abs(distance), Y: 0.5}
		pipeline.PushFrame(store.HandFrame{Right: &obs})
	}

	time.Sleep(50 * time.Millisecond) // let the subscriber goroutine drain

	snap := st.Snapshot()
	deck := models.DeckID(simulateDeck)
	stem := models.StemID(simulateStem)
	fmt.Printf("final state: deck=%s stem=%s volume=%.3f\n", deck, stem, snap.Decks[deck].Stems[stem].Volume)
	return nil
}

func simulateMappingProfile() (models.MappingProfile, error) {
	if simulateProfile != "" {
		return mapper.LoadProfile(simulateProfile)
	}
	return models.MappingProfile{
		ID: "simulate",
		Mappings: []models.GestureMappingYAML{{
			ID: "simulate-pinch", Gesture: "pinch", HandRequirement: "right",
			Kind: "volume", Deck: simulateDeck, Stem: simulateStem, Mode: "continuous",
			Sensitivity: 1.0, Deadzone: 0.02, Smoothing: 0.2, Priority: 1, Enabled: true,
		}},
	}, nil
}

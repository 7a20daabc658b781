/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/gesturedeck/internal/analysis"
	"github.com/friendsincode/gesturedeck/internal/config"
	"github.com/friendsincode/gesturedeck/internal/eventbus"
	"github.com/friendsincode/gesturedeck/internal/events"
	"github.com/friendsincode/gesturedeck/internal/gesture/mapper"
	"github.com/friendsincode/gesturedeck/internal/gesture/smoother"
	"github.com/friendsincode/gesturedeck/internal/logging"
	"github.com/friendsincode/gesturedeck/internal/models"
	"github.com/friendsincode/gesturedeck/internal/session"
	"github.com/friendsincode/gesturedeck/internal/store"
	"github.com/friendsincode/gesturedeck/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mixer core's control-plane process",
	Long: `Starts the session coordinator, gesture pipeline, analysis client, and a
Prometheus metrics endpoint, then blocks until SIGINT/SIGTERM.

A server process initializes the session on the operator's behalf, in place
of the browser user-activation gesture spec.md §4.2 otherwise requires.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.Setup(cfg.Environment)
	logger.Info().Str("environment", cfg.Environment).Msg("gesturedeck starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(rootCtx, telemetry.DefaultTracerConfig(cfg.OTLPEndpoint, cfg.TracingEnabled, cfg.TracingSampleRate), logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	metrics := telemetry.NewMetrics()

	bus := events.NewBus()

	var distributed *eventbus.RedisBus
	if cfg.RedisAddr != "" {
		distributed, err = eventbus.NewRedisBus(cfg.RedisAddr, eventbus.DefaultRedisConfig(), logger)
		if err != nil {
			return fmt.Errorf("redis event bus: %w", err)
		}
		defer distributed.Close()
	}

	sess := session.New(cfg.SampleRate, cfg.BlockSize, bus, logger)
	if err := sess.Initialize(true); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	defer sess.Dispose()

	analysisClient := analysis.New(analysis.Config{
		WorkerAddr: cfg.AnalysisWorkerAddr,
		Timeout:    cfg.AnalysisTimeout(),
	}, logger)
	sess.SetAnalysisClient(analysisClient)

	st := store.New(sess, bus, logger)
	defer st.Close()

	if distributed != nil {
		mirrorStoreUpdates(st, distributed, logger)
	}
	observeMetrics(st, sess, metrics, logger)
	autoAnalyzeOnLoad(rootCtx, sess, bus, metrics, logger)

	profile, err := loadMappingProfile(cfg.MappingProfilePath)
	if err != nil {
		return err
	}
	pipeline := store.NewPipelineFromStore(st, bus, profile, smoother.DefaultParams(), logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ingest/frame", handIngestHandler(pipeline, metrics, logger))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsBind,
		Handler: mux,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics and ingest server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown failed")
	}

	logger.Info().Msg("gesturedeck stopped")
	return nil
}

// handFrameRequest is the JSON body /ingest/frame accepts: at most one
// observation per hand, per spec.md §4.1's push_hand_observation(frame).
type handFrameRequest struct {
	Left  *models.HandObservation `json:"left,omitempty"`
	Right *models.HandObservation `json:"right,omitempty"`
}

// handIngestHandler is push_hand_observation's real transport: a
// control-surface (or a test client) POSTs one HandFrame per capture
// tick and the server drives it straight through the C7-C8-C9 pipeline,
// spec.md §6's "the exact transport... is implementation-free" leaving
// the wire format up to this process. This is the only place in the
// tree outside cmd/gesturedeckctl's "simulate" demo that calls
// Pipeline.PushFrame.
func handIngestHandler(pipeline *store.Pipeline, metrics *telemetry.Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_, span := telemetry.StartSpan(r.Context(), "gesturedeck.ingest", "push_hand_observation")
		defer span.End()

		var req handFrameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			telemetry.RecordError(span, err)
			http.Error(w, fmt.Sprintf("decode frame: %v", err), http.StatusBadRequest)
			return
		}

		// Every result PushFrame returns has already passed the
		// recognizer's confidence gate (internal/gesture/recognizer's
		// Classify only emits gated results), so each one counts as
		// "accepted" here.
		results := pipeline.PushFrame(store.HandFrame{Left: req.Left, Right: req.Right})
		telemetry.AddSpanAttributes(span, map[string]any{"gestures_classified": len(results)})
		for _, res := range results {
			metrics.GestureClassified.WithLabelValues(string(res.Class), "true").Inc()
			metrics.GestureConfidence.Observe(res.Confidence)
		}

		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"gestures_classified":%d}`, len(results))
	}
}

// autoAnalyzeOnLoad subscribes to deck:loaded and fires an analyze
// request (C6) in the background whenever a deck loads a stem-backed
// track with no known BPM, per spec.md §4.6's analyze-on-demand
// contract. This is what actually exercises Session.Analyze ->
// analysis.Client.Analyze in the serve entrypoint, rather than only in
// tests.
func autoAnalyzeOnLoad(ctx context.Context, sess *session.Session, bus *events.Bus, metrics *telemetry.Metrics, logger zerolog.Logger) {
	sub := bus.Subscribe(events.EventDeckLoaded)
	go func() {
		for payload := range sub {
			deckID, _ := payload["deck"].(string)
			id := models.DeckID(deckID)
			if id == "" {
				id = models.DeckA
			}
			d := sess.Deck(id)
			if d == nil {
				continue
			}
			track := d.Track()
			if track == nil || track.BPM != nil || d.Bundle() == nil {
				continue
			}
			go func(id models.DeckID) {
				analyzeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				result, err := sess.Analyze(analyzeCtx, id)
				if err != nil {
					if err == analysis.ErrTimeout {
						metrics.AnalysisTimeouts.Inc()
					}
					if err == analysis.ErrWorkerLost {
						metrics.AnalysisWorkerLost.Inc()
					}
					logger.Warn().Err(err).Str("deck", string(id)).Msg("analyze failed")
					return
				}
				logger.Info().Str("deck", string(id)).Float64("bpm", result.BPM).Str("key", result.Key).Msg("analyze complete")
			}(id)
		}
	}()
}

// observeMetrics subscribes to store updates and the host's own stats
// to keep the Prometheus collectors registered by NewMetrics current,
// which is what makes /metrics report real values instead of a
// permanently zero-valued endpoint.
func observeMetrics(st *store.Store, sess *session.Session, metrics *telemetry.Metrics, logger zerolog.Logger) {
	ch, _ := st.Subscribe()
	go func() {
		for update := range ch {
			switch update.Kind {
			case events.EventDriftDetected:
				metrics.DriftEventsTotal.WithLabelValues(string(update.Deck)).Inc()
			case events.EventSyncEngaged:
				metrics.SyncEngagedTotal.Inc()
			case events.EventMappingDispatched:
				kind, _ := update.Payload["kind"].(string)
				metrics.MappingDispatched.WithLabelValues(kind).Inc()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := sess.Host().Stats()
			metrics.HostSampleRate.Set(float64(stats.SampleRate))
			metrics.HostBaseLatencyMS.Set(stats.BaseLatencyMS)
			metrics.HostOutputLatency.Set(stats.OutputLatencyMS)
			metrics.HostActiveNodes.Set(float64(stats.ActiveNodes))
		}
	}()
}

// loadMappingProfile reads the configured profile file, falling back to
// the built-in default when no path is configured.
func loadMappingProfile(path string) (models.MappingProfile, error) {
	if path == "" {
		return mapper.DefaultProfile(), nil
	}
	return mapper.LoadProfile(path)
}

// mirrorStoreUpdates republishes store.Update events onto the distributed
// bus so sibling instances observe this process's state changes. Session
// and Store depend on the concrete in-process *events.Bus rather than an
// interface, so this mirrors at the store-update boundary instead of
// deep-wiring every internal publish call through RedisBus.Publish.
func mirrorStoreUpdates(st *store.Store, distributed *eventbus.RedisBus, logger zerolog.Logger) {
	ch, _ := st.Subscribe()
	go func() {
		for update := range ch {
			distributed.Publish(update.Kind, update.Payload)
		}
	}()
	logger.Info().Bool("redis_available", distributed.IsAvailable()).Msg("mirroring store updates to the distributed bus")
}

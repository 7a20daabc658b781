/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analysis implements the analysis client (C6): an async
// request/response bridge to an external BPM/key/onset worker, with
// content-hash deduplication, a per-request timeout, and a fallback
// sentinel result when no worker is reachable. The async
// connect/reconnect/timeout shape is grounded on
// internal/mediaengine/client/client.go's Client (pending-request map
// keyed by ID, a loseWorker-style rejection of every in-flight request
// on disconnect, lazy reconnect on the next call), swapped from a gRPC
// MediaEngine stub (whose generated pb package is out of scope here) to
// a NATS request-reply transport — nats.go is a teacher dependency this
// module keeps. BPM/key/onset detection itself has no teacher precedent
// (grimnir_radio's own analyzer shells out to gst-discoverer-1.0 for
// container metadata, not musical analysis), so the worker-side
// estimation is out of scope for the core: per spec.md §4.6, an
// unreachable worker resolves with a zero-confidence sentinel rather
// than this package estimating BPM itself.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

var (
	// ErrTimeout is returned when a request is not answered within its
	// deadline (default 3s, per spec.md §4.6).
	ErrTimeout = errors.New("analysis: request timed out")
	// ErrWorkerLost is returned to every pending request when the worker
	// connection drops, and to the request that observed the drop.
	ErrWorkerLost = errors.New("analysis: worker lost")
	// ErrCancelled is returned to a request explicitly cancelled by id.
	ErrCancelled = errors.New("analysis: request cancelled")
)

// Feature enumerates the analysis outputs a Request may ask for.
type Feature string

const (
	FeatureBPM      Feature = "bpm"
	FeatureKey      Feature = "key"
	FeatureOnsets   Feature = "onsets"
	FeatureSpectral Feature = "spectral"
)

// Request describes one analysis job: an immutable audio block plus the
// features the caller wants computed.
type Request struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Features   []Feature
}

// Result is the resolved analysis output. BPM and Key carry independent
// confidences, per spec.md §4.6.
type Result struct {
	BPM           float64
	BPMConfidence float64
	Key           string
	KeyConfidence float64
	Onsets        []float64
	Beats         []float64
	Downbeats     []float64
	ProcessingMS  float64
}

// fallbackResult is the spec.md §4.6 sentinel returned whenever no
// worker is reachable: BPM=0, key=unknown, every confidence=0, which the
// session coordinator's Sync treats as "skip sync".
func fallbackResult() Result {
	return Result{Key: "unknown"}
}

// wireRequest/wireResponse are the NATS request-reply JSON payloads, per
// spec.md §6's analyzer wire contract: request {id, samples, sample_rate,
// features[]}, response {id, ok, result|error, processing_ms}.
type wireRequest struct {
	ID         string   `json:"id"`
	Samples    []float32 `json:"samples"`
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
	Features   []Feature `json:"features"`
}

type wireResponse struct {
	ID           string  `json:"id"`
	OK           bool    `json:"ok"`
	Error        string  `json:"error,omitempty"`
	ProcessingMS float64 `json:"processing_ms"`
	Result       *Result `json:"result,omitempty"`
}

// pendingEntry tracks one in-flight (possibly deduplicated) request.
type pendingEntry struct {
	id       string
	done     chan struct{}
	result   Result
	err      error
	resolved bool
}

// Client is the C6 analysis client. One Client serves a whole session;
// it owns no audio-thread state and is safe for concurrent use from the
// control domain.
type Client struct {
	subject string
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	nc      *nats.Conn
	addr    string // empty = fallback-only, never dials
	pending map[string]*pendingEntry // keyed by content hash
	nextID  uint64
}

// Config configures the analysis client's transport.
type Config struct {
	// WorkerAddr is a NATS URL. Empty means "fallback mode": every
	// request resolves immediately with the sentinel result, per
	// spec.md §4.6's "no worker available" contract.
	WorkerAddr string
	Subject    string
	Timeout    time.Duration
}

// DefaultSubject is the NATS subject analysis requests are published to.
const DefaultSubject = "gesturedeck.analysis"

// New constructs a Client. It does not dial eagerly: the worker
// connection (if WorkerAddr is set) is established lazily on first use
// and re-established lazily after a worker-lost event, per spec.md §4.6.
func New(cfg Config, logger zerolog.Logger) *Client {
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		subject: subject,
		timeout: timeout,
		logger:  logger.With().Str("component", "analysis_client").Logger(),
		addr:    cfg.WorkerAddr,
		pending: make(map[string]*pendingEntry),
	}
}

// contentHash identifies a request for deduplication: identical audio
// block, sample rate, and requested features always hash identically.
func contentHash(req Request) string {
	h := sha256.New()
	for _, s := range req.Samples {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(s))
		h.Write(buf[:])
	}
	var meta [8]byte
	binary.LittleEndian.PutUint32(meta[0:4], uint32(req.SampleRate))
	binary.LittleEndian.PutUint32(meta[4:8], uint32(req.Channels))
	h.Write(meta[:])
	for _, f := range req.Features {
		h.Write([]byte(f))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Analyze issues (or joins an in-flight, content-identical) analysis
// request and blocks until it resolves, times out, is lost, or ctx is
// cancelled.
func (c *Client) Analyze(ctx context.Context, req Request) (Result, error) {
	key := contentHash(req)

	c.mu.Lock()
	if entry, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return c.wait(ctx, entry)
	}
	entry := &pendingEntry{id: key, done: make(chan struct{})}
	c.pending[key] = entry
	c.mu.Unlock()

	go c.fulfill(entry, req)

	return c.wait(ctx, entry)
}

// Cancel removes a pending request by its content-hash id and causes any
// waiter to observe ErrCancelled; a late worker reply for this id is
// discarded (spec.md §5, "cancellation by id... ignores any late reply").
func (c *Client) Cancel(id string) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		c.resolve(entry, Result{}, ErrCancelled)
	}
}

func (c *Client) wait(ctx context.Context, entry *pendingEntry) (Result, error) {
	select {
	case <-entry.done:
		return entry.result, entry.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(c.timeout):
		c.mu.Lock()
		if c.pending[entry.id] == entry {
			delete(c.pending, entry.id)
		}
		c.mu.Unlock()
		c.resolve(entry, Result{}, ErrTimeout)
		return Result{}, ErrTimeout
	}
}

func (c *Client) resolve(entry *pendingEntry, result Result, err error) {
	c.mu.Lock()
	if entry.resolved {
		c.mu.Unlock()
		return
	}
	entry.resolved = true
	entry.result = result
	entry.err = err
	c.mu.Unlock()
	close(entry.done)
}

// fulfill dispatches entry's request to the worker (NATS, if configured
// and reachable) or resolves it immediately with the fallback sentinel.
func (c *Client) fulfill(entry *pendingEntry, req Request) {
	nc, err := c.connection()
	if err != nil || nc == nil {
		c.resolve(entry, fallbackResult(), nil)
		return
	}

	payload, err := json.Marshal(wireRequest{
		ID:         entry.id,
		Samples:    req.Samples,
		SampleRate: req.SampleRate,
		Channels:   req.Channels,
		Features:   req.Features,
	})
	if err != nil {
		c.resolve(entry, Result{}, fmt.Errorf("marshal analysis request: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	msg, err := nc.RequestWithContext(ctx, c.subject, payload)
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrNoServers) || errors.Is(err, nats.ErrConnectionDraining) {
			c.loseWorker()
			c.resolve(entry, Result{}, ErrWorkerLost)
			return
		}
		c.resolve(entry, Result{}, ErrTimeout)
		return
	}

	var resp wireResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		c.resolve(entry, Result{}, fmt.Errorf("unmarshal analysis response: %w", err))
		return
	}
	if resp.ID != entry.id {
		// Mismatched reply: discard per spec.md §4.6, and treat this
		// request as unanswered.
		c.resolve(entry, Result{}, ErrTimeout)
		return
	}
	if !resp.OK || resp.Result == nil {
		c.resolve(entry, Result{}, fmt.Errorf("analysis worker error: %s", resp.Error))
		return
	}
	result := *resp.Result
	result.ProcessingMS = resp.ProcessingMS
	c.resolve(entry, result, nil)
}

// connection returns the live NATS connection, lazily dialing (or
// redialing, after a prior worker-lost event) if a WorkerAddr is
// configured. Returns (nil, nil) in fallback-only mode.
func (c *Client) connection() (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addr == "" {
		return nil, nil
	}
	if c.nc != nil && c.nc.IsConnected() {
		return c.nc, nil
	}
	nc, err := nats.Connect(c.addr, nats.Timeout(c.timeout), nats.MaxReconnects(-1))
	if err != nil {
		c.logger.Warn().Err(err).Str("addr", c.addr).Msg("analysis worker unreachable, falling back to sentinel results")
		return nil, err
	}
	c.nc = nc
	return nc, nil
}

// loseWorker rejects every other pending request with ErrWorkerLost and
// drops the connection so the next Analyze call respawns it lazily, per
// spec.md §4.6 and §7 ("worker loss triggers one automatic re-spawn
// attempt").
func (c *Client) loseWorker() {
	c.mu.Lock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	pending := c.pending
	c.pending = make(map[string]*pendingEntry)
	c.mu.Unlock()

	for _, entry := range pending {
		c.resolve(entry, Result{}, ErrWorkerLost)
	}
}

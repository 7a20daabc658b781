package recognizer

import (
	"math"
	"time"

	"github.com/friendsincode/gesturedeck/internal/models"
)

type sample struct {
	t   time.Time
	obs models.HandObservation
}

type interHandSample struct {
	t        time.Time
	distance float64
	angle    float64
}

// handTrack keeps the rolling history one hand's recognizer needs:
// recent frames for swipe-direction dominance, recent per-frame
// candidate-class sets for temporal stability, and recent tip
// velocities for velocity stability.
type handTrack struct {
	frames     []sample
	classSets  [][]models.GestureClass
	velocities []float64
}

func (h *handTrack) pushFrame(s sample) {
	h.frames = append(h.frames, s)
	h.trimFrames()
}

func (h *handTrack) trimFrames() {
	if len(h.frames) > HistoryWindow {
		h.frames = h.frames[len(h.frames)-HistoryWindow:]
	}
	// Age out relative to the most recent frame's own timestamp, not wall
	// time, so a recognizer fed synthetic or replayed timestamps ages its
	// history consistently with the frames it was actually given.
	latest := h.frames[len(h.frames)-1].t
	cutoff := latest.Add(-HistoryMaxAge)
	i := 0
	for i < len(h.frames) && h.frames[i].t.Before(cutoff) {
		i++
	}
	h.frames = h.frames[i:]
}

// pushClassSet records one frame's full set of pre-gate candidate
// classes, so temporalStability measures "fraction of recent frames
// that classified this gesture" rather than being diluted by how many
// other gestures happened to co-occur in the same frame.
func (h *handTrack) pushClassSet(classes []models.GestureClass) {
	h.classSets = append(h.classSets, classes)
	if len(h.classSets) > HistoryWindow {
		h.classSets = h.classSets[len(h.classSets)-HistoryWindow:]
	}
}

func (h *handTrack) temporalStability(c models.GestureClass) float64 {
	if len(h.classSets) == 0 {
		return 0
	}
	matches := 0
	for _, set := range h.classSets {
		for _, prior := range set {
			if prior == c {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(h.classSets))
}

func (h *handTrack) pushVelocity(v float64) {
	h.velocities = append(h.velocities, v)
	if len(h.velocities) > HistoryWindow {
		h.velocities = h.velocities[len(h.velocities)-HistoryWindow:]
	}
}

func (h *handTrack) velocityStability() float64 {
	if len(h.velocities) < 2 {
		return 1.0
	}
	mean := 0.0
	for _, v := range h.velocities {
		mean += v
	}
	mean /= float64(len(h.velocities))
	variance := 0.0
	for _, v := range h.velocities {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(h.velocities))
	return 1.0 / (1.0 + variance)
}

// Recognizer is a stateful C8 gesture recognizer. One instance tracks
// both hands of a single session across frames.
type Recognizer struct {
	left, right handTrack
	interHand   []interHandSample
}

// New constructs an empty recognizer.
func New() *Recognizer {
	return &Recognizer{}
}

// Classify processes the current frame's observations (either may be
// nil if that hand is not currently tracked) and returns every gesture
// result that survives confidence gating. Results failing any gate are
// dropped silently, per spec.md §4.8.
func (r *Recognizer) Classify(left, right *models.HandObservation) []models.GestureResult {
	var results []models.GestureResult

	if left != nil {
		results = append(results, r.classifySingleHand(&r.left, *left)...)
	}
	if right != nil {
		results = append(results, r.classifySingleHand(&r.right, *right)...)
	}
	if left != nil && right != nil {
		results = append(results, r.classifyTwoHand(*left, *right)...)
	}
	return results
}

func (r *Recognizer) classifySingleHand(track *handTrack, obs models.HandObservation) []models.GestureResult {
	track.pushFrame(sample{t: obs.CapturedAt, obs: obs})
	velocity := track.tipVelocity()
	track.pushVelocity(velocity)

	var candidates []candidate
	if c, ok := classifyPinch(obs); ok {
		candidates = append(candidates, c)
	}
	if c, ok := classifyFist(obs); ok {
		candidates = append(candidates, c)
	}
	if c, ok := classifyPalmOpen(obs); ok {
		candidates = append(candidates, c)
	}
	candidates = append(candidates, mustCandidate(classifyFingerCount(obs)))
	if c, ok := track.classifySwipe(obs); ok {
		candidates = append(candidates, c)
	}

	// This frame's full set of candidate classes is folded into the
	// temporal-stability history before gating, including the one about
	// to be judged — otherwise a brand-new gesture could never
	// accumulate the history its own gate requires to pass.
	classes := make([]models.GestureClass, len(candidates))
	for i, c := range candidates {
		classes[i] = c.result.Class
	}
	track.pushClassSet(classes)

	var out []models.GestureResult
	for _, c := range candidates {
		c.tipVelocity = velocity
		if result, ok := r.gate(track, c); ok {
			out = append(out, result)
		}
	}
	return out
}

func mustCandidate(c candidate, ok bool) candidate {
	if !ok {
		return candidate{}
	}
	return c
}

// gate applies spec.md §4.8's confidence-gating pipeline: edge penalty,
// temporal stability, velocity stability, then the absolute floor.
func (r *Recognizer) gate(track *handTrack, c candidate) (models.GestureResult, bool) {
	result := c.result
	if c.nearEdge {
		result.Confidence *= EdgePenalty
	}
	if track.temporalStability(result.Class) < TemporalMin {
		return models.GestureResult{}, false
	}
	if track.velocityStability() < VelocityMin {
		return models.GestureResult{}, false
	}
	if result.Confidence < ConfidenceFloor {
		return models.GestureResult{}, false
	}
	return result, true
}

// tipVelocity estimates the index fingertip's speed (normalized
// units/s) from the last two recorded frames.
func (h *handTrack) tipVelocity() float64 {
	n := len(h.frames)
	if n < 2 {
		return 0
	}
	prev, cur := h.frames[n-2], h.frames[n-1]
	dt := cur.t.Sub(prev.t).Seconds()
	if dt <= 0 {
		return 0
	}
	d := dist(cur.obs.Landmarks[lmIndexTip], prev.obs.Landmarks[lmIndexTip])
	return d / dt
}

// classifySwipe requires at least SwipeDominantFrames of consistent,
// above-threshold, axis-dominant fingertip motion.
func (h *handTrack) classifySwipe(obs models.HandObservation) (candidate, bool) {
	n := len(h.frames)
	if n < SwipeDominantFrames+1 {
		return candidate{}, false
	}
	window := h.frames[n-SwipeDominantFrames-1:]

	var dir models.SwipeDirection
	speedSum := 0.0
	for i := 1; i < len(window); i++ {
		dt := window[i].t.Sub(window[i-1].t).Seconds()
		if dt <= 0 {
			return candidate{}, false
		}
		a := window[i].obs.Landmarks[lmIndexTip]
		b := window[i-1].obs.Landmarks[lmIndexTip]
		vx, vy := (a.X-b.X)/dt, (a.Y-b.Y)/dt
		frameDir, speed := dominantDirection(vx, vy)
		if speed < SwipeVelocityThreshold {
			return candidate{}, false
		}
		if i == 1 {
			dir = frameDir
		} else if frameDir != dir {
			return candidate{}, false
		}
		speedSum += speed
	}

	avgSpeed := speedSum / float64(len(window)-1)
	confidence := math.Min(1.0, avgSpeed/(SwipeVelocityThreshold*2))
	return candidate{
		result: models.GestureResult{
			Class:      models.GestureSwipe,
			Hand:       obs.Handedness,
			Confidence: confidence,
			Direction:  dir,
			Payload:    map[string]float64{"speed": avgSpeed},
			Timestamp:  obs.CapturedAt,
		},
		nearEdge: nearEdge(obs),
	}, true
}

func dominantDirection(vx, vy float64) (models.SwipeDirection, float64) {
	if math.Abs(vx) >= math.Abs(vy) {
		if vx >= 0 {
			return models.SwipeRight, math.Abs(vx)
		}
		return models.SwipeLeft, math.Abs(vx)
	}
	if vy >= 0 {
		return models.SwipeDown, math.Abs(vy)
	}
	return models.SwipeUp, math.Abs(vy)
}

// classifyTwoHand evaluates the two-hand classifiers, which require
// both hands present this frame. Two-hand results apply the absolute
// confidence floor (folded into each classifier's own separation-scaled
// confidence check below) but not the per-hand edge-penalty/temporal/
// velocity gates in gate(), since those are defined in terms of a single
// tracked hand's history and have no natural per-pair equivalent.
func (r *Recognizer) classifyTwoHand(left, right models.HandObservation) []models.GestureResult {
	centerLeft := left.Landmarks[lmWrist]
	centerRight := right.Landmarks[lmWrist]
	distance := dist(centerLeft, centerRight)
	angle := math.Atan2(centerRight.Y-centerLeft.Y, centerRight.X-centerLeft.X)

	ts := left.CapturedAt
	if right.CapturedAt.After(ts) {
		ts = right.CapturedAt
	}
	r.interHand = append(r.interHand, interHandSample{t: ts, distance: distance, angle: angle})
	if len(r.interHand) > HistoryWindow {
		r.interHand = r.interHand[len(r.interHand)-HistoryWindow:]
	}

	separationConfidence := math.Max(0.5, 1-math.Abs(distance-TwoHandSeparationTarget)/TwoHandSeparationTarget)

	var out []models.GestureResult

	if pinchL, okL := classifyPinch(left); okL {
		if pinchR, okR := classifyPinch(right); okR {
			conf := math.Min(pinchL.result.Confidence, pinchR.result.Confidence) * separationConfidence
			if conf >= ConfidenceFloor {
				out = append(out, models.GestureResult{
					Class:      models.GestureTwoHandPinch,
					Confidence: conf,
					Payload:    map[string]float64{"separation": distance},
					Timestamp:  ts,
				})
			}
		}
	}

	if result, ok := r.classifyTwoHandRotate(ts, separationConfidence); ok {
		out = append(out, result)
	}
	if result, ok := r.classifySpread(ts, separationConfidence); ok {
		out = append(out, result)
	}
	return out
}

const twoHandWindow = 10

// angleDeltaThreshold is the cumulative rotation (radians) over
// twoHandWindow frames spec.md §4.8 requires before TwoHandRotate fires.
const angleDeltaThreshold = 0.35

func (r *Recognizer) classifyTwoHandRotate(ts time.Time, separationConfidence float64) (models.GestureResult, bool) {
	n := len(r.interHand)
	if n < twoHandWindow {
		return models.GestureResult{}, false
	}
	window := r.interHand[n-twoHandWindow:]
	monotonicIncreasing, monotonicDecreasing := true, true
	for i := 1; i < len(window); i++ {
		if window[i].angle <= window[i-1].angle {
			monotonicIncreasing = false
		}
		if window[i].angle >= window[i-1].angle {
			monotonicDecreasing = false
		}
	}
	if !monotonicIncreasing && !monotonicDecreasing {
		return models.GestureResult{}, false
	}
	total := window[len(window)-1].angle - window[0].angle
	if math.Abs(total) < angleDeltaThreshold {
		return models.GestureResult{}, false
	}
	conf := math.Min(1.0, math.Abs(total)/(angleDeltaThreshold*2)) * separationConfidence
	if conf < ConfidenceFloor {
		return models.GestureResult{}, false
	}
	return models.GestureResult{
		Class:      models.GestureTwoHandRotate,
		Confidence: conf,
		Payload:    map[string]float64{"angle_delta": total},
		Timestamp:  ts,
	}, true
}

func (r *Recognizer) classifySpread(ts time.Time, separationConfidence float64) (models.GestureResult, bool) {
	n := len(r.interHand)
	if n < twoHandWindow {
		return models.GestureResult{}, false
	}
	window := r.interHand[n-twoHandWindow:]
	for i := 1; i < len(window); i++ {
		if window[i].distance <= window[i-1].distance {
			return models.GestureResult{}, false
		}
	}
	total := window[len(window)-1].distance - window[0].distance
	conf := math.Min(1.0, total/TwoHandSeparationTarget) * separationConfidence
	if conf < ConfidenceFloor {
		return models.GestureResult{}, false
	}
	return models.GestureResult{
		Class:      models.GestureSpread,
		Confidence: conf,
		Payload:    map[string]float64{"distance_delta": total},
		Timestamp:  ts,
	}, true
}

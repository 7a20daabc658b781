package recognizer

import (
	"math"
	"testing"
	"time"

	"github.com/friendsincode/gesturedeck/internal/models"
)

// baseHand returns a hand pose where every finger's MCP/PIP/tip sit
// along the same radial line from the wrist, at extendedFrac of a
// reference extension (1.0 = fully extended, near 0 = curled).
func baseHand(extendedFrac float64, captured time.Time) models.HandObservation {
	var lm [models.LandmarkCount]models.Landmark
	wrist := models.Landmark{X: 0.5, Y: 0.5, Z: 0}
	lm[lmWrist] = wrist
	type spec struct {
		mcp, pip, tip int
		angle         float64 // radians, fanned per finger around the wrist
	}
	// Each finger sits along its own ray from the wrist (angle below), so
	// distance-from-wrist still carries the curl/extension signal the
	// classifiers read, while the fan spread keeps fingertips from
	// accidentally drifting within pinch range of one another.
	specs := []spec{
		{lmThumbMCP, lmThumbIP, lmThumbTip, -1.00},
		{lmIndexMCP, lmIndexPIP, lmIndexTip, -0.25},
		{lmMiddleMCP, lmMiddlePIP, lmMiddleTip, 0.00},
		{lmRingMCP, lmRingPIP, lmRingTip, 0.25},
		{lmPinkyMCP, lmPinkyPIP, lmPinkyTip, 0.55},
	}
	at := func(angle, radius float64) models.Landmark {
		return models.Landmark{X: wrist.X + radius*math.Sin(angle), Y: wrist.Y + radius*math.Cos(angle), Z: 0}
	}
	// extendedFrac 0 folds each fingertip back near the wrist (a fist);
	// extendedFrac 1 extends it well past its PIP joint (an open hand).
	for _, s := range specs {
		lm[s.mcp] = at(s.angle, 0.05)
		lm[s.pip] = at(s.angle, 0.01+0.08*extendedFrac)
		lm[s.tip] = at(s.angle, 0.005+0.125*extendedFrac)
	}
	return models.HandObservation{Landmarks: lm, Handedness: models.HandRight, CapturedAt: captured}
}

func hasClass(results []models.GestureResult, class models.GestureClass) (models.GestureResult, bool) {
	for _, r := range results {
		if r.Class == class {
			return r, true
		}
	}
	return models.GestureResult{}, false
}

func TestFingerCountAlwaysReported(t *testing.T) {
	r := New()
	start := time.Now()
	var results []models.GestureResult
	for i := 0; i < 5; i++ {
		obs := baseHand(1.0, start.Add(time.Duration(i)*33*time.Millisecond))
		results = r.Classify(&obs, nil)
	}
	res, ok := hasClass(results, models.GestureFingerCount)
	if !ok {
		t.Fatal("expected finger_count to be reported")
	}
	if res.FingerCount != 5 {
		t.Fatalf("finger count = %d, want 5 (fully extended hand)", res.FingerCount)
	}
}

func TestPalmOpenDetectedForExtendedHand(t *testing.T) {
	r := New()
	start := time.Now()
	var results []models.GestureResult
	for i := 0; i < 6; i++ {
		obs := baseHand(1.0, start.Add(time.Duration(i)*33*time.Millisecond))
		results = r.Classify(&obs, nil)
	}
	if _, ok := hasClass(results, models.GesturePalmOpen); !ok {
		t.Fatal("expected palm_open to be reported for a fully extended hand")
	}
}

func TestFistDetectedForCurledHand(t *testing.T) {
	r := New()
	start := time.Now()
	var results []models.GestureResult
	for i := 0; i < 6; i++ {
		obs := baseHand(0.0, start.Add(time.Duration(i)*33*time.Millisecond))
		results = r.Classify(&obs, nil)
	}
	if _, ok := hasClass(results, models.GestureFist); !ok {
		t.Fatal("expected fist to be reported for a fully curled hand")
	}
}

func TestPinchDetectedWhenThumbAndIndexClose(t *testing.T) {
	r := New()
	start := time.Now()
	var results []models.GestureResult
	for i := 0; i < 6; i++ {
		obs := baseHand(0.0, start.Add(time.Duration(i)*33*time.Millisecond))
		obs.Landmarks[lmThumbTip] = models.Landmark{X: 0.61, Y: 0.61, Z: 0}
		obs.Landmarks[lmIndexTip] = models.Landmark{X: 0.615, Y: 0.615, Z: 0}
		results = r.Classify(&obs, nil)
	}
	if _, ok := hasClass(results, models.GesturePinch); !ok {
		t.Fatal("expected pinch to be reported when thumb and index tips are close")
	}
}

func TestSwipeEventuallyRecognizedUnderSustainedMotion(t *testing.T) {
	r := New()
	start := time.Now()
	x := 0.2
	var found bool
	for i := 0; i < 30; i++ {
		obs := baseHand(0.2, start.Add(time.Duration(i)*100*time.Millisecond))
		obs.Landmarks[lmIndexTip] = models.Landmark{X: x, Y: 0.5, Z: 0}
		x += 0.1 // 0.1 units / 100ms = 1.0 units/s, above the 0.5 threshold
		results := r.Classify(&obs, nil)
		if res, ok := hasClass(results, models.GestureSwipe); ok {
			if res.Direction != models.SwipeRight {
				t.Fatalf("swipe direction = %v, want right", res.Direction)
			}
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected swipe to eventually be recognized under sustained rightward motion")
	}
}

func TestTwoHandPinchRequiresBothHands(t *testing.T) {
	r := New()
	solo := New()
	start := time.Now()
	var results, rightOnly []models.GestureResult
	for i := 0; i < 4; i++ {
		t0 := start.Add(time.Duration(i) * 33 * time.Millisecond)
		left := baseHand(1.0, t0)
		left.Handedness = models.HandLeft
		left.Landmarks[lmWrist] = models.Landmark{X: 0.2, Y: 0.5, Z: 0}
		left.Landmarks[lmThumbTip] = models.Landmark{X: 0.21, Y: 0.51, Z: 0}
		left.Landmarks[lmIndexTip] = models.Landmark{X: 0.215, Y: 0.515, Z: 0}

		right := baseHand(1.0, t0)
		right.Landmarks[lmWrist] = models.Landmark{X: 0.5, Y: 0.5, Z: 0}
		right.Landmarks[lmThumbTip] = models.Landmark{X: 0.51, Y: 0.51, Z: 0}
		right.Landmarks[lmIndexTip] = models.Landmark{X: 0.515, Y: 0.515, Z: 0}

		results = r.Classify(&left, &right)
		rightOnly = solo.Classify(nil, &right)
	}
	if _, ok := hasClass(results, models.GestureTwoHandPinch); !ok {
		t.Fatal("expected two_hand_pinch when both hands pinch with typical separation")
	}
	if _, ok := hasClass(rightOnly, models.GestureTwoHandPinch); ok {
		t.Fatal("did not expect two_hand_pinch with only one hand pinching")
	}
}

func TestSpreadDetectedOnMonotonicSeparation(t *testing.T) {
	r := New()
	start := time.Now()
	separation := 0.05
	var results []models.GestureResult
	for i := 0; i < 11; i++ {
		t0 := start.Add(time.Duration(i) * 50 * time.Millisecond)
		left := baseHand(0.2, t0)
		left.Handedness = models.HandLeft
		left.Landmarks[lmWrist] = models.Landmark{X: 0.5 - separation/2, Y: 0.5, Z: 0}
		right := baseHand(0.2, t0)
		right.Landmarks[lmWrist] = models.Landmark{X: 0.5 + separation/2, Y: 0.5, Z: 0}
		results = r.Classify(&left, &right)
		separation += 0.025
	}
	if _, ok := hasClass(results, models.GestureSpread); !ok {
		t.Fatal("expected spread to be reported under monotonically increasing hand separation")
	}
}

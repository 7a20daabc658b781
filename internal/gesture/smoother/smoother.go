package smoother

import (
	"github.com/friendsincode/gesturedeck/internal/models"
)

// Smoother filters one hand's 21 landmarks (63 scalar axes) frame over
// frame. It is stateless with respect to hand identity: feeding an
// observation for a different Handedness than the last one resets every
// axis filter before smoothing, per spec.md §4.7.
type Smoother struct {
	params Params
	axes   [models.LandmarkCount][3]*axis1d
	hand   models.Handedness
	have   bool
}

// New constructs a smoother with the given parameters (see
// DefaultParams / ReduceLatencyParams).
func New(params Params) *Smoother {
	s := &Smoother{params: params}
	for i := range s.axes {
		s.axes[i][0] = newAxis1d(params)
		s.axes[i][1] = newAxis1d(params)
		s.axes[i][2] = newAxis1d(params)
	}
	return s
}

// Smooth filters obs in place, using its CapturedAt timestamp (converted
// to milliseconds) as the filter's time axis, and returns the smoothed
// observation.
func (s *Smoother) Smooth(obs models.HandObservation) models.HandObservation {
	if s.have && s.hand != obs.Handedness {
		s.reset()
	}
	s.hand = obs.Handedness
	s.have = true

	timeMS := float64(obs.CapturedAt.UnixNano()) / 1e6

	out := obs
	for i, lm := range obs.Landmarks {
		out.Landmarks[i] = models.Landmark{
			X: s.axes[i][0].update(lm.X, timeMS),
			Y: s.axes[i][1].update(lm.Y, timeMS),
			Z: s.axes[i][2].update(lm.Z, timeMS),
		}
	}
	return out
}

// Predict projects every landmark params.LookaheadMS milliseconds ahead
// of the last observation using each axis's current velocity estimate.
// It returns the zero value's Landmarks array unchanged (all zero) if no
// observation has been smoothed yet, and is a no-op projection
// (identical to the last estimate) when LookaheadMS is 0.
func (s *Smoother) Predict() [models.LandmarkCount]models.Landmark {
	var out [models.LandmarkCount]models.Landmark
	if !s.have {
		return out
	}
	for i := range out {
		out[i] = models.Landmark{
			X: s.axes[i][0].predict(s.params.LookaheadMS),
			Y: s.axes[i][1].predict(s.params.LookaheadMS),
			Z: s.axes[i][2].predict(s.params.LookaheadMS),
		}
	}
	return out
}

func (s *Smoother) reset() {
	for i := range s.axes {
		s.axes[i][0].reset()
		s.axes[i][1].reset()
		s.axes[i][2].reset()
	}
}

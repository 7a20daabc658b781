package signalnode

// EQ3 is the three-band shelving/bell EQ in the per-deck and per-stem
// signal chain: a low shelf, a mid peaking band, and a high shelf, each
// clamped to [-26,+26] dB and ramped over DefaultGainRampMS like Gain.
type EQ3 struct {
	sampleRate float64

	lowFreq, midFreq, highFreq float64
	midQ                       float64

	low, mid, high biquad
	lowRamp        *Ramp
	midRamp        *Ramp
	highRamp       *Ramp
}

// EQGainMin and EQGainMax bound every band's gain in dB (spec.md §3).
const (
	EQGainMin = -26.0
	EQGainMax = 26.0
)

// NewEQ3 constructs a flat three-band EQ with the standard DJ-mixer band
// split (low shelf at 200 Hz, mid peak at 1 kHz with Q=1, high shelf at
// 5 kHz).
func NewEQ3(sampleRate int) *EQ3 {
	eq := &EQ3{
		sampleRate: float64(sampleRate),
		lowFreq:    200,
		midFreq:    1000,
		midQ:       1.0,
		highFreq:   5000,
		lowRamp:    NewRamp(0),
		midRamp:    NewRamp(0),
		highRamp:   NewRamp(0),
	}
	eq.recoefficient()
	return eq
}

// SetBand clamps gainDB to [-26,+26] and begins a DefaultGainRampMS ramp
// toward it for the given band (0=low, 1=mid, 2=high).
func (eq *EQ3) SetBand(band int, gainDB float64) {
	gainDB = clamp(gainDB, EQGainMin, EQGainMax)
	rampSamples := msToSamples(DefaultGainRampMS, int(eq.sampleRate))
	switch band {
	case 0:
		eq.lowRamp.SetTarget(gainDB, rampSamples)
	case 1:
		eq.midRamp.SetTarget(gainDB, rampSamples)
	case 2:
		eq.highRamp.SetTarget(gainDB, rampSamples)
	}
}

// BandGain returns the current instantaneous gain, in dB, of the given band.
func (eq *EQ3) BandGain(band int) float64 {
	switch band {
	case 0:
		return eq.lowRamp.Value()
	case 1:
		return eq.midRamp.Value()
	case 2:
		return eq.highRamp.Value()
	default:
		return 0
	}
}

// Reset is the single flat-reset operation spec.md §4.2 requires: all
// three bands ramp back to 0 dB.
func (eq *EQ3) Reset() {
	eq.SetBand(0, 0)
	eq.SetBand(1, 0)
	eq.SetBand(2, 0)
}

func (eq *EQ3) recoefficient() {
	b0, b1, b2, a0, a1, a2 := lowShelfCoeffs(eq.lowFreq, eq.sampleRate, eq.lowRamp.Value(), 1.0)
	eq.low.setCoefficients(b0, b1, b2, a0, a1, a2)
	b0, b1, b2, a0, a1, a2 = peakingCoeffs(eq.midFreq, eq.sampleRate, eq.midRamp.Value(), eq.midQ)
	eq.mid.setCoefficients(b0, b1, b2, a0, a1, a2)
	b0, b1, b2, a0, a1, a2 = highShelfCoeffs(eq.highFreq, eq.sampleRate, eq.highRamp.Value(), 1.0)
	eq.high.setCoefficients(b0, b1, b2, a0, a1, a2)
}

// Process applies all three bands to buf in place. The ramps advance one
// step per sample in buf; coefficients are then recomputed once per
// block from the ramps' current instantaneous gains — cheap enough at
// block rate and avoids per-sample coefficient recalculation while the
// ramp is in flight.
func (eq *EQ3) Process(buf []float32) {
	for range buf {
		eq.lowRamp.Next()
		eq.midRamp.Next()
		eq.highRamp.Next()
	}
	eq.recoefficient()
	for i, x := range buf {
		y := eq.low.process(float64(x))
		y = eq.mid.process(y)
		y = eq.high.process(y)
		buf[i] = float32(y)
	}
}

package signalnode

import "github.com/friendsincode/gesturedeck/internal/models"

// FilterRampMS is the shorter ramp spec.md §4.2 assigns to filter cutoff
// and Q changes, so the filter stays responsive to rapid gesture input
// without clicking.
const FilterRampMS = 5.0

// FilterFreqMin, FilterFreqMax and FilterQMin, FilterQMax bound a
// Filter node's parameters (spec.md §3).
const (
	FilterFreqMin = 20.0
	FilterFreqMax = 20000.0
	FilterQMin    = 0.1
	FilterQMax    = 20.0
)

// Filter is the single biquad filter node (lowpass/highpass/bandpass/
// notch) in the per-deck signal chain, positioned after EQ3.
type Filter struct {
	sampleRate float64
	typ        models.FilterType
	bypass     bool

	freqRamp *Ramp
	qRamp    *Ramp
	core     biquad
}

// NewFilter constructs a bypassed lowpass filter at 20 kHz, Q=0.707
// (Butterworth), matching a transparent default.
func NewFilter(sampleRate int) *Filter {
	f := &Filter{
		sampleRate: float64(sampleRate),
		typ:        models.FilterLowpass,
		bypass:     true,
		freqRamp:   NewRamp(FilterFreqMax),
		qRamp:      NewRamp(0.707),
	}
	f.recoefficient()
	return f
}

// Set clamps frequency to [20,20000] Hz and Q to [0.1,20], begins a
// FilterRampMS ramp toward both, and switches the filter topology and
// bypass flag immediately (the spec only ramps the continuous
// parameters, not the discrete type/bypass selection).
func (f *Filter) Set(params models.FilterParams) {
	f.typ = params.Type
	f.bypass = !params.Enabled
	rampSamples := msToSamples(FilterRampMS, int(f.sampleRate))
	f.freqRamp.SetTarget(clamp(params.Frequency, FilterFreqMin, FilterFreqMax), rampSamples)
	f.qRamp.SetTarget(clamp(params.Q, FilterQMin, FilterQMax), rampSamples)
}

func (f *Filter) recoefficient() {
	freq := f.freqRamp.Value()
	q := f.qRamp.Value()
	var b0, b1, b2, a0, a1, a2 float64
	switch f.typ {
	case models.FilterHighpass:
		b0, b1, b2, a0, a1, a2 = highpassCoeffs(freq, f.sampleRate, q)
	case models.FilterBandpass:
		b0, b1, b2, a0, a1, a2 = bandpassCoeffs(freq, f.sampleRate, q)
	case models.FilterNotch:
		b0, b1, b2, a0, a1, a2 = notchCoeffs(freq, f.sampleRate, q)
	default:
		b0, b1, b2, a0, a1, a2 = lowpassCoeffs(freq, f.sampleRate, q)
	}
	f.core.setCoefficients(b0, b1, b2, a0, a1, a2)
}

// Process applies the filter to buf in place, unless bypassed.
func (f *Filter) Process(buf []float32) {
	if f.bypass {
		return
	}
	for range buf {
		f.freqRamp.Next()
		f.qRamp.Next()
	}
	f.recoefficient()
	for i, x := range buf {
		buf[i] = float32(f.core.process(float64(x)))
	}
}

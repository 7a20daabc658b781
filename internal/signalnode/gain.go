package signalnode

// DefaultGainRampMS is the standard ramp applied to gain-like parameter
// changes (spec.md §4.2).
const DefaultGainRampMS = 10.0

// Gain is the single-parameter volume node at the head (and, via the
// channel strip, the tail) of a deck's signal chain.
type Gain struct {
	sampleRate int
	ramp       *Ramp
}

// NewGain constructs a Gain node at unity.
func NewGain(sampleRate int) *Gain {
	return &Gain{sampleRate: sampleRate, ramp: NewRamp(1.0)}
}

// Set clamps value to [0,1] and begins a ramp of rampMs (DefaultGainRampMS
// when rampMs<=0) toward it.
func (g *Gain) Set(value float64, rampMs float64) {
	if rampMs <= 0 {
		rampMs = DefaultGainRampMS
	}
	g.ramp.SetTarget(clamp(value, 0, 1), msToSamples(rampMs, g.sampleRate))
}

// Value returns the current instantaneous gain.
func (g *Gain) Value() float64 {
	return g.ramp.Value()
}

// Process applies the node's (possibly still-ramping) gain to buf in
// place, one sample at a time.
func (g *Gain) Process(buf []float32) {
	for i := range buf {
		buf[i] = float32(float64(buf[i]) * g.ramp.Next())
	}
}

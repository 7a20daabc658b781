package signalnode

import "math"

// ReverbRT60 is the fixed decay time the comb filters are tuned for.
// As with Delay, the spec exposes only a single send level per effect,
// so the room characteristics are internal constants.
const ReverbRT60 = 1.6

// combDelaysMS and allpassDelaysMS are the classic Schroeder reverb tap
// lengths (scaled to this host's sample rate at construction), chosen
// to be mutually prime enough that their periodic comb resonances don't
// reinforce each other.
var (
	combDelaysMS    = []float64{29.7, 37.1, 41.1, 43.7}
	allpassDelaysMS = []float64{5.0, 1.7}
)

type combFilter struct {
	buf  []float32
	pos  int
	gain float64
}

func newCombFilter(sampleRate int, delayMS, rt60 float64) *combFilter {
	n := msToSamples(delayMS, sampleRate)
	if n < 1 {
		n = 1
	}
	gain := combGain(float64(n), sampleRate, rt60)
	return &combFilter{buf: make([]float32, n), gain: gain}
}

// combGain derives the feedback gain that decays a comb filter's tail
// by 60 dB over rt60 seconds, given its delay length in samples.
func combGain(delaySamples float64, sampleRate int, rt60 float64) float64 {
	if rt60 <= 0 {
		return 0
	}
	return math.Pow(10, -3*delaySamples/(rt60*float64(sampleRate)))
}

func (c *combFilter) process(x float64) float64 {
	out := float64(c.buf[c.pos])
	c.buf[c.pos] = float32(x + c.gain*out)
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

type allpassFilter struct {
	buf  []float32
	pos  int
	gain float64
}

func newAllpassFilter(sampleRate int, delayMS, gain float64) *allpassFilter {
	n := msToSamples(delayMS, sampleRate)
	if n < 1 {
		n = 1
	}
	return &allpassFilter{buf: make([]float32, n), gain: gain}
}

func (a *allpassFilter) process(x float64) float64 {
	bufOut := float64(a.buf[a.pos])
	y := -a.gain*x + bufOut
	a.buf[a.pos] = float32(x + a.gain*y)
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return y
}

// Reverb is a Schroeder reverb (four parallel comb filters summed into
// two series allpass filters) — the second of the two effect nodes in
// the per-deck "effects" stage. Its only externally configurable
// parameter is the send level, set via Deck.SetEffectSend("reverb",
// level).
type Reverb struct {
	sampleRate int
	combs      []*combFilter
	allpasses  []*allpassFilter
	send       *Ramp
}

// NewReverb constructs a Reverb tuned to ReverbRT60 with the send muted.
func NewReverb(sampleRate int) *Reverb {
	r := &Reverb{sampleRate: sampleRate, send: NewRamp(0)}
	for _, ms := range combDelaysMS {
		r.combs = append(r.combs, newCombFilter(sampleRate, ms, ReverbRT60))
	}
	for _, ms := range allpassDelaysMS {
		r.allpasses = append(r.allpasses, newAllpassFilter(sampleRate, ms, 0.5))
	}
	return r
}

// SetSend clamps level to [0,1] and ramps the wet mix toward it over
// DefaultGainRampMS.
func (r *Reverb) SetSend(level float64) {
	r.send.SetTarget(clamp(level, 0, 1), msToSamples(DefaultGainRampMS, r.sampleRate))
}

// Send returns the current instantaneous send level.
func (r *Reverb) Send() float64 {
	return r.send.Value()
}

// Process mixes the reverberated signal back into buf in place.
func (r *Reverb) Process(buf []float32) {
	for i, x := range buf {
		wet := r.send.Next()
		dry := float64(x)
		sum := 0.0
		for _, c := range r.combs {
			sum += c.process(dry)
		}
		sum /= float64(len(r.combs))
		for _, a := range r.allpasses {
			sum = a.process(sum)
		}
		buf[i] = float32(dry + sum*wet)
	}
}

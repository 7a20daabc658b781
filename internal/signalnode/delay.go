package signalnode

// DelayTimeMS and DelayFeedback are the fixed characteristics of the
// delay effect send (spec.md's GestureMapping only exposes a single
// send-level control per effect, not per-parameter access, so the
// delay time and feedback are internal constants rather than setters).
const (
	DelayTimeMS   = 350.0
	DelayFeedback = 0.35
)

// Delay is a single-tap feedback delay line, one of the two effect
// nodes in the "effects" stage of the per-deck signal chain (spec.md
// §1: "... → filter → effects → channel gain → ..."). Its only
// externally configurable parameter is the send (wet) level, set via
// Deck.SetEffectSend("delay", level).
type Delay struct {
	sampleRate int
	buf        []float32
	pos        int
	feedback   float64
	send       *Ramp
}

// NewDelay constructs a Delay line at DelayTimeMS with the send muted.
func NewDelay(sampleRate int) *Delay {
	n := msToSamples(DelayTimeMS, sampleRate)
	if n < 1 {
		n = 1
	}
	return &Delay{
		sampleRate: sampleRate,
		buf:        make([]float32, n),
		feedback:   DelayFeedback,
		send:       NewRamp(0),
	}
}

// SetSend clamps level to [0,1] and ramps the wet mix toward it over
// DefaultGainRampMS, matching the ramp this package applies to every
// other send/gain-like parameter.
func (d *Delay) SetSend(level float64) {
	d.send.SetTarget(clamp(level, 0, 1), msToSamples(DefaultGainRampMS, d.sampleRate))
}

// Send returns the current instantaneous send level.
func (d *Delay) Send() float64 {
	return d.send.Value()
}

// Process mixes the delayed, feedback-attenuated signal back into buf
// in place.
func (d *Delay) Process(buf []float32) {
	for i, x := range buf {
		wet := d.send.Next()
		tapped := d.buf[d.pos]
		d.buf[d.pos] = x + float32(d.feedback)*tapped
		d.pos++
		if d.pos >= len(d.buf) {
			d.pos = 0
		}
		buf[i] = x + tapped*float32(wet)
	}
}

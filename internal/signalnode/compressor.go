package signalnode

import "math"

// LimiterMaxThresholdDB is the ceiling spec.md §4.2 places on the master
// limiter's threshold: it may never be configured above -1 dBFS.
const LimiterMaxThresholdDB = -1.0

// Compressor implements a fixed-topology feed-forward gain-reduction
// node: a peak detector with independent attack/release time constants
// feeding a static threshold/ratio curve. The master bus uses it once,
// via NewLimiter, as a hard limiter with an effectively infinite ratio
// and a clamped threshold.
type Compressor struct {
	sampleRate float64

	thresholdDB float64
	ratio       float64
	attackMS    float64
	releaseMS   float64
	isLimiter   bool

	envelope float64 // running peak envelope, linear
}

// NewCompressor constructs a compressor at a transparent default
// (threshold 0 dBFS, ratio 1:1 — no gain reduction until configured).
func NewCompressor(sampleRate int) *Compressor {
	return &Compressor{
		sampleRate:  float64(sampleRate),
		thresholdDB: 0,
		ratio:       1,
		attackMS:    10,
		releaseMS:   100,
	}
}

// NewLimiter constructs the master-bus limiter: ratio effectively
// infinite (20:1 is audibly indistinguishable from brickwall at these
// attack/release times) and threshold clamped to LimiterMaxThresholdDB.
func NewLimiter(sampleRate int) *Compressor {
	return &Compressor{
		sampleRate:  float64(sampleRate),
		thresholdDB: LimiterMaxThresholdDB,
		ratio:       20,
		attackMS:    1,
		releaseMS:   50,
		isLimiter:   true,
	}
}

// SetParams configures threshold/ratio/attack/release. On a limiter,
// threshold is clamped to never exceed LimiterMaxThresholdDB.
func (c *Compressor) SetParams(thresholdDB, ratio, attackMS, releaseMS float64) {
	if c.isLimiter && thresholdDB > LimiterMaxThresholdDB {
		thresholdDB = LimiterMaxThresholdDB
	}
	c.thresholdDB = thresholdDB
	if ratio < 1 {
		ratio = 1
	}
	c.ratio = ratio
	c.attackMS = math.Max(0.1, attackMS)
	c.releaseMS = math.Max(0.1, releaseMS)
}

// Process applies gain reduction to buf in place using a classic
// one-pole envelope follower in the linear domain.
func (c *Compressor) Process(buf []float32) {
	attackCoeff := timeConstantCoeff(c.attackMS, c.sampleRate)
	releaseCoeff := timeConstantCoeff(c.releaseMS, c.sampleRate)
	thresholdLin := math.Pow(10, c.thresholdDB/20)

	for i, x := range buf {
		in := math.Abs(float64(x))
		if in > c.envelope {
			c.envelope = attackCoeff*c.envelope + (1-attackCoeff)*in
		} else {
			c.envelope = releaseCoeff*c.envelope + (1-releaseCoeff)*in
		}

		gain := 1.0
		if c.envelope > thresholdLin && c.envelope > 0 {
			envDB := 20 * math.Log10(c.envelope)
			overDB := envDB - c.thresholdDB
			reducedDB := overDB - overDB/c.ratio
			gain = math.Pow(10, -reducedDB/20)
		}
		buf[i] = float32(float64(x) * gain)
	}
}

func timeConstantCoeff(ms, sampleRate float64) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (ms / 1000.0 * sampleRate))
}

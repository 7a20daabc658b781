package signalnode

import "testing"

func TestLimiterThresholdClampedToCeiling(t *testing.T) {
	lim := NewLimiter(48000)
	lim.SetParams(0, 20, 1, 50)
	if lim.thresholdDB != LimiterMaxThresholdDB {
		t.Fatalf("limiter threshold = %v, want %v", lim.thresholdDB, LimiterMaxThresholdDB)
	}
}

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	c := NewCompressor(48000)
	c.SetParams(-12, 4, 1, 10)
	buf := make([]float32, 2000)
	for i := range buf {
		buf[i] = 1.0
	}
	c.Process(buf)
	if buf[len(buf)-1] >= 1.0 {
		t.Fatalf("compressor did not reduce a signal above threshold: got %v", buf[len(buf)-1])
	}
}

func TestCompressorRatioFloorIsUnity(t *testing.T) {
	c := NewCompressor(48000)
	c.SetParams(-12, 0, 10, 100)
	if c.ratio != 1 {
		t.Fatalf("ratio = %v, want floor of 1", c.ratio)
	}
}

package signalnode

import (
	"testing"

	"github.com/friendsincode/gesturedeck/internal/models"
)

func TestFilterSetClampsFrequencyAndQ(t *testing.T) {
	f := NewFilter(48000)
	f.Set(models.FilterParams{Type: models.FilterLowpass, Frequency: 50000, Q: 50, Enabled: true})
	for i := 0; i < 1000; i++ {
		f.Process(make([]float32, 1))
	}
	if got := f.freqRamp.Value(); got != FilterFreqMax {
		t.Fatalf("frequency = %v, want %v", got, FilterFreqMax)
	}
	if got := f.qRamp.Value(); got != FilterQMax {
		t.Fatalf("Q = %v, want %v", got, FilterQMax)
	}
}

func TestFilterBypassLeavesSignalUnchanged(t *testing.T) {
	f := NewFilter(48000)
	f.Set(models.FilterParams{Type: models.FilterLowpass, Frequency: 1000, Q: 1, Enabled: false})
	buf := []float32{0.1, 0.2, -0.3, 0.4}
	want := append([]float32(nil), buf...)
	f.Process(buf)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("bypassed filter modified sample %d: got %v, want %v", i, buf[i], want[i])
		}
	}
}

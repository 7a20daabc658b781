package signalnode

import "testing"

func TestDelayMutedSendLeavesSignalUnchanged(t *testing.T) {
	d := NewDelay(48000)
	buf := []float32{0.1, 0.2, 0.3, 0.4}
	want := append([]float32(nil), buf...)
	d.Process(buf)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("muted send modified sample %d: got %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestDelaySendFeedsTappedSignalBack(t *testing.T) {
	d := NewDelay(48000)
	d.SetSend(1.0)
	for i := 0; i < msToSamples(DefaultGainRampMS, 48000)+1; i++ {
		d.Process(make([]float32, 1))
	}
	if got := d.Send(); got != 1.0 {
		t.Fatalf("Send() = %v, want 1.0", got)
	}

	buf := make([]float32, len(d.buf)+1)
	buf[0] = 1.0
	d.Process(buf)
	tapIndex := len(d.buf)
	if buf[tapIndex] == 0 {
		t.Fatalf("expected the delayed tap to reappear at sample %d", tapIndex)
	}
}

package signalnode

import "math"

// biquad is a direct-form-I biquad section, the building block for both
// EQ3's shelving/bell bands and Filter's lowpass/highpass/bandpass/notch
// modes. Coefficients follow the RBJ Audio EQ Cookbook formulas; no
// third-party DSP library appears anywhere in the retrieved example
// pack (grimnir_radio shells out to GStreamer for all of its filtering),
// so this is hand-written against a well-known public formula set rather
// than grounded in any example repo.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) setCoefficients(b0, b1, b2, a0, a1, a2 float64) {
	f.b0 = b0 / a0
	f.b1 = b1 / a0
	f.b2 = b2 / a0
	f.a1 = a1 / a0
	f.a2 = a2 / a0
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

func lowShelfCoeffs(freq, sampleRate, gainDB, shelfSlope float64) (b0, b1, b2, a0, a1, a2 float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / 2 * math.Sqrt((a+1/a)*(1/shelfSlope-1)+2)
	cosw0 := math.Cos(w0)
	sqrtA := math.Sqrt(a)

	b0 = a * ((a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 = 2 * a * ((a - 1) - (a+1)*cosw0)
	b2 = a * ((a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 = (a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha
	a1 = -2 * ((a - 1) + (a+1)*cosw0)
	a2 = (a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha
	return
}

func highShelfCoeffs(freq, sampleRate, gainDB, shelfSlope float64) (b0, b1, b2, a0, a1, a2 float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / 2 * math.Sqrt((a+1/a)*(1/shelfSlope-1)+2)
	cosw0 := math.Cos(w0)
	sqrtA := math.Sqrt(a)

	b0 = a * ((a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 = -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 = a * ((a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 = (a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha
	a1 = 2 * ((a - 1) - (a+1)*cosw0)
	a2 = (a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha
	return
}

func peakingCoeffs(freq, sampleRate, gainDB, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = 1 + alpha*a
	b1 = -2 * cosw0
	b2 = 1 - alpha*a
	a0 = 1 + alpha/a
	a1 = -2 * cosw0
	a2 = 1 - alpha/a
	return
}

func lowpassCoeffs(freq, sampleRate, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = (1 - cosw0) / 2
	b1 = 1 - cosw0
	b2 = (1 - cosw0) / 2
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func highpassCoeffs(freq, sampleRate, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = (1 + cosw0) / 2
	b1 = -(1 + cosw0)
	b2 = (1 + cosw0) / 2
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func bandpassCoeffs(freq, sampleRate, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = alpha
	b1 = 0
	b2 = -alpha
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

func notchCoeffs(freq, sampleRate, q float64) (b0, b1, b2, a0, a1, a2 float64) {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 = 1
	b1 = -2 * cosw0
	b2 = 1
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha
	return
}

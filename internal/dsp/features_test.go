package dsp

import (
	"math"
	"testing"
)

// sine generates n samples of a sine wave at freq Hz and the given
// amplitude, sampled at rate Hz.
func sine(n int, freq, amplitude float64, rate int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	if got := e.Extract(nil); len(got) != 0 {
		t.Errorf("Extract(nil) = %v, want empty vector", got)
	}
	if got := e.Extract([]float64{}); len(got) != 0 {
		t.Errorf("Extract(empty) = %v, want empty vector", got)
	}
}

func TestExtract_Silence(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	v := e.Extract(make([]float64, 1024))

	for _, name := range []string{"rms_energy", "zero_crossing_rate", "peak_amplitude", "onset_count"} {
		if got := v.Value(name); got != 0 {
			t.Errorf("silence %s = %v, want 0", name, got)
		}
	}
}

func TestExtract_SineRMS(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	v := e.Extract(sine(1024, 500, 0.8, 16000))

	want := 0.8 / math.Sqrt2
	if got := v.Value("rms_energy"); math.Abs(got-want) > 0.01 {
		t.Errorf("rms_energy = %v, want %v ± 0.01", got, want)
	}
	if got := v.Value("peak_amplitude"); math.Abs(got-0.8) > 0.01 {
		t.Errorf("peak_amplitude = %v, want 0.8 ± 0.01", got)
	}
}

func TestExtract_ZeroCrossingRate(t *testing.T) {
	t.Parallel()

	// Alternating polarity: every adjacent pair crosses zero, two sign
	// units per crossing.
	samples := make([]float64, 100)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}

	e := NewExtractor(16000)
	if got := e.Extract(samples).Value("zero_crossing_rate"); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("zero_crossing_rate = %v, want 2.0", got)
	}
}

func TestExtract_BandRatios(t *testing.T) {
	t.Parallel()

	// 500 Hz lands in both the mid band and the laughter band and nowhere
	// near the high band.
	e := NewExtractor(16000)
	v := e.Extract(sine(1024, 500, 0.5, 16000))

	if got := v.Value("laughter_freq_ratio"); got < 0.9 {
		t.Errorf("laughter_freq_ratio = %v, want >= 0.9", got)
	}
	if got := v.Value("high_freq_ratio"); got > 0.05 {
		t.Errorf("high_freq_ratio = %v, want <= 0.05", got)
	}
}

func TestExtract_SpectralCentroid(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	// 1000 Hz is bin-exact for 1024 samples at 16 kHz (bin width 15.625).
	v := e.Extract(sine(1024, 1000, 0.5, 16000))

	got := v.Value("spectral_centroid")
	if math.Abs(got-1000) > 100 {
		t.Errorf("spectral_centroid = %v, want 1000 ± 100", got)
	}
}

func TestEstimatePitch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		freq float64
		want float64
	}{
		{"200hz", 200, 200},
		{"100hz", 100, 100},
		{"320hz", 320, 320},
	}

	e := NewExtractor(16000)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := e.EstimatePitch(sine(4000, tt.freq, 0.5, 16000))
			if math.Abs(got-tt.want) > 5 {
				t.Errorf("EstimatePitch(%v Hz sine) = %v, want %v ± 5", tt.freq, got, tt.want)
			}
		})
	}
}

func TestEstimatePitch_UnvoicedAndShort(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	if got := e.EstimatePitch(make([]float64, 4000)); got != 0 {
		t.Errorf("EstimatePitch(silence) = %v, want 0", got)
	}
	// Shorter than the maximum pitch period: no estimate possible.
	if got := e.EstimatePitch(sine(100, 200, 0.5, 16000)); got != 0 {
		t.Errorf("EstimatePitch(short) = %v, want 0", got)
	}
}

func TestExtract_PitchStatistics(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	// Two seconds, long enough for per-segment pitch tracking.
	v := e.Extract(sine(32000, 200, 0.5, 16000))

	if _, ok := v.Get("pitch_mean"); !ok {
		t.Fatal("pitch_mean missing for a long voiced signal")
	}
	if got := v.Value("pitch_mean"); math.Abs(got-200) > 10 {
		t.Errorf("pitch_mean = %v, want 200 ± 10", got)
	}
	if got := v.Value("pitch_range"); got > 20 {
		t.Errorf("pitch_range = %v for a steady tone, want <= 20", got)
	}
}

func TestExtract_ShortFrameOmitsPitchStats(t *testing.T) {
	t.Parallel()

	e := NewExtractor(16000)
	v := e.Extract(sine(1024, 200, 0.5, 16000))

	if _, ok := v.Get("pitch_mean"); ok {
		t.Error("pitch_mean present for a frame shorter than 100 ms")
	}
}

func TestExtract_Onsets(t *testing.T) {
	t.Parallel()

	// Three loud bursts separated by silence over one second.
	rate := 16000
	samples := make([]float64, rate)
	burst := sine(800, 400, 0.9, rate)
	for _, start := range []int{1000, 6000, 11000} {
		copy(samples[start:], burst)
	}

	e := NewExtractor(rate)
	v := e.Extract(samples)

	if got := v.Value("onset_count"); got < 2 {
		t.Errorf("onset_count = %v, want >= 2", got)
	}
	if got := v.Value("rhythm_regularity"); got <= 0 {
		t.Errorf("rhythm_regularity = %v, want > 0", got)
	}
}

func TestVector_Get(t *testing.T) {
	t.Parallel()

	v := Vector{"rms_energy": 0.25}

	if got, ok := v.Get("rms_energy"); !ok || got != 0.25 {
		t.Errorf("Get(rms_energy) = %v, %v; want 0.25, true", got, ok)
	}
	if _, ok := v.Get("pitch_mean"); ok {
		t.Error("Get(pitch_mean) reported a missing feature as present")
	}
	if got := v.Value("pitch_mean"); got != 0 {
		t.Errorf("Value(pitch_mean) = %v, want 0", got)
	}
}

func TestPopStd(t *testing.T) {
	t.Parallel()

	// Population std of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	got := popStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("popStd = %v, want 2.0", got)
	}
	if got := popStd(nil); got != 0 {
		t.Errorf("popStd(nil) = %v, want 0", got)
	}
}

package emotion

import (
	"math"
	"testing"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/dsp"
	"github.com/LordBoos/smartclip/pkg/audio"
)

// laughterFrame synthesises a bright, energetic burst: two tones inside the
// laughter band at bin-exact frequencies for a 1024-sample FFT at 16 kHz.
func laughterFrame() audio.Frame {
	samples := make([]float64, 1024)
	for i := range samples {
		t := float64(i) / 16000.0
		samples[i] = 0.4*math.Sin(2*math.Pi*500*t) + 0.4*math.Sin(2*math.Pi*937.5*t)
	}
	return audio.Frame{Samples: samples, SampleRate: 16000, Timestamp: time.Now()}
}

func TestClassify_Silence(t *testing.T) {
	t.Parallel()

	c := New(16000, nil, 0.5)
	frame := audio.Frame{Samples: make([]float64, 1024), SampleRate: 16000}

	if got := c.Classify(frame); got != nil {
		t.Errorf("Classify(silence) = %+v, want nil", got)
	}
}

func TestClassify_Laughter(t *testing.T) {
	t.Parallel()

	c := New(16000, nil, 0.5)
	got := c.Classify(laughterFrame())

	if got == nil {
		t.Fatal("Classify(laughter burst) = nil, want a detection")
	}
	if got.Detector != detect.KindBasicEmotion {
		t.Errorf("Detector = %q, want %q", got.Detector, detect.KindBasicEmotion)
	}
	if got.Label != string(Laughter) {
		t.Errorf("Label = %q, want %q", got.Label, Laughter)
	}
	if got.Confidence <= 0.5 || got.Confidence > 1.0 {
		t.Errorf("Confidence = %v, want in (0.5, 1.0]", got.Confidence)
	}
	if _, ok := got.Features.Get("intensity"); !ok {
		t.Error("Features missing intensity")
	}
}

func TestClassify_SensitivityGate(t *testing.T) {
	t.Parallel()

	c := New(16000, nil, 0.5)
	c.SetSensitivity(1.0)

	if got := c.Classify(laughterFrame()); got != nil {
		t.Errorf("Classify at sensitivity 1.0 = %+v, want nil", got)
	}
}

func TestConfidenceFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		emotion  Emotion
		features dsp.Vector
		want     float64
	}{
		{
			name:    "laughter scores threshold and band evidence",
			emotion: Laughter,
			features: dsp.Vector{
				"rms_energy":          0.2,
				"pitch_range":         150,
				"laughter_freq_ratio": 0.4,
				"high_freq_ratio":     0.1,
			},
			// mean of {min(1, 150/100)=1, 0.4*2, 0.1}
			want: (1.0 + 0.8 + 0.1) / 3,
		},
		{
			name:    "below energy floor",
			emotion: Laughter,
			features: dsp.Vector{
				"rms_energy":  0.05,
				"pitch_range": 150,
			},
			want: 0,
		},
		{
			name:    "sadness satisfies pitch ceiling",
			emotion: Sadness,
			features: dsp.Vector{
				"rms_energy":     0.05,
				"low_freq_ratio": 0.5,
				"pitch_mean":     120,
			},
			want: 1.0,
		},
		{
			name:    "sadness violates pitch ceiling",
			emotion: Sadness,
			features: dsp.Vector{
				"rms_energy":     0.05,
				"low_freq_ratio": 0.5,
				"pitch_mean":     200,
			},
			want: 0.5,
		},
		{
			name:    "missing features contribute nothing",
			emotion: Surprise,
			features: dsp.Vector{
				"rms_energy":  0.2,
				"onset_count": 4,
			},
			// pitch_range is absent, only min(1, 4/2) capped at 1 remains
			want: 1.0,
		},
		{
			name:     "unknown emotion",
			emotion:  Emotion("boredom"),
			features: dsp.Vector{"rms_energy": 0.5},
			want:     0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := confidenceFor(tt.emotion, tt.features)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidenceFor(%s) = %v, want %v", tt.emotion, got, tt.want)
			}
		})
	}
}

func TestSmooth_RepeatBoost(t *testing.T) {
	t.Parallel()

	c := New(16000, nil, 0.5)

	// The first two detections pass through untouched: smoothing needs
	// three history entries before it kicks in.
	if got := c.smooth(Joy, 0.4); math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("first smooth = %v, want 0.4 unchanged", got)
	}
	if got := c.smooth(Laughter, 0.5); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("second smooth = %v, want 0.5 unchanged (only two entries)", got)
	}

	// Third detection repeats laughter: boosted to 0.6 and averaged with
	// the pre-boost confidences of the two laughter hits.
	got := c.smooth(Laughter, 0.5)
	want := (0.5 + 0.5 + 0.6) / 3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("third smooth = %v, want %v", got, want)
	}
}

func TestSmooth_DifferentEmotionNoBoost(t *testing.T) {
	t.Parallel()

	c := New(16000, nil, 0.5)
	c.smooth(Laughter, 0.5)
	c.smooth(Laughter, 0.5)

	got := c.smooth(Joy, 0.7)
	if math.Abs(got-0.7) > 1e-9 {
		t.Errorf("smooth for a different emotion = %v, want 0.7 unchanged", got)
	}
}

func TestSensitivityClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0.01, 0.1},
		{-1, 0.1},
		{5, 1.0},
	}
	for _, tt := range tests {
		tt := tt
		c := New(16000, nil, tt.in)
		if got := c.Sensitivity(); got != tt.want {
			t.Errorf("New sensitivity %v -> %v, want %v", tt.in, got, tt.want)
		}
	}

	c := New(16000, nil, 0.5)
	c.SetSensitivity(2.0)
	if got := c.Sensitivity(); got != 1.0 {
		t.Errorf("SetSensitivity(2.0) -> %v, want 1.0", got)
	}
}

func TestNew_FiltersUnknownEmotions(t *testing.T) {
	t.Parallel()

	c := New(16000, []Emotion{Laughter, Emotion("boredom")}, 0.5)
	if len(c.enabled) != 1 || c.enabled[0] != Laughter {
		t.Errorf("enabled = %v, want [laughter]", c.enabled)
	}
}

func TestIntensity(t *testing.T) {
	t.Parallel()

	v := dsp.Vector{
		"rms_energy":        0.3,
		"spectral_centroid": 1000,
		"pitch_range":       100,
	}
	// 0.5 + 0.15 + 0.1
	if got := intensity(v); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("intensity = %v, want 0.75", got)
	}

	loud := dsp.Vector{"rms_energy": 3.0}
	if got := intensity(loud); got != 1.0 {
		t.Errorf("intensity capped = %v, want 1.0", got)
	}
}

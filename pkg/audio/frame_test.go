package audio

import (
	"testing"
	"time"
)

func TestFrameClone(t *testing.T) {
	t.Parallel()

	orig := Frame{
		Samples:    []float64{0.1, 0.2, 0.3},
		SampleRate: 16000,
		Timestamp:  time.Now(),
	}
	clone := orig.Clone()

	clone.Samples[0] = 9.9
	if orig.Samples[0] != 0.1 {
		t.Error("Clone shares the sample slice with the original")
	}
	if clone.SampleRate != orig.SampleRate || !clone.Timestamp.Equal(orig.Timestamp) {
		t.Errorf("Clone = %+v, want matching metadata", clone)
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := Frame{Samples: make([]float64, 16000), SampleRate: 16000}
	if got := f.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}

	f = Frame{Samples: make([]float64, 8000), SampleRate: 16000}
	if got := f.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", got)
	}

	if got := (Frame{Samples: make([]float64, 100)}).Duration(); got != 0 {
		t.Errorf("Duration without a sample rate = %v, want 0", got)
	}
}

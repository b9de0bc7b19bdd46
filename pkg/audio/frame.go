// Package audio defines the core audio frame types shared by the capture
// layer and the detection pipeline.
//
// All pipeline processing operates on mono float64 samples normalised to the
// range [-1.0, 1.0]. Conversion helpers for 16-bit signed little-endian PCM
// (the interchange format used by speech recognisers and capture tools) live
// in this package so that every component agrees on one representation.
package audio

import "time"

// DefaultSampleRate is the sample rate (Hz) the detection pipeline is tuned
// for. Capture sources should resample to this rate before handing frames to
// the pipeline.
const DefaultSampleRate = 16000

// DefaultFrameSize is the number of samples per captured frame. At 16 kHz
// this is 64 ms of audio.
const DefaultFrameSize = 1024

// Frame is a single chunk of mono audio handed to the detection pipeline.
type Frame struct {
	// Samples holds normalised mono samples in [-1.0, 1.0].
	Samples []float64

	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Timestamp is the capture time of the first sample.
	Timestamp time.Time
}

// Clone returns a deep copy of the frame. The pipeline fans one frame out to
// several independently-paced consumers, so each consumer gets its own copy.
func (f Frame) Clone() Frame {
	samples := make([]float64, len(f.Samples))
	copy(samples, f.Samples)
	return Frame{
		Samples:    samples,
		SampleRate: f.SampleRate,
		Timestamp:  f.Timestamp,
	}
}

// Duration returns the play time covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

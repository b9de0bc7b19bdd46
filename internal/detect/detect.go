// Package detect defines the result types shared by all detectors in the
// pipeline. Each detector consumes audio frames and emits [Result] values;
// the pipeline coordinator merges those streams, applies cooldowns, and
// forwards survivors to quality scoring.
package detect

import (
	"time"

	"github.com/LordBoos/smartclip/internal/dsp"
)

// Kind identifies which detector produced a result. The reliability
// weighting in quality scoring and the per-detector metrics both key off
// this value.
type Kind string

const (
	// KindBasicEmotion is the heuristic emotion classifier driven by
	// spectral and prosodic features.
	KindBasicEmotion Kind = "basic_emotion"

	// KindAcousticML is the windowed acoustic classifier driven by the
	// low-level feature backend.
	KindAcousticML Kind = "acoustic_ml"

	// KindSpeech is the trigger-phrase matcher driven by a speech
	// recogniser.
	KindSpeech Kind = "speech"
)

// IsValid reports whether k is a known detector kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindBasicEmotion, KindAcousticML, KindSpeech:
		return true
	}
	return false
}

// Result is a single detection event.
type Result struct {
	// Detector identifies the producing detector.
	Detector Kind

	// Label is the detected emotion name or the matched trigger phrase.
	Label string

	// Confidence is the detector's confidence in [0.0, 1.0].
	Confidence float64

	// Timestamp is when the detection fired.
	Timestamp time.Time

	// Features is the feature snapshot the detection was derived from.
	// May be nil for detectors that do not extract features (speech).
	Features dsp.Vector
}

// ClampConfidence bounds c to [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

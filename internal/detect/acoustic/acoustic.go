// Package acoustic implements the windowed acoustic classifier. It buffers
// the frame stream into overlapping two-second analysis windows, reduces
// each window to a small set of voice features through a pluggable
// [FeatureBackend], and maps those features onto emotion labels with a
// fixed decision cascade.
package acoustic

import "math"

// FeatureSet is the low-level voice description a backend produces for one
// analysis window. All values are normalised scores, not physical units.
type FeatureSet struct {
	// Energy is the overall loudness score.
	Energy float64

	// Pitch is the pitch variability score; near zero for monotone voice.
	Pitch float64

	// VoiceQuality is the harmonicity score; higher for clean voiced sound.
	VoiceQuality float64

	// Jitter is the cycle-to-cycle pitch instability.
	Jitter float64

	// Shimmer is the cycle-to-cycle amplitude instability.
	Shimmer float64
}

// FeatureBackend reduces a window of normalised mono samples to a
// [FeatureSet]. Implementations must be safe for concurrent use.
type FeatureBackend interface {
	Analyze(window []float64) (FeatureSet, error)
}

// Labels produced by the decision cascade.
const (
	LabelLaughter   = "laughter"
	LabelExcitement = "excitement"
	LabelAnger      = "anger"
	LabelNeutral    = "neutral"
)

// classify maps a feature set onto a label and a raw confidence. The
// cascade is ordered: laughter is checked first because it shares energy
// and pitch evidence with excitement but adds instability.
func classify(fs FeatureSet) (string, float64) {
	switch {
	case fs.Energy > 0.15 && fs.Pitch > 0.1 && (fs.VoiceQuality > 0.05 || fs.Jitter > 0.01):
		return LabelLaughter, math.Min(0.8, (fs.Energy+fs.Pitch+fs.VoiceQuality)*1.2)
	case fs.Energy > 0.2 && fs.Pitch > 0.08 && fs.VoiceQuality > 0.03 && fs.Jitter < 0.008:
		return LabelExcitement, math.Min(0.7, fs.Energy+fs.Pitch)
	case fs.Energy > 0.25 && fs.Pitch < 0.05 && fs.VoiceQuality < 0.02:
		return LabelAnger, math.Min(0.75, fs.Energy*2.0)
	default:
		return LabelNeutral, 0
	}
}

// Threshold maps a sensitivity in [0, 1] to the confidence a window must
// reach before it is reported. High sensitivities switch to a steeper
// linear ramp so the top of the range stays responsive.
func Threshold(sensitivity float64) float64 {
	var t float64
	if sensitivity >= 0.8 {
		t = 0.2 + (1-sensitivity)*0.5
	} else {
		t = 0.3 + math.Pow(1-sensitivity, 0.8)*0.6
	}
	if t < 0.2 {
		t = 0.2
	}
	if t > 0.9 {
		t = 0.9
	}
	return t
}

// NormalizeConfidence scales a raw cascade confidence by the sensitivity
// and applies the reporting floor. Zero stays zero.
func NormalizeConfidence(raw, sensitivity float64) float64 {
	if raw <= 0 {
		return 0
	}
	c := raw * (0.5 + 0.5*sensitivity)
	if c < 0.3 {
		c = 0.3
	}
	if c > 1 {
		c = 1
	}
	return c
}

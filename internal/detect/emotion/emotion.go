// Package emotion implements the heuristic emotion classifier. It maps a
// feature vector from one audio frame onto a fixed set of emotion patterns
// and reports the best-scoring emotion when it clears the configured
// sensitivity.
package emotion

// Emotion is a recognisable emotion label.
type Emotion string

const (
	Laughter   Emotion = "laughter"
	Excitement Emotion = "excitement"
	Surprise   Emotion = "surprise"
	Joy        Emotion = "joy"
	Anger      Emotion = "anger"
	Fear       Emotion = "fear"
	Sadness    Emotion = "sadness"
)

// All lists every emotion the classifier knows a pattern for.
var All = []Emotion{Laughter, Excitement, Surprise, Joy, Anger, Fear, Sadness}

// Defaults lists the emotions enabled when the configuration does not name
// any. These are the positive, clip-worthy ones.
var Defaults = []Emotion{Laughter, Excitement, Surprise, Joy}

// IsValid reports whether e has a known pattern.
func (e Emotion) IsValid() bool {
	_, ok := patterns[e]
	return ok
}

// pattern describes what a frame's features must look like for an emotion.
// minThresholds entries score min(1, value/threshold) when satisfied and 0
// when violated; maxThresholds entries score 1 when satisfied and 0 when
// violated. A feature missing from the vector contributes nothing either
// way. The energy floor gates the whole pattern.
type pattern struct {
	energyFloor   float64
	minThresholds map[string]float64
	maxThresholds map[string]float64
}

var patterns = map[Emotion]pattern{
	Laughter: {
		energyFloor: 0.1,
		minThresholds: map[string]float64{
			"pitch_range": 100,
		},
	},
	Excitement: {
		energyFloor: 0.12,
		minThresholds: map[string]float64{
			"pitch_mean": 150,
		},
	},
	Surprise: {
		energyFloor: 0.08,
		minThresholds: map[string]float64{
			"pitch_range": 80,
			"onset_count": 2,
		},
	},
	Joy: {
		energyFloor: 0.1,
		minThresholds: map[string]float64{
			"pitch_mean":        120,
			"rhythm_regularity": 0.3,
		},
	},
	Anger: {
		energyFloor: 0.2,
		minThresholds: map[string]float64{
			"low_freq_ratio": 0.3,
			"pitch_mean":     100,
		},
	},
	Fear: {
		energyFloor: 0.05,
		minThresholds: map[string]float64{
			"high_freq_ratio": 0.25,
			"pitch_std":       20,
		},
	},
	Sadness: {
		energyFloor: 0.03,
		minThresholds: map[string]float64{
			"low_freq_ratio": 0.4,
		},
		maxThresholds: map[string]float64{
			"pitch_mean": 150,
		},
	},
}

package emotion

import (
	"sync"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/dsp"
	"github.com/LordBoos/smartclip/pkg/audio"
)

// historySize bounds the smoothing history.
const historySize = 10

// Classifier scores audio frames against the emotion patterns. Safe for
// concurrent use; classification itself runs on one pipeline goroutine but
// sensitivity may be adjusted from elsewhere at runtime.
type Classifier struct {
	extractor *dsp.Extractor

	mu          sync.Mutex
	sensitivity float64
	enabled     []Emotion
	history     []histEntry
}

// histEntry is one past detection used for temporal smoothing.
type histEntry struct {
	emotion    Emotion
	confidence float64
}

// New creates a Classifier for audio at the given sample rate. When enabled
// is empty the [Defaults] set applies. Sensitivity is clamped to
// [0.1, 1.0].
func New(sampleRate int, enabled []Emotion, sensitivity float64) *Classifier {
	if len(enabled) == 0 {
		enabled = Defaults
	}
	valid := make([]Emotion, 0, len(enabled))
	for _, e := range enabled {
		if e.IsValid() {
			valid = append(valid, e)
		}
	}
	return &Classifier{
		extractor:   dsp.NewExtractor(sampleRate),
		sensitivity: clampSensitivity(sensitivity),
		enabled:     valid,
	}
}

// SetSensitivity updates the detection threshold, clamped to [0.1, 1.0].
func (c *Classifier) SetSensitivity(s float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensitivity = clampSensitivity(s)
}

// Sensitivity returns the current detection threshold.
func (c *Classifier) Sensitivity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensitivity
}

// Classify extracts features from the frame and returns the best-scoring
// enabled emotion, or nil when nothing clears the sensitivity threshold.
func (c *Classifier) Classify(frame audio.Frame) *detect.Result {
	features := c.extractor.Extract(frame.Samples)
	if len(features) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		best     Emotion
		bestConf float64
	)
	for _, em := range c.enabled {
		conf := confidenceFor(em, features)
		if conf > bestConf {
			best, bestConf = em, conf
		}
	}
	if bestConf <= c.sensitivity {
		return nil
	}

	bestConf = c.smooth(best, bestConf)

	features["intensity"] = intensity(features)
	return &detect.Result{
		Detector:   detect.KindBasicEmotion,
		Label:      string(best),
		Confidence: detect.ClampConfidence(bestConf),
		Timestamp:  frame.Timestamp,
		Features:   features,
	}
}

// confidenceFor scores features against the pattern for em. The result is
// the mean of the per-threshold factors plus the emotion-specific band
// evidence, capped at 1.0.
func confidenceFor(em Emotion, features dsp.Vector) float64 {
	pat, ok := patterns[em]
	if !ok {
		return 0
	}
	if features.Value("rms_energy") < pat.energyFloor {
		return 0
	}

	var factors []float64
	for name, threshold := range pat.minThresholds {
		v, present := features.Get(name)
		if !present {
			continue
		}
		if v >= threshold {
			factors = append(factors, minF(1.0, v/threshold))
		} else {
			factors = append(factors, 0)
		}
	}
	for name, threshold := range pat.maxThresholds {
		v, present := features.Get(name)
		if !present {
			continue
		}
		if v <= threshold {
			factors = append(factors, 1.0)
		} else {
			factors = append(factors, 0)
		}
	}

	switch em {
	case Laughter:
		factors = append(factors,
			features.Value("laughter_freq_ratio")*2.0,
			features.Value("high_freq_ratio"),
		)
	case Excitement:
		factors = append(factors,
			features.Value("excitement_freq_ratio")*1.5,
			minF(1.0, features.Value("rms_energy")/0.2),
		)
	}

	if len(factors) == 0 {
		return 0
	}
	var sum float64
	for _, f := range factors {
		sum += f
	}
	return minF(1.0, sum/float64(len(factors)))
}

// smooth records the detection and stabilises its confidence against the
// recent history. With fewer than three recorded detections the confidence
// passes through unchanged. After that, an emotion repeated within the last
// three detections gets a 1.2× boost and is averaged with the pre-boost
// confidences of those repeats. Caller holds c.mu.
func (c *Classifier) smooth(em Emotion, conf float64) float64 {
	c.history = append(c.history, histEntry{emotion: em, confidence: conf})
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	if len(c.history) < 3 {
		return conf
	}

	// Pre-boost confidences of the same emotion in the last three
	// detections, current one included.
	recent := c.history[len(c.history)-3:]
	same := 0
	var confs []float64
	for _, h := range recent {
		if h.emotion == em {
			same++
			confs = append(confs, h.confidence)
		}
	}

	smoothed := conf
	if same >= 2 {
		smoothed = minF(1.0, conf*1.2)
	}
	if len(confs) > 1 {
		sum := smoothed
		for _, v := range confs {
			sum += v
		}
		smoothed = sum / float64(len(confs)+1)
	}
	c.history[len(c.history)-1].confidence = smoothed
	return smoothed
}

// intensity estimates how strongly the emotion is expressed, independent of
// classification confidence. Reported as metadata in the feature snapshot.
func intensity(features dsp.Vector) float64 {
	v := features.Value("rms_energy")/0.3*0.5 +
		features.Value("spectral_centroid")/2000.0*0.3 +
		features.Value("pitch_range")/200.0*0.2
	return minF(1.0, v)
}

func clampSensitivity(s float64) float64 {
	if s < 0.1 {
		return 0.1
	}
	if s > 1.0 {
		return 1.0
	}
	return s
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

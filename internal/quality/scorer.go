// Package quality decides whether a detection deserves a clip. Every
// detection is scored on four weighted components (detector confidence,
// timing since the last clip, recent firing frequency of the same trigger,
// and surrounding context) and then checked against the rate limiter.
package quality

import (
	"math"
	"sync"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
)

// Component weights. They sum to 1.0.
const (
	weightConfidence = 0.30
	weightTiming     = 0.25
	weightFrequency  = 0.25
	weightContext    = 0.20
)

// historySize bounds the detection and decision history rings.
const historySize = 100

// frequencyWindow is the trailing window for per-trigger frequency scoring
// and the rolling clip rate limit.
const frequencyWindow = time.Hour

// crossConfirmWindow is how recent another detector's firing must be to
// count as cross-confirmation.
const crossConfirmWindow = 5 * time.Second

// overrideConfidence is the raw confidence a high-value trigger needs to
// bypass the quality threshold. It never bypasses the rate limiter.
const overrideConfidence = 0.8

// reliability multipliers per detector kind, applied to the confidence
// component. The acoustic classifier has proven the most precise of the
// three; speech recognition the least.
var reliability = map[detect.Kind]float64{
	detect.KindAcousticML:   1.1,
	detect.KindSpeech:       0.9,
	detect.KindBasicEmotion: 1.0,
}

// highValueContext are labels that earn the context bonus.
var highValueContext = map[string]bool{
	"laughter":   true,
	"excitement": true,
	"surprise":   true,
}

// highValueOverride are triggers valuable enough to clip even when the
// weighted score falls short, provided raw confidence is very high.
var highValueOverride = map[string]bool{
	"laughter":     true,
	"excitement":   true,
	"to je skvělé": true,
	"wow":          true,
	"úžasné":       true,
}

// Config holds the scoring and rate-limit parameters.
type Config struct {
	// Threshold is the minimum overall score for acceptance. Default 0.7.
	Threshold float64

	// MinConfidence is the minimum raw detector confidence. Default 0.6.
	MinConfidence float64

	// MinTimeBetweenClips is the cooldown after an accepted clip.
	// Default 30s.
	MinTimeBetweenClips time.Duration

	// MaxClipsPerHour caps accepted clips over the trailing hour.
	// Default 12.
	MaxClipsPerHour int
}

// withDefaults fills in zero fields.
func (c Config) withDefaults() Config {
	if c.Threshold == 0 {
		c.Threshold = 0.7
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.6
	}
	if c.MinTimeBetweenClips == 0 {
		c.MinTimeBetweenClips = 30 * time.Second
	}
	if c.MaxClipsPerHour == 0 {
		c.MaxClipsPerHour = 12
	}
	return c
}

// Score is the scoring breakdown for one detection.
type Score struct {
	// Overall is the weighted sum of the components.
	Overall float64 `json:"overall"`

	// Confidence, Timing, Frequency, and Context are the individual
	// component scores in [0.0, 1.0].
	Confidence float64 `json:"confidence"`
	Timing     float64 `json:"timing"`
	Frequency  float64 `json:"frequency"`
	Context    float64 `json:"context"`

	// Accept is the clip decision.
	Accept bool `json:"accept"`

	// Reason explains the decision ("ok", "high_value_override",
	// "rate_limited", "below_threshold").
	Reason string `json:"reason"`
}

// Decision pairs a detection with its score for the analytics history.
type Decision struct {
	Label      string      `json:"label"`
	Detector   detect.Kind `json:"detector"`
	Confidence float64     `json:"confidence"`
	At         time.Time   `json:"at"`
	Score      Score       `json:"score"`
}

// detRecord is one scored detection, kept for frequency and context
// scoring.
type detRecord struct {
	label    string
	detector detect.Kind
	at       time.Time
}

// Scorer scores detections and enforces the clip rate limit. Safe for
// concurrent use.
type Scorer struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	detections []detRecord
	decisions  []Decision
	accepted   []time.Time
}

// NewScorer creates a Scorer with the given config; zero fields take their
// defaults.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// Score evaluates a detection and returns the decision. The detection is
// recorded in the history regardless of the outcome; call [Scorer.RecordClip]
// after actually acting on an accepted one.
func (s *Scorer) Score(res detect.Result) Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	confidence := s.scoreConfidence(res)
	timing := s.scoreTiming(now)
	frequency := s.scoreFrequency(res.Label, now)
	ctxScore := s.scoreContext(res, now)

	overall := weightConfidence*confidence +
		weightTiming*timing +
		weightFrequency*frequency +
		weightContext*ctxScore

	sc := Score{
		Overall:    overall,
		Confidence: confidence,
		Timing:     timing,
		Frequency:  frequency,
		Context:    ctxScore,
	}

	switch {
	case math.IsNaN(overall) || math.IsInf(overall, 0):
		// A broken feature snapshot must not trigger a clip.
		sc = Score{Reason: "invalid_score"}
	case !s.rateAllows(now):
		sc.Reason = "rate_limited"
	case overall >= s.cfg.Threshold && res.Confidence >= s.cfg.MinConfidence:
		sc.Accept = true
		sc.Reason = "ok"
	case highValueOverride[res.Label] && res.Confidence > overrideConfidence:
		sc.Accept = true
		sc.Reason = "high_value_override"
	default:
		sc.Reason = "below_threshold"
	}

	s.record(res, sc, now)
	return sc
}

// RecordClip marks an accepted clip at time t for rate limiting and timing
// scoring.
func (s *Scorer) RecordClip(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, t)
	s.pruneAccepted(t)
}

// Decisions returns a copy of the recent decision history, oldest first.
func (s *Scorer) Decisions() []Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Decision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// scoreConfidence normalises the raw confidence against the configured
// minimum and applies the detector reliability multiplier.
func (s *Scorer) scoreConfidence(res detect.Result) float64 {
	c := math.Min(1.0, res.Confidence/s.cfg.MinConfidence)
	if mult, ok := reliability[res.Detector]; ok {
		c *= mult
	}
	return math.Min(1.0, c)
}

// scoreTiming rewards distance from the last accepted clip. With no
// accepted clip yet the score is perfect.
func (s *Scorer) scoreTiming(now time.Time) float64 {
	if len(s.accepted) == 0 {
		return 1.0
	}
	elapsed := now.Sub(s.accepted[len(s.accepted)-1])
	gap := s.cfg.MinTimeBetweenClips
	switch {
	case elapsed >= 2*gap:
		return 1.0
	case elapsed >= gap:
		return 0.8
	case elapsed >= gap/2:
		return 0.4
	default:
		return 0.1
	}
}

// scoreFrequency penalises triggers that keep firing. Counts prior scored
// detections of the same label in the trailing hour.
func (s *Scorer) scoreFrequency(label string, now time.Time) float64 {
	count := 0
	for _, d := range s.detections {
		if d.label == label && now.Sub(d.at) <= frequencyWindow {
			count++
		}
	}
	switch {
	case count == 0:
		return 1.0
	case count == 1:
		return 0.9
	case count <= 3:
		return 0.7
	case count <= 5:
		return 0.4
	default:
		return 0.1
	}
}

// scoreContext starts from a neutral base and adds evidence bonuses:
// cross-confirmation by another detector, strong signal energy, a spectral
// centroid in the voice band, and high-value labels.
func (s *Scorer) scoreContext(res detect.Result, now time.Time) float64 {
	score := 0.5

	for _, d := range s.detections {
		if d.detector != res.Detector && now.Sub(d.at) <= crossConfirmWindow {
			score += 0.3
			break
		}
	}

	if res.Features != nil {
		if res.Features.Value("rms_energy") > 0.2 {
			score += 0.2
		}
		if c := res.Features.Value("spectral_centroid"); c > 500 && c < 3000 {
			score += 0.1
		}
	}

	if highValueContext[res.Label] {
		score += 0.2
	}
	return math.Min(1.0, score)
}

// rateAllows reports whether an accepted clip right now would satisfy the
// rate limits. Caller holds s.mu.
func (s *Scorer) rateAllows(now time.Time) bool {
	s.pruneAccepted(now)
	if len(s.accepted) >= s.cfg.MaxClipsPerHour {
		return false
	}
	if len(s.accepted) > 0 {
		last := s.accepted[len(s.accepted)-1]
		if now.Sub(last) < s.cfg.MinTimeBetweenClips {
			return false
		}
	}
	return true
}

// pruneAccepted drops accepted-clip records older than the rolling window.
// Caller holds s.mu.
func (s *Scorer) pruneAccepted(now time.Time) {
	cut := 0
	for cut < len(s.accepted) && now.Sub(s.accepted[cut]) > frequencyWindow {
		cut++
	}
	s.accepted = s.accepted[cut:]
}

// record appends the detection and decision to their history rings.
// Caller holds s.mu.
func (s *Scorer) record(res detect.Result, sc Score, now time.Time) {
	s.detections = append(s.detections, detRecord{
		label:    res.Label,
		detector: res.Detector,
		at:       now,
	})
	if len(s.detections) > historySize {
		s.detections = s.detections[len(s.detections)-historySize:]
	}

	s.decisions = append(s.decisions, Decision{
		Label:      res.Label,
		Detector:   res.Detector,
		Confidence: res.Confidence,
		At:         now,
		Score:      sc,
	})
	if len(s.decisions) > historySize {
		s.decisions = s.decisions[len(s.decisions)-historySize:]
	}
}

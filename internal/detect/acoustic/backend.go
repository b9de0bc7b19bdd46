package acoustic

import (
	"errors"
	"math"

	"github.com/LordBoos/smartclip/internal/dsp"
	"gonum.org/v1/gonum/stat"
)

// segmentMs is the sub-segment length used for per-cycle statistics.
const segmentMs = 100

// DSPBackend derives the [FeatureSet] scores from the shared feature
// extractor: pitch variability and stability come from per-segment pitch
// tracking, harmonicity from the autocorrelation peak strength.
type DSPBackend struct {
	extractor  *dsp.Extractor
	sampleRate int
}

var _ FeatureBackend = (*DSPBackend)(nil)

// NewDSPBackend creates a backend for audio at the given sample rate.
func NewDSPBackend(sampleRate int) (*DSPBackend, error) {
	if sampleRate <= 0 {
		return nil, errors.New("acoustic: sample rate must be positive")
	}
	return &DSPBackend{
		extractor:  dsp.NewExtractor(sampleRate),
		sampleRate: sampleRate,
	}, nil
}

// Analyze reduces one analysis window to a FeatureSet. An empty window is
// an error; a silent window yields all-zero scores.
func (b *DSPBackend) Analyze(window []float64) (FeatureSet, error) {
	if len(window) == 0 {
		return FeatureSet{}, errors.New("acoustic: empty analysis window")
	}

	var fs FeatureSet

	var sumSq float64
	for _, s := range window {
		sumSq += s * s
	}
	fs.Energy = math.Sqrt(sumSq / float64(len(window)))

	segSize := b.sampleRate * segmentMs / 1000
	if segSize < 1 || len(window) < 2*segSize {
		return fs, nil
	}

	var (
		pitches   []float64
		periods   []float64
		peaks     []float64
		harmonics []float64
		segments  int
	)
	for i := 0; i+segSize <= len(window); i += segSize {
		seg := window[i : i+segSize]
		segments++

		p := b.extractor.EstimatePitch(seg)
		if p <= 0 {
			continue
		}
		pitches = append(pitches, p)
		periods = append(periods, 1.0/p)
		peaks = append(peaks, peakAmplitude(seg))
		harmonics = append(harmonics, harmonicRatio(seg, b.sampleRate, p))
	}
	if len(pitches) == 0 || segments == 0 {
		return fs, nil
	}
	voiced := float64(len(pitches)) / float64(segments)

	fs.Pitch = math.Min(1.0, popStd(pitches)/200.0)
	fs.VoiceQuality = stat.Mean(harmonics, nil) * voiced * 0.1
	fs.Jitter = relativePerturbation(periods)
	fs.Shimmer = relativePerturbation(peaks)

	return fs, nil
}

// harmonicRatio measures how much of the segment's energy repeats at the
// given pitch period. 1.0 would be a perfectly periodic signal.
func harmonicRatio(seg []float64, sampleRate int, pitch float64) float64 {
	lag := int(float64(sampleRate) / pitch)
	if lag <= 0 || lag >= len(seg) {
		return 0
	}
	var auto, energy float64
	for i := 0; i+lag < len(seg); i++ {
		auto += seg[i] * seg[i+lag]
	}
	for _, s := range seg {
		energy += s * s
	}
	if energy <= 0 {
		return 0
	}
	r := auto / energy
	if r < 0 {
		return 0
	}
	return math.Min(1.0, r)
}

// relativePerturbation is the mean absolute cycle-to-cycle change divided
// by the mean value, the classic jitter/shimmer formulation.
func relativePerturbation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean <= 0 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1) / mean
}

func peakAmplitude(seg []float64) float64 {
	var peak float64
	for _, s := range seg {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

func popStd(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := stat.Mean(x, nil)
	var sum float64
	for _, v := range x {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}

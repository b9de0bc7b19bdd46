// Package dsp implements the acoustic feature extraction that every
// detector in the pipeline shares: time-domain statistics, FFT-based
// spectral shape and band energies, autocorrelation pitch tracking, and
// onset/rhythm analysis.
//
// Feature extraction is pure and stateless: the same samples always produce
// the same feature vector, and an Extractor can be shared freely across
// goroutines.
package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// Vector is a named feature map produced by [Extractor.Extract]. Consumers
// must treat a missing key as "feature not computable for this frame", which
// is different from a value of zero.
type Vector map[string]float64

// Get returns the named feature and whether it is present.
func (v Vector) Get(name string) (float64, bool) {
	val, ok := v[name]
	return val, ok
}

// Value returns the named feature or 0 when absent. Use [Vector.Get] when
// the absence of a feature matters.
func (v Vector) Value(name string) float64 {
	return v[name]
}

// freqBand is a frequency range whose energy is reported both absolutely and
// as a fraction of the total spectral energy.
type freqBand struct {
	name string
	low  float64
	high float64
}

// analysisBands are the fixed bands the emotion heuristics read. The
// 300–1200 Hz and 1000–4000 Hz bands overlap the generic low/mid/high split
// on purpose: they isolate the ranges where laughter and excited speech
// carry most of their energy.
var analysisBands = []freqBand{
	{"low_freq", 0, 250},
	{"mid_freq", 250, 2000},
	{"high_freq", 2000, 8000},
	{"laughter_freq", 300, 1200},
	{"excitement_freq", 1000, 4000},
}

// pitch search range in Hz.
const (
	pitchMinHz = 50
	pitchMaxHz = 800
)

// Extractor computes feature vectors from raw sample slices at a fixed
// sample rate.
type Extractor struct {
	sampleRate int
}

// NewExtractor creates an Extractor for audio at the given sample rate.
func NewExtractor(sampleRate int) *Extractor {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Extractor{sampleRate: sampleRate}
}

// SampleRate returns the sample rate the extractor was created with.
func (e *Extractor) SampleRate() int { return e.sampleRate }

// Extract computes the full feature vector for samples. An empty or nil
// input yields an empty vector; callers treat that as "nothing detectable".
func (e *Extractor) Extract(samples []float64) Vector {
	v := Vector{}
	if len(samples) == 0 {
		return v
	}

	e.timeDomain(samples, v)
	e.spectral(samples, v)
	e.prosodic(samples, v)
	e.rhythm(samples, v)

	// Drop anything that went non-finite; downstream thresholds treat a
	// missing feature as absent rather than comparing against NaN.
	for name, val := range v {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			delete(v, name)
		}
	}
	return v
}

// timeDomain fills in amplitude statistics.
func (e *Extractor) timeDomain(samples []float64, v Vector) {
	var sumSq float64
	for _, s := range samples {
		sumSq += s * s
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	v["rms_energy"] = rms

	// Mean absolute sign change per sample; two units per crossing.
	if len(samples) > 1 {
		var signSum float64
		for i := 1; i < len(samples); i++ {
			signSum += math.Abs(sign(samples[i]) - sign(samples[i-1]))
		}
		v["zero_crossing_rate"] = signSum / float64(len(samples)-1)
	} else {
		v["zero_crossing_rate"] = 0
	}

	abs := make([]float64, len(samples))
	for i, s := range samples {
		abs[i] = math.Abs(s)
	}
	peak := 0.0
	for _, a := range abs {
		if a > peak {
			peak = a
		}
	}
	v["peak_amplitude"] = peak
	v["mean_amplitude"] = stat.Mean(abs, nil)
	v["amplitude_std"] = popStd(abs)
	if peak > 0 {
		v["dynamic_range"] = rms / peak
	} else {
		v["dynamic_range"] = 0
	}
}

// spectral fills in FFT-derived shape features and band energies.
func (e *Extractor) spectral(samples []float64, v Vector) {
	spectrum := fft.FFTReal(samples)
	half := len(spectrum) / 2
	if half == 0 {
		return
	}

	mag := make([]float64, half)
	freqs := make([]float64, half)
	binWidth := float64(e.sampleRate) / float64(len(samples))
	var total, weighted float64
	for i := 0; i < half; i++ {
		m := cmplx.Abs(spectrum[i])
		f := float64(i) * binWidth
		mag[i] = m
		freqs[i] = f
		total += m
		weighted += f * m
	}
	if total <= 0 {
		v["spectral_centroid"] = 0
		v["spectral_rolloff"] = 0
		v["spectral_bandwidth"] = 0
		for _, b := range analysisBands {
			v[b.name+"_energy"] = 0
			v[b.name+"_ratio"] = 0
		}
		return
	}

	centroid := weighted / total
	v["spectral_centroid"] = centroid

	// Frequency below which 85% of the magnitude lies.
	target := 0.85 * total
	var cum float64
	rolloff := freqs[half-1]
	for i, m := range mag {
		cum += m
		if cum >= target {
			rolloff = freqs[i]
			break
		}
	}
	v["spectral_rolloff"] = rolloff

	var spread float64
	for i, m := range mag {
		d := freqs[i] - centroid
		spread += d * d * m
	}
	v["spectral_bandwidth"] = math.Sqrt(spread / total)

	var totalEnergy float64
	for _, m := range mag {
		totalEnergy += m * m
	}
	for _, b := range analysisBands {
		var energy float64
		for i, f := range freqs {
			if f >= b.low && f <= b.high {
				energy += mag[i] * mag[i]
			}
		}
		v[b.name+"_energy"] = energy
		if totalEnergy > 0 {
			v[b.name+"_ratio"] = energy / totalEnergy
		} else {
			v[b.name+"_ratio"] = 0
		}
	}
}

// prosodic fills in pitch features. Per-segment statistics need at least
// 100 ms of audio; shorter frames only get the whole-frame pitch estimate.
func (e *Extractor) prosodic(samples []float64, v Vector) {
	v["pitch"] = e.EstimatePitch(samples)

	if len(samples) <= e.sampleRate/10 {
		return
	}

	segSize := len(samples) / 10
	var pitches []float64
	for i := 0; i < len(samples)-segSize; i += segSize {
		p := e.EstimatePitch(samples[i : i+segSize])
		if p > 0 {
			pitches = append(pitches, p)
		}
	}
	if len(pitches) == 0 {
		v["pitch_mean"] = 0
		v["pitch_std"] = 0
		v["pitch_range"] = 0
		return
	}
	minP, maxP := pitches[0], pitches[0]
	for _, p := range pitches {
		if p < minP {
			minP = p
		}
		if p > maxP {
			maxP = p
		}
	}
	v["pitch_mean"] = stat.Mean(pitches, nil)
	v["pitch_std"] = popStd(pitches)
	v["pitch_range"] = maxP - minP
}

// EstimatePitch returns the dominant pitch in Hz using autocorrelation
// peak-picking over the 50–800 Hz range, or 0 when no confident peak
// exists. The peak must carry at least 30% of the zero-lag energy to count
// as voiced.
func (e *Extractor) EstimatePitch(samples []float64) float64 {
	minPeriod := e.sampleRate / pitchMaxHz
	maxPeriod := e.sampleRate / pitchMinHz
	if minPeriod < 1 {
		minPeriod = 1
	}
	if len(samples) <= maxPeriod {
		return 0
	}

	var energy0 float64
	for _, s := range samples {
		energy0 += s * s
	}
	if energy0 <= 0 {
		return 0
	}

	best, bestLag := 0.0, 0
	for lag := minPeriod; lag < maxPeriod; lag++ {
		var sum float64
		for i := 0; i+lag < len(samples); i++ {
			sum += samples[i] * samples[i+lag]
		}
		if sum > best {
			best, bestLag = sum, lag
		}
	}
	if bestLag == 0 || best < 0.3*energy0 {
		return 0
	}
	return float64(e.sampleRate) / float64(bestLag)
}

// rhythm fills in onset features from 50 ms energy windows.
func (e *Extractor) rhythm(samples []float64, v Vector) {
	window := e.sampleRate / 20
	if window < 1 {
		window = 1
	}
	hop := window / 2
	if hop < 1 {
		hop = 1
	}

	var energies []float64
	for i := 0; i+window <= len(samples); i += hop {
		var sum float64
		for _, s := range samples[i : i+window] {
			sum += s * s
		}
		energies = append(energies, sum)
	}
	if len(energies) <= 3 {
		v["onset_count"] = 0
		v["rhythm_regularity"] = 0
		return
	}

	threshold := stat.Mean(energies, nil) + popStd(energies)
	var peaks []int
	for i := 1; i < len(energies)-1; i++ {
		if energies[i] > energies[i-1] && energies[i] > energies[i+1] && energies[i] > threshold {
			peaks = append(peaks, i)
		}
	}
	v["onset_count"] = float64(len(peaks))

	if len(peaks) > 1 {
		intervals := make([]float64, len(peaks)-1)
		for i := 1; i < len(peaks); i++ {
			intervals[i-1] = float64(peaks[i] - peaks[i-1])
		}
		v["rhythm_regularity"] = 1.0 / (1.0 + popStd(intervals))
	} else {
		v["rhythm_regularity"] = 0
	}
}

// popStd is the population standard deviation (divisor n, not n-1), which
// is what the detector thresholds are calibrated against.
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

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

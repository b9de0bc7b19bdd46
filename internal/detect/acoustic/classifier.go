package acoustic

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/dsp"
	"github.com/LordBoos/smartclip/pkg/audio"
)

const (
	// windowSeconds is the analysis window length.
	windowSeconds = 2

	// windowOverlap is the fraction of each window shared with the next.
	windowOverlap = 0.5

	// queueDepth bounds the number of analysis windows waiting for the
	// backend. When full, the oldest window is discarded; fresher audio
	// beats completeness for clip triggering.
	queueDepth = 5

	// resultBuffer bounds the result channel.
	resultBuffer = 16
)

// Classifier buffers frames into overlapping windows and classifies each
// window on its own goroutine so a slow backend never stalls frame
// delivery.
//
// Process must be called from a single goroutine; all other methods are
// safe for concurrent use.
type Classifier struct {
	backend    FeatureBackend
	sampleRate int
	windowSize int
	hopSize    int

	mu          sync.Mutex
	sensitivity float64

	buf   []float64
	bufTS time.Time

	windows chan analysisWindow
	results chan detect.Result
	dropped atomic.Int64

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

type analysisWindow struct {
	samples []float64
	ts      time.Time
}

// New creates a Classifier and starts its analysis goroutine. The caller
// must call Close when done.
func New(backend FeatureBackend, sampleRate int, sensitivity float64) (*Classifier, error) {
	if backend == nil {
		return nil, errors.New("acoustic: backend must not be nil")
	}
	if sampleRate <= 0 {
		return nil, errors.New("acoustic: sample rate must be positive")
	}

	windowSize := sampleRate * windowSeconds
	c := &Classifier{
		backend:     backend,
		sampleRate:  sampleRate,
		windowSize:  windowSize,
		hopSize:     int(float64(windowSize) * (1 - windowOverlap)),
		sensitivity: clampSensitivity(sensitivity),
		windows:     make(chan analysisWindow, queueDepth),
		results:     make(chan detect.Result, resultBuffer),
		done:        make(chan struct{}),
	}

	c.wg.Add(1)
	go c.analyzeLoop()
	return c, nil
}

// Kind identifies this classifier in results and metrics.
func (c *Classifier) Kind() detect.Kind { return detect.KindAcousticML }

// Available reports whether the classifier can accept audio.
func (c *Classifier) Available() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// SetSensitivity updates the detection sensitivity, clamped to [0.1, 1.0].
func (c *Classifier) SetSensitivity(s float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensitivity = clampSensitivity(s)
}

// DroppedWindows returns the number of analysis windows discarded because
// the backend could not keep up.
func (c *Classifier) DroppedWindows() int64 { return c.dropped.Load() }

// Process appends the frame to the rolling buffer and cuts completed
// analysis windows. It never blocks on the backend.
func (c *Classifier) Process(_ context.Context, frame audio.Frame) {
	if len(c.buf) == 0 {
		c.bufTS = frame.Timestamp
	}
	c.buf = append(c.buf, frame.Samples...)

	for len(c.buf) >= c.windowSize {
		w := analysisWindow{
			samples: append([]float64(nil), c.buf[:c.windowSize]...),
			ts:      c.bufTS,
		}
		c.enqueue(w)

		c.buf = c.buf[c.hopSize:]
		c.bufTS = c.bufTS.Add(time.Duration(float64(c.hopSize) / float64(c.sampleRate) * float64(time.Second)))
	}
}

// enqueue adds w to the window queue, discarding the oldest queued window
// when full.
func (c *Classifier) enqueue(w analysisWindow) {
	for {
		select {
		case c.windows <- w:
			return
		default:
		}
		select {
		case <-c.windows:
			c.dropped.Add(1)
		default:
		}
	}
}

// Results returns the channel of detections. Closed by Close.
func (c *Classifier) Results() <-chan detect.Result { return c.results }

// Close stops the analysis goroutine and closes the result channel.
// Safe to call more than once.
func (c *Classifier) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
	return nil
}

// analyzeLoop drains the window queue, runs the backend, and emits
// detections that clear the sensitivity threshold.
func (c *Classifier) analyzeLoop() {
	defer c.wg.Done()
	defer close(c.results)

	for {
		select {
		case <-c.done:
			return
		case w := <-c.windows:
			c.analyze(w)
		}
	}
}

func (c *Classifier) analyze(w analysisWindow) {
	fs, err := c.backend.Analyze(w.samples)
	if err != nil {
		slog.Warn("acoustic: window analysis failed", "error", err)
		return
	}

	label, raw := classify(fs)
	if label == LabelNeutral || raw <= 0 {
		return
	}

	c.mu.Lock()
	sens := c.sensitivity
	c.mu.Unlock()

	// The threshold gates the raw cascade score; normalization only shapes
	// the reported confidence.
	if raw <= Threshold(sens) {
		return
	}
	conf := NormalizeConfidence(raw, sens)

	res := detect.Result{
		Detector:   detect.KindAcousticML,
		Label:      label,
		Confidence: conf,
		Timestamp:  w.ts,
		Features: dsp.Vector{
			"energy":        fs.Energy,
			"pitch":         fs.Pitch,
			"voice_quality": fs.VoiceQuality,
			"jitter":        fs.Jitter,
			"shimmer":       fs.Shimmer,
		},
	}
	select {
	case c.results <- res:
	default:
		// Result consumer is behind; dropping is preferable to stalling
		// the analysis loop.
	}
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

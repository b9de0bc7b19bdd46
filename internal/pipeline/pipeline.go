// Package pipeline wires the detectors together: it fans captured audio
// frames out to every classifier, merges their detection streams, applies
// the cross-detector cooldown and quality scoring, and publishes accepted
// clip triggers.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/quality"
	"github.com/LordBoos/smartclip/pkg/audio"
)

// TopicClipTrigger is the event bus topic accepted triggers are published
// on. Subscribers receive a single [TriggerEvent] argument.
const TopicClipTrigger = "clip:trigger"

// TriggerEvent is an accepted clip trigger.
type TriggerEvent struct {
	// Label is the emotion or trigger phrase that fired.
	Label string `json:"label"`

	// Detector identifies the detector that fired.
	Detector detect.Kind `json:"detector"`

	// Confidence is the raw detector confidence.
	Confidence float64 `json:"confidence"`

	// Quality is the scoring breakdown that accepted the trigger.
	Quality quality.Score `json:"quality"`

	// Timestamp is the detection time.
	Timestamp time.Time `json:"timestamp"`
}

// TriggerSink receives accepted clip triggers. Implementations must not
// retain the event past the call.
type TriggerSink interface {
	HandleTrigger(ctx context.Context, ev TriggerEvent)
}

// Classifier is one detector as seen by the coordinator. The coordinator
// feeds frames through Process from a single goroutine per classifier and
// consumes Results from another; detections surface on the Results channel
// whether classification is synchronous or windowed.
type Classifier interface {
	// Kind identifies the classifier in results, stats, and metrics.
	Kind() detect.Kind

	// Available reports whether the classifier can currently accept audio.
	Available() bool

	// Process consumes one frame. It must not block on classification.
	Process(ctx context.Context, frame audio.Frame)

	// Results returns the detection channel. It is closed by Close.
	Results() <-chan detect.Result

	// Close stops the classifier and closes its result channel. Safe to
	// call more than once.
	Close() error
}

// syncClassifier adapts a synchronous per-frame classify function to the
// [Classifier] interface.
type syncClassifier struct {
	kind    detect.Kind
	fn      func(audio.Frame) *detect.Result
	results chan detect.Result

	mu     sync.Mutex
	closed bool
}

// NewSyncClassifier wraps fn, which classifies one frame and returns nil
// when nothing is detected, as a [Classifier].
func NewSyncClassifier(kind detect.Kind, fn func(audio.Frame) *detect.Result) Classifier {
	return &syncClassifier{
		kind:    kind,
		fn:      fn,
		results: make(chan detect.Result, 16),
	}
}

func (s *syncClassifier) Kind() detect.Kind { return s.kind }

func (s *syncClassifier) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *syncClassifier) Process(_ context.Context, frame audio.Frame) {
	res := s.fn(frame)
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Close already ran; the frame was in flight when the pipeline
		// shut down.
		return
	}
	select {
	case s.results <- *res:
	default:
	}
}

func (s *syncClassifier) Results() <-chan detect.Result { return s.results }

func (s *syncClassifier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

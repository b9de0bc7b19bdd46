package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/observe"
	"github.com/LordBoos/smartclip/internal/quality"
	"github.com/LordBoos/smartclip/pkg/audio"
)

const (
	// defaultQueueSize bounds each classifier's frame queue.
	defaultQueueSize = 100

	// defaultCooldown suppresses detections arriving shortly after another
	// detector already fired, across all detectors.
	defaultCooldown = 2 * time.Second

	// defaultStopTimeout bounds how long Stop waits for the loops to
	// drain before abandoning them.
	defaultStopTimeout = 5 * time.Second

	// feedWait bounds each blocking wait in the feed loops so shutdown is
	// always noticed promptly.
	feedWait = 100 * time.Millisecond
)

// Coordinator owns the per-classifier frame queues and processing loops.
// Frames enter through [Coordinator.Ingest]; accepted triggers leave
// through the event bus and the optional [TriggerSink].
type Coordinator struct {
	classifiers []Classifier
	scorer      *quality.Scorer
	bus         evbus.Bus
	sink        TriggerSink
	metrics     *observe.Metrics
	monitor     *audio.LevelMonitor

	queueSize   int
	cooldown    time.Duration
	stopTimeout time.Duration

	queues map[detect.Kind]chan audio.Frame

	mu            sync.Mutex
	lastDetection time.Time
	stats         statsCounters

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithBus publishes accepted triggers on bus under [TopicClipTrigger].
func WithBus(bus evbus.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// WithSink delivers accepted triggers to sink.
func WithSink(sink TriggerSink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithMetrics uses m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLevelMonitor feeds every ingested frame to mon.
func WithLevelMonitor(mon *audio.LevelMonitor) Option {
	return func(c *Coordinator) { c.monitor = mon }
}

// WithQueueSize sets the per-classifier frame queue depth. Default 100.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithCooldown sets the cross-detector detection cooldown. Default 2s.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.cooldown = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for loop shutdown. Default 5s.
func WithStopTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// New creates a Coordinator over the given classifiers. At least one
// classifier and a scorer are required.
func New(scorer *quality.Scorer, classifiers []Classifier, opts ...Option) (*Coordinator, error) {
	if scorer == nil {
		return nil, errors.New("pipeline: scorer must not be nil")
	}
	if len(classifiers) == 0 {
		return nil, errors.New("pipeline: at least one classifier is required")
	}

	c := &Coordinator{
		classifiers: classifiers,
		scorer:      scorer,
		queueSize:   defaultQueueSize,
		cooldown:    defaultCooldown,
		stopTimeout: defaultStopTimeout,
		queues:      make(map[detect.Kind]chan audio.Frame, len(classifiers)),
		stop:        make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	for _, cl := range classifiers {
		if _, dup := c.queues[cl.Kind()]; dup {
			return nil, fmt.Errorf("pipeline: duplicate classifier kind %q", cl.Kind())
		}
		c.queues[cl.Kind()] = make(chan audio.Frame, c.queueSize)
	}
	c.stats.dropped = make(map[detect.Kind]int64, len(classifiers))
	c.stats.detections = make(map[detect.Kind]int64, len(classifiers))
	return c, nil
}

// Start launches the feed and result loops. Must be called once.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	for _, cl := range c.classifiers {
		cl := cl
		q := c.queues[cl.Kind()]

		c.wg.Add(2)
		go func() {
			defer c.wg.Done()
			c.feedLoop(ctx, cl, q)
		}()
		go func() {
			defer c.wg.Done()
			c.resultLoop(ctx, cl)
		}()

		c.metrics.ActiveDetectors.Add(ctx, 1)
		slog.Info("pipeline: classifier started", "detector", cl.Kind())
	}
}

// Ingest fans one frame out to every classifier queue. Each classifier
// gets its own copy so nobody shares sample slices across goroutines. When
// a queue is full the frame is dropped for that classifier only.
func (c *Coordinator) Ingest(frame audio.Frame) {
	if c.monitor != nil {
		c.monitor.Observe(frame)
	}

	c.mu.Lock()
	c.stats.framesIngested++
	c.mu.Unlock()

	for kind, q := range c.queues {
		select {
		case q <- frame.Clone():
		default:
			c.mu.Lock()
			c.stats.dropped[kind]++
			c.mu.Unlock()
			c.metrics.DroppedFrames.Add(context.Background(), 1,
				metric.WithAttributes(observe.Attr("detector", string(kind))))
		}
	}
}

// Stop shuts the pipeline down: it signals the loops, waits up to the stop
// timeout for them to drain, and closes every classifier. Loops that do
// not finish in time are abandoned with a warning rather than blocking
// shutdown forever.
func (c *Coordinator) Stop() error {
	close(c.stop)

	// The loops must drain before the classifiers close: a feed loop still
	// mid-Process would otherwise race the close of the result channels.
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.stopTimeout):
		slog.Warn("pipeline: loops did not stop in time, abandoning",
			"timeout", c.stopTimeout)
	}

	g := new(errgroup.Group)
	for _, cl := range c.classifiers {
		cl := cl
		g.Go(cl.Close)
	}
	return g.Wait()
}

// feedLoop delivers queued frames to one classifier.
func (c *Coordinator) feedLoop(ctx context.Context, cl Classifier, q <-chan audio.Frame) {
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case frame := <-q:
			if !cl.Available() {
				continue
			}
			cl.Process(ctx, frame)
		case <-time.After(feedWait):
			// Bounded wait; loop around and re-check shutdown.
		}
	}
}

// resultLoop consumes one classifier's detections until its channel
// closes.
func (c *Coordinator) resultLoop(ctx context.Context, cl Classifier) {
	for {
		select {
		case <-c.stop:
			return
		case res, ok := <-cl.Results():
			if !ok {
				return
			}
			c.handleResult(ctx, res)
		}
	}
}

// handleResult applies the cross-detector cooldown and quality scoring to
// one detection, and publishes the trigger when accepted. Only accepted
// triggers start the cooldown; a rejected detection must not shadow a
// strong one arriving right after it.
func (c *Coordinator) handleResult(ctx context.Context, res detect.Result) {
	res.Confidence = detect.ClampConfidence(res.Confidence)
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now()
	}

	c.metrics.RecordDetection(ctx, string(res.Detector), res.Label, res.Confidence)

	now := time.Now()
	c.mu.Lock()
	c.stats.detections[res.Detector]++
	if !c.lastDetection.IsZero() && now.Sub(c.lastDetection) < c.cooldown {
		c.stats.suppressed++
		c.mu.Unlock()
		slog.Debug("pipeline: detection suppressed by cooldown",
			"detector", res.Detector,
			"label", res.Label,
		)
		return
	}
	c.mu.Unlock()

	score := c.scorer.Score(res)
	c.metrics.RecordClipDecision(ctx, string(res.Detector), score.Reason, score.Overall)

	if !score.Accept {
		c.mu.Lock()
		c.stats.rejected++
		c.mu.Unlock()
		slog.Debug("pipeline: detection rejected",
			"detector", res.Detector,
			"label", res.Label,
			"reason", score.Reason,
			"overall", score.Overall,
		)
		return
	}

	c.scorer.RecordClip(now)
	c.mu.Lock()
	c.lastDetection = now
	c.stats.accepted++
	c.mu.Unlock()

	ev := TriggerEvent{
		Label:      res.Label,
		Detector:   res.Detector,
		Confidence: res.Confidence,
		Quality:    score,
		Timestamp:  res.Timestamp,
	}
	slog.Info("pipeline: clip trigger accepted",
		"detector", ev.Detector,
		"label", ev.Label,
		"confidence", ev.Confidence,
		"overall", score.Overall,
		"reason", score.Reason,
	)

	if c.bus != nil {
		c.bus.Publish(TopicClipTrigger, ev)
	}
	if c.sink != nil {
		c.sink.HandleTrigger(ctx, ev)
	}
}

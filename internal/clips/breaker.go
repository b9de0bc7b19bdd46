package clips

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrServiceSuspended is returned by [GuardedRequester.CreateClip] while the
// clip service is considered down and the retry timeout has not elapsed.
var ErrServiceSuspended = errors.New("clips: clip service suspended")

// breakerState is the guard's operating mode.
type breakerState int

const (
	// stateForwarding passes every request through.
	stateForwarding breakerState = iota

	// stateSuspended rejects requests immediately; entered after repeated
	// failures.
	stateSuspended

	// stateProbing lets a single request through after the retry timeout
	// to see whether the service recovered.
	stateProbing
)

// GuardedRequester wraps a [Requester] so a failing clip service is not
// hammered on every accepted trigger. After maxFailures consecutive errors
// it rejects requests for retryAfter, then probes with one request; a
// successful probe resumes normal forwarding, a failed one suspends again.
// Safe for concurrent use.
type GuardedRequester struct {
	inner       Requester
	maxFailures int
	retryAfter  time.Duration

	mu       sync.Mutex
	state    breakerState
	failures int
	downAt   time.Time
	probing  bool

	now func() time.Time
}

// GuardOption is a functional option for configuring a GuardedRequester.
type GuardOption func(*GuardedRequester)

// WithMaxFailures sets the consecutive-failure count that suspends the
// service. Default 3.
func WithMaxFailures(n int) GuardOption {
	return func(g *GuardedRequester) {
		if n > 0 {
			g.maxFailures = n
		}
	}
}

// WithRetryAfter sets how long the service stays suspended before a probe
// request is allowed. Default 60s.
func WithRetryAfter(d time.Duration) GuardOption {
	return func(g *GuardedRequester) {
		if d > 0 {
			g.retryAfter = d
		}
	}
}

// NewGuardedRequester wraps inner with failure tracking.
func NewGuardedRequester(inner Requester, opts ...GuardOption) *GuardedRequester {
	g := &GuardedRequester{
		inner:       inner,
		maxFailures: 3,
		retryAfter:  60 * time.Second,
		now:         time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

var _ Requester = (*GuardedRequester)(nil)

// CreateClip forwards to the wrapped requester when the guard allows it.
func (g *GuardedRequester) CreateClip(ctx context.Context, title string) (string, error) {
	if err := g.admit(); err != nil {
		return "", err
	}

	url, err := g.inner.CreateClip(ctx, title)
	g.observe(err)
	return url, err
}

// admit decides whether a request may go out right now.
func (g *GuardedRequester) admit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case stateSuspended:
		if g.now().Sub(g.downAt) < g.retryAfter {
			return ErrServiceSuspended
		}
		g.state = stateProbing
		g.probing = false
		slog.Info("clips: probing clip service after suspension")
		fallthrough
	case stateProbing:
		if g.probing {
			// A probe is already in flight.
			return ErrServiceSuspended
		}
		g.probing = true
	}
	return nil
}

// observe feeds one request outcome back into the guard.
func (g *GuardedRequester) observe(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		if g.state != stateForwarding {
			slog.Info("clips: clip service recovered")
		}
		g.state = stateForwarding
		g.failures = 0
		g.probing = false
		return
	}

	g.failures++
	g.downAt = g.now()
	g.probing = false

	if g.state == stateProbing || g.failures >= g.maxFailures {
		if g.state != stateSuspended {
			slog.Warn("clips: suspending clip service",
				"consecutive_failures", g.failures,
				"retry_after", g.retryAfter,
			)
		}
		g.state = stateSuspended
	}
}

// Suspended reports whether requests are currently being rejected.
func (g *GuardedRequester) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == stateSuspended && g.now().Sub(g.downAt) < g.retryAfter
}

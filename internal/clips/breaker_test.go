package clips

import (
	"context"
	"errors"
	"testing"
	"time"
)

// flakyRequester fails until told to recover.
type flakyRequester struct {
	failing bool
	calls   int
}

func (r *flakyRequester) CreateClip(context.Context, string) (string, error) {
	r.calls++
	if r.failing {
		return "", errors.New("api down")
	}
	return "https://clips.example/ok", nil
}

func newTestGuard(inner Requester, opts ...GuardOption) (*GuardedRequester, func(time.Time)) {
	g := NewGuardedRequester(inner, opts...)
	current := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }
	return g, func(t time.Time) { current = t }
}

func TestGuardedRequester_PassesThroughWhileHealthy(t *testing.T) {
	t.Parallel()

	inner := &flakyRequester{}
	g, _ := newTestGuard(inner)

	for i := 0; i < 5; i++ {
		url, err := g.CreateClip(context.Background(), "title")
		if err != nil || url == "" {
			t.Fatalf("CreateClip = %q, %v; want success", url, err)
		}
	}
	if inner.calls != 5 {
		t.Errorf("inner calls = %d, want 5", inner.calls)
	}
}

func TestGuardedRequester_SuspendsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	inner := &flakyRequester{failing: true}
	g, _ := newTestGuard(inner, WithMaxFailures(3))

	for i := 0; i < 3; i++ {
		if _, err := g.CreateClip(context.Background(), "title"); err == nil {
			t.Fatal("CreateClip succeeded against a failing service")
		}
	}
	if !g.Suspended() {
		t.Fatal("guard not suspended after 3 consecutive failures")
	}

	// Rejected without reaching the service.
	if _, err := g.CreateClip(context.Background(), "title"); !errors.Is(err, ErrServiceSuspended) {
		t.Errorf("CreateClip while suspended = %v, want ErrServiceSuspended", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3 (no calls while suspended)", inner.calls)
	}
}

func TestGuardedRequester_ProbeRecovers(t *testing.T) {
	t.Parallel()

	inner := &flakyRequester{failing: true}
	g, setNow := newTestGuard(inner, WithMaxFailures(2), WithRetryAfter(time.Minute))

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		g.CreateClip(context.Background(), "title")
	}
	if !g.Suspended() {
		t.Fatal("guard not suspended")
	}

	// After the retry window, one probe goes through and succeeds.
	inner.failing = false
	setNow(base.Add(2 * time.Minute))
	url, err := g.CreateClip(context.Background(), "title")
	if err != nil || url == "" {
		t.Fatalf("probe CreateClip = %q, %v; want success", url, err)
	}
	if g.Suspended() {
		t.Error("guard still suspended after a successful probe")
	}

	// Normal traffic flows again.
	if _, err := g.CreateClip(context.Background(), "title"); err != nil {
		t.Errorf("CreateClip after recovery = %v, want success", err)
	}
}

func TestGuardedRequester_FailedProbeSuspendsAgain(t *testing.T) {
	t.Parallel()

	inner := &flakyRequester{failing: true}
	g, setNow := newTestGuard(inner, WithMaxFailures(2), WithRetryAfter(time.Minute))

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		g.CreateClip(context.Background(), "title")
	}

	setNow(base.Add(2 * time.Minute))
	if _, err := g.CreateClip(context.Background(), "title"); err == nil {
		t.Fatal("probe succeeded against a failing service")
	}
	if !g.Suspended() {
		t.Error("guard not re-suspended after a failed probe")
	}

	// Still rejected inside the new retry window.
	setNow(base.Add(2*time.Minute + 30*time.Second))
	if _, err := g.CreateClip(context.Background(), "title"); !errors.Is(err, ErrServiceSuspended) {
		t.Errorf("CreateClip = %v, want ErrServiceSuspended", err)
	}
}

package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/pkg/audio"
)

// fakeSession records audio chunks and lets tests inject hypotheses.
type fakeSession struct {
	partials chan Hypothesis
	finals   chan Hypothesis

	mu     sync.Mutex
	chunks [][]byte
	closed bool

	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		partials: make(chan Hypothesis, 4),
		finals:   make(chan Hypothesis, 4),
	}
}

func (s *fakeSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *fakeSession) Partials() <-chan Hypothesis { return s.partials }
func (s *fakeSession) Finals() <-chan Hypothesis   { return s.finals }

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.partials)
		close(s.finals)
	})
	return nil
}

func (s *fakeSession) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// fakeRecognizer hands out one fakeSession per language and can be told to
// fail specific languages.
type fakeRecognizer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
	fail     map[string]bool
}

func newFakeRecognizer(failLangs ...string) *fakeRecognizer {
	fail := make(map[string]bool, len(failLangs))
	for _, l := range failLangs {
		fail[l] = true
	}
	return &fakeRecognizer{
		sessions: make(map[string]*fakeSession),
		fail:     fail,
	}
}

func (r *fakeRecognizer) Start(_ context.Context, cfg StreamConfig) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[cfg.Language] {
		return nil, errors.New("engine unavailable")
	}
	s := newFakeSession()
	r.sessions[cfg.Language] = s
	return s, nil
}

func (r *fakeRecognizer) session(lang string) *fakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[lang]
}

func testConfig() MatcherConfig {
	return MatcherConfig{
		SampleRate:  16000,
		Sensitivity: 1.0,
		Languages: []LanguageConfig{
			{Language: "en", Phrases: []string{"wow", "that's amazing"}},
			{Language: "cs", Phrases: []string{"to je skvělé"}},
		},
	}
}

func recvResult(t *testing.T, m *Matcher) detect.Result {
	t.Helper()
	select {
	case res, ok := <-m.Results():
		if !ok {
			t.Fatal("results channel closed unexpectedly")
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no detection within 2s")
	}
	panic("unreachable")
}

func TestNewMatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewMatcher(context.Background(), nil, testConfig()); err == nil {
		t.Error("NewMatcher(nil recognizer) succeeded, want error")
	}

	cfg := testConfig()
	cfg.SampleRate = 0
	if _, err := NewMatcher(context.Background(), newFakeRecognizer(), cfg); err == nil {
		t.Error("NewMatcher with zero sample rate succeeded, want error")
	}
}

func TestNewMatcher_AllSessionsFail(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer("en", "cs")
	if _, err := NewMatcher(context.Background(), rec, testConfig()); err == nil {
		t.Error("NewMatcher with no working language succeeded, want error")
	}
}

func TestNewMatcher_SkipsFailedLanguage(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer("cs")
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	if len(m.langs) != 1 || m.langs[0].language != "en" {
		t.Errorf("matcher kept %d language sessions, want only en", len(m.langs))
	}
	if !m.Available() {
		t.Error("Available = false with a working session")
	}
}

func TestMatcher_DetectsPhraseFromHypothesis(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	rec.session("en").finals <- Hypothesis{Text: "Wow that was unreal", Final: true}

	res := recvResult(t, m)
	if res.Detector != detect.KindSpeech {
		t.Errorf("Detector = %q, want %q", res.Detector, detect.KindSpeech)
	}
	if res.Label != "wow" {
		t.Errorf("Label = %q, want %q", res.Label, "wow")
	}
	if res.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", res.Confidence)
	}
}

func TestMatcher_MatchesPartialHypotheses(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	rec.session("cs").partials <- Hypothesis{Text: "to je skvele"}

	res := recvResult(t, m)
	if res.Label != "to je skvělé" {
		t.Errorf("Label = %q, want %q", res.Label, "to je skvělé")
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 for a diacritic variation", res.Confidence)
	}
}

func TestMatcher_PhraseCooldown(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }
	en := m.langs[0]

	// First hit fires.
	m.match(en, "wow nice one")
	if res := recvResult(t, m); res.Label != "wow" {
		t.Fatalf("Label = %q, want wow", res.Label)
	}

	// Repeat inside the cooldown is suppressed.
	current = base.Add(2 * time.Second)
	m.match(en, "wow again")
	select {
	case res := <-m.Results():
		t.Fatalf("got %+v during cooldown, want suppression", res)
	default:
	}

	// Out of cooldown it fires again.
	current = base.Add(phraseCooldown + time.Second)
	m.match(en, "wow once more")
	if res := recvResult(t, m); res.Label != "wow" {
		t.Fatalf("Label = %q after cooldown, want wow", res.Label)
	}
}

func TestMatcher_CooldownIsPerPhrase(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	en := m.langs[0]

	m.match(en, "wow")
	if res := recvResult(t, m); res.Label != "wow" {
		t.Fatalf("Label = %q, want wow", res.Label)
	}

	// A different phrase is not affected by wow's cooldown.
	m.match(en, "that's amazing")
	if res := recvResult(t, m); res.Label != "that's amazing" {
		t.Fatalf("Label = %q, want that's amazing", res.Label)
	}
}

func TestMatcher_ProcessFansOutToAllSessions(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	frame := audio.Frame{Samples: make([]float64, 256), SampleRate: 16000}
	m.Process(context.Background(), frame)

	for _, lang := range []string{"en", "cs"} {
		s := rec.session(lang)
		if got := s.chunkCount(); got != 1 {
			t.Errorf("%s session received %d chunks, want 1", lang, got)
		}
		s.mu.Lock()
		chunkLen := len(s.chunks[0])
		s.mu.Unlock()
		if chunkLen != 512 {
			t.Errorf("%s chunk length = %d bytes, want 512", lang, chunkLen)
		}
	}
}

func TestMatcher_Close(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	m, err := NewMatcher(context.Background(), rec, testConfig())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Available() {
		t.Error("Available = true after Close")
	}
	if _, ok := <-m.Results(); ok {
		t.Error("results channel still open after Close")
	}
	// Idempotent.
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMatcher_SensitivityControlsThreshold(t *testing.T) {
	t.Parallel()

	rec := newFakeRecognizer()
	cfg := testConfig()
	m, err := NewMatcher(context.Background(), rec, cfg)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	defer m.Close()

	m.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }
	en := m.langs[0]

	// At minimum sensitivity the threshold is 0.82: a lone-word substring
	// match at 0.5 no longer qualifies.
	m.SetSensitivity(0.1)
	m.match(en, "something amazing happened")
	select {
	case res := <-m.Results():
		t.Fatalf("got %+v at low sensitivity, want none", res)
	default:
	}
}

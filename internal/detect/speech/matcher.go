package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/pkg/audio"
)

// phraseCooldown suppresses repeat detections of the same phrase. Partial
// and final hypotheses for one utterance usually both contain the phrase;
// without the cooldown each utterance would fire twice.
const phraseCooldown = 3 * time.Second

// resultBuffer bounds the result channel.
const resultBuffer = 16

// LanguageConfig is one recognition language and its trigger phrases.
type LanguageConfig struct {
	// Language is the language code passed to the recogniser.
	Language string

	// Phrases are the trigger phrases to watch for.
	Phrases []string
}

// MatcherConfig configures a [Matcher].
type MatcherConfig struct {
	// SampleRate is the sample rate of the incoming frames.
	SampleRate int

	// Sensitivity in [0.1, 1.0] controls the match threshold.
	Sensitivity float64

	// Languages lists the recognition languages and their phrases.
	Languages []LanguageConfig
}

// Matcher streams frames into one recogniser session per language and
// emits a detection whenever a hypothesis matches a trigger phrase.
//
// Process must be called from a single goroutine; all other methods are
// safe for concurrent use.
type Matcher struct {
	sampleRate int

	mu          sync.Mutex
	sensitivity float64
	cooldowns   map[string]time.Time
	now         func() time.Time

	langs   []*langSession
	results chan detect.Result

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// langSession is one language's recognition stream.
type langSession struct {
	language string
	entries  []phraseEntry
	session  Session
}

// NewMatcher opens a recognition session per configured language and
// starts watching their hypotheses. A language whose session cannot be
// started is skipped with a warning; NewMatcher fails only when no session
// could be started at all.
func NewMatcher(ctx context.Context, rec Recognizer, cfg MatcherConfig) (*Matcher, error) {
	if rec == nil {
		return nil, errors.New("speech: recognizer must not be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("speech: invalid sample rate %d", cfg.SampleRate)
	}

	m := &Matcher{
		sampleRate:  cfg.SampleRate,
		sensitivity: clampSensitivity(cfg.Sensitivity),
		cooldowns:   make(map[string]time.Time),
		now:         time.Now,
		results:     make(chan detect.Result, resultBuffer),
		done:        make(chan struct{}),
	}

	for _, lang := range cfg.Languages {
		if len(lang.Phrases) == 0 {
			slog.Warn("speech: language has no phrases, skipping", "language", lang.Language)
			continue
		}
		sess, err := rec.Start(ctx, StreamConfig{
			SampleRate: cfg.SampleRate,
			Language:   lang.Language,
		})
		if err != nil {
			slog.Warn("speech: failed to start recognition session",
				"language", lang.Language,
				"error", err,
			)
			continue
		}

		entries := make([]phraseEntry, 0, len(lang.Phrases))
		for _, p := range lang.Phrases {
			entries = append(entries, newPhraseEntry(p))
		}
		ls := &langSession{
			language: lang.Language,
			entries:  entries,
			session:  sess,
		}
		m.langs = append(m.langs, ls)

		m.wg.Add(1)
		go m.watch(ls)
	}

	if len(m.langs) == 0 {
		close(m.done)
		close(m.results)
		return nil, errors.New("speech: no recognition session could be started")
	}
	return m, nil
}

// Kind identifies this classifier in results and metrics.
func (m *Matcher) Kind() detect.Kind { return detect.KindSpeech }

// Available reports whether the matcher can accept audio.
func (m *Matcher) Available() bool {
	select {
	case <-m.done:
		return false
	default:
		return len(m.langs) > 0
	}
}

// SetSensitivity updates the match threshold input, clamped to [0.1, 1.0].
func (m *Matcher) SetSensitivity(s float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensitivity = clampSensitivity(s)
}

// Process converts the frame to PCM and feeds every language session.
func (m *Matcher) Process(_ context.Context, frame audio.Frame) {
	pcm := audio.PCM16(frame.Samples)
	for _, ls := range m.langs {
		if err := ls.session.SendAudio(pcm); err != nil {
			slog.Debug("speech: send audio failed",
				"language", ls.language,
				"error", err,
			)
		}
	}
}

// Results returns the channel of detections. Closed by Close.
func (m *Matcher) Results() <-chan detect.Result { return m.results }

// Close terminates all recognition sessions and closes the result channel.
// Safe to call more than once.
func (m *Matcher) Close() error {
	var errs []error
	m.once.Do(func() {
		close(m.done)
		for _, ls := range m.langs {
			if err := ls.session.Close(); err != nil {
				errs = append(errs, fmt.Errorf("speech: close %s session: %w", ls.language, err))
			}
		}
		m.wg.Wait()
		close(m.results)
	})
	return errors.Join(errs...)
}

// watch consumes one session's hypothesis channels until both close or the
// matcher shuts down. Partials are matched as well as finals so triggers
// fire as early as possible.
func (m *Matcher) watch(ls *langSession) {
	defer m.wg.Done()

	partials := ls.session.Partials()
	finals := ls.session.Finals()
	for partials != nil || finals != nil {
		select {
		case <-m.done:
			return
		case h, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			m.match(ls, h.Text)
		case h, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			m.match(ls, h.Text)
		}
	}
}

// match scores a hypothesis against the language's phrases and emits a
// detection per surviving phrase, honouring the per-phrase cooldown.
func (m *Matcher) match(ls *langSession, text string) {
	m.mu.Lock()
	threshold := matchThreshold(m.sensitivity)
	m.mu.Unlock()

	matches := matchPhrases(ls.entries, text, threshold)
	if len(matches) == 0 {
		return
	}

	for _, match := range matches {
		if !m.claimPhrase(match.phrase) {
			continue
		}
		res := detect.Result{
			Detector:   detect.KindSpeech,
			Label:      match.phrase,
			Confidence: match.confidence,
			Timestamp:  m.now(),
		}
		select {
		case m.results <- res:
			slog.Debug("speech: phrase matched",
				"language", ls.language,
				"phrase", match.phrase,
				"confidence", match.confidence,
			)
		case <-m.done:
			return
		default:
		}
	}
}

// claimPhrase reports whether the phrase is out of cooldown and marks it
// fired.
func (m *Matcher) claimPhrase(phrase string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.cooldowns[phrase]; ok && now.Sub(last) < phraseCooldown {
		return false
	}
	m.cooldowns[phrase] = now
	return true
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

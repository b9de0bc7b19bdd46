package clips

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/LordBoos/smartclip/internal/detect"
	"github.com/LordBoos/smartclip/internal/pipeline"
)

// defaultMaxHistory bounds the retained attempt history.
const defaultMaxHistory = 1000

// Manager records clip attempts and forwards them to the configured
// [Requester]. It implements [pipeline.TriggerSink]. Safe for concurrent
// use.
type Manager struct {
	mu          sync.Mutex
	attempts    []Attempt
	maxHistory  int
	path        string
	requester   Requester
	streamTitle string
	now         func() time.Time
}

var _ pipeline.TriggerSink = (*Manager)(nil)

// Option is a functional option for configuring a Manager.
type Option func(*Manager)

// WithRequester forwards accepted triggers to r. Without a requester the
// manager only records attempts.
func WithRequester(r Requester) Option {
	return func(m *Manager) { m.requester = r }
}

// WithHistoryPath persists the attempt history as JSON at path. Existing
// history at path is loaded on construction.
func WithHistoryPath(path string) Option {
	return func(m *Manager) { m.path = path }
}

// WithMaxHistory bounds the retained attempts. Default 1000.
func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithStreamTitle sets the stream title used in clip titles.
func WithStreamTitle(title string) Option {
	return func(m *Manager) { m.streamTitle = title }
}

// NewManager creates a Manager. A corrupt history file is renamed aside
// and replaced rather than failing startup.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxHistory: defaultMaxHistory,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.path != "" {
		m.load()
	}
	return m
}

// HandleTrigger records the trigger and, when a requester is configured,
// asks it to create the clip.
func (m *Manager) HandleTrigger(ctx context.Context, ev pipeline.TriggerEvent) {
	att := Attempt{
		Timestamp:  ev.Timestamp,
		Detector:   ev.Detector,
		Trigger:    ev.Label,
		Confidence: ev.Confidence,
		Title:      BuildTitle(m.streamTitle, ev.Label),
	}

	if m.requester == nil {
		att.Success = true
	} else {
		url, err := m.requester.CreateClip(ctx, att.Title)
		if err != nil {
			att.Error = err.Error()
			slog.Warn("clips: clip creation failed",
				"trigger", ev.Label,
				"error", err,
			)
		} else {
			att.Success = true
			att.URL = url
			slog.Info("clips: clip created",
				"trigger", ev.Label,
				"title", att.Title,
				"url", url,
			)
		}
	}

	m.mu.Lock()
	m.attempts = append(m.attempts, att)
	if len(m.attempts) > m.maxHistory {
		m.attempts = m.attempts[len(m.attempts)-m.maxHistory:]
	}
	m.mu.Unlock()

	m.save()
}

// Attempts returns a copy of the attempt history, oldest first.
func (m *Manager) Attempts() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

// Stats summarises the attempt history.
type Stats struct {
	Total       int                   `json:"total"`
	Succeeded   int                   `json:"succeeded"`
	SuccessRate float64               `json:"success_rate"`
	PerDetector map[detect.Kind]int   `json:"per_detector"`
	PerTrigger  map[string]int        `json:"per_trigger"`
	LastAttempt *Attempt              `json:"last_attempt,omitempty"`
}

// Stats computes summary statistics over the retained history.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		PerDetector: make(map[detect.Kind]int),
		PerTrigger:  make(map[string]int),
	}
	for _, a := range m.attempts {
		s.Total++
		if a.Success {
			s.Succeeded++
		}
		s.PerDetector[a.Detector]++
		s.PerTrigger[a.Trigger]++
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
		last := m.attempts[len(m.attempts)-1]
		s.LastAttempt = &last
	}
	return s
}

// load reads the persisted history. Missing files are fine; anything else
// is logged and ignored so a damaged history cannot block startup.
func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("clips: failed to read history", "path", m.path, "error", err)
		}
		return
	}
	var attempts []Attempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		slog.Warn("clips: corrupt history, starting fresh", "path", m.path, "error", err)
		return
	}
	if len(attempts) > m.maxHistory {
		attempts = attempts[len(attempts)-m.maxHistory:]
	}
	m.attempts = attempts
}

// save persists the history best-effort.
func (m *Manager) save() {
	if m.path == "" {
		return
	}
	m.mu.Lock()
	data, err := json.MarshalIndent(m.attempts, "", "  ")
	m.mu.Unlock()
	if err != nil {
		slog.Warn("clips: failed to encode history", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		slog.Warn("clips: failed to write history", "path", m.path, "error", err)
	}
}

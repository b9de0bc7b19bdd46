// Package speech implements the trigger-phrase matcher. It streams audio
// into one speech recogniser session per configured language and fuzzily
// matches the recognised text against the configured trigger phrases,
// tolerating diacritic loss, contractions, and small recognition errors.
package speech

import "context"

// StreamConfig describes the audio format and language for a new
// recognition session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Language is the language code for recognition (e.g. "en", "cs").
	Language string
}

// Hypothesis is one piece of recognised text.
type Hypothesis struct {
	// Text is the recognised text.
	Text string

	// Final reports whether the recogniser has committed to this text.
	// Non-final hypotheses may still change.
	Final bool
}

// Session is an open recognition stream. Callers must call Close when the
// session is no longer needed. All methods are safe for concurrent use.
type Session interface {
	// SendAudio delivers a chunk of 16-bit signed little-endian mono PCM.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of interim hypotheses. Closed
	// when the session ends.
	Partials() <-chan Hypothesis

	// Finals returns a read-only channel of committed hypotheses. Closed
	// when the session ends.
	Finals() <-chan Hypothesis

	// Close terminates the session, flushes pending audio, and closes the
	// hypothesis channels. Calling Close more than once is safe.
	Close() error
}

// Recognizer is the abstraction over a speech recognition engine. Multiple
// sessions may be open simultaneously (one per configured language).
type Recognizer interface {
	// Start opens a new recognition session. The returned Session is ready
	// to accept audio immediately.
	Start(ctx context.Context, cfg StreamConfig) (Session, error)
}

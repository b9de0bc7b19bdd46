// Package whisper implements the speech.Recognizer interface with the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// Whisper is not a streaming engine, so each session buffers speech and
// runs inference when it sees a long enough silence (or the buffer fills).
// Trigger-phrase matching only needs short utterances, which keeps the
// inference latency acceptable for clip decisions.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/LordBoos/smartclip/internal/detect/speech"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// rmsThreshold is the 16-bit PCM RMS level below which a chunk counts
	// as silence.
	rmsThreshold = 300.0

	// silenceFlushMs is the consecutive-silence duration that triggers a
	// flush of the buffered speech to inference.
	silenceFlushMs = 500

	// maxBufferMs is the maximum buffered speech before a forced flush.
	maxBufferMs = 10_000

	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Recognizer implements speech.Recognizer using whisper.cpp. The model is
// loaded once and shared across all sessions; each session creates its own
// inference context.
type Recognizer struct {
	model    whisperlib.Model
	language string
}

var _ speech.Recognizer = (*Recognizer)(nil)

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the default language code used when a session does not
// specify one. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// New loads the whisper.cpp model from the given file path. The caller
// must call Close when the recogniser is no longer needed.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	r := &Recognizer{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Close releases the whisper model.
func (r *Recognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// Start opens a new recognition session. The returned session is ready to
// accept audio immediately. Sessions are independent and may run
// concurrently.
func (r *Recognizer) Start(ctx context.Context, cfg speech.StreamConfig) (speech.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = r.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}

	s := &session{
		model:      r.model,
		language:   lang,
		sampleRate: sr,

		audioCh:  make(chan []byte, 256),
		partials: make(chan speech.Hypothesis, 64),
		finals:   make(chan speech.Hypothesis, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s, nil
}

// session is one live recognition stream. Silence detection and buffering
// state is confined to the processLoop goroutine.
type session struct {
	model      whisperlib.Model
	language   string
	sampleRate int

	audioCh  chan []byte
	partials chan speech.Hypothesis
	finals   chan speech.Hypothesis

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ speech.Session = (*session)(nil)

// SendAudio queues a chunk of 16-bit signed little-endian mono PCM.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Partials returns the interim hypothesis channel.
func (s *session) Partials() <-chan speech.Hypothesis { return s.partials }

// Finals returns the committed hypothesis channel.
func (s *session) Finals() <-chan speech.Hypothesis { return s.finals }

// Close terminates the session, flushes any buffered speech, and closes
// the hypothesis channels. Safe to call more than once.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop owns silence detection, buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * 2 / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := maxBufferMs * bytesPerMs

	flush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.infer(pcm)
		if err != nil {
			slog.Error("whisper: inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}

		select {
		case s.partials <- speech.Hypothesis{Text: text}:
		default:
		}
		select {
		case s.finals <- speech.Hypothesis{Text: text, Final: true}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case <-s.done:
			flush()
			return

		case chunk := <-s.audioCh:
			rms := pcmRMS(chunk)
			chunkMs := len(chunk) / bytesPerMs

			if rms < rmsThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= silenceFlushMs {
						flush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if len(buffer) >= maxBufferBytes {
					flush()
				}
			}
		}
	}
}

// infer runs whisper.cpp on the buffered PCM and returns the concatenated
// segment text. Each call uses a fresh context; contexts are not
// thread-safe but the model is shared.
func (s *session) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", s.language,
			"error", err,
		)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// pcmRMS computes the RMS level of 16-bit signed little-endian PCM.
func pcmRMS(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(chunk[i*2 : i*2+2]))
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(n))
}

// pcmToFloat32 converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0].
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

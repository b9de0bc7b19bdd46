package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Source produces a stream of audio frames for the pipeline. Implementations
// own their capture resources and stop producing when the context is
// cancelled.
type Source interface {
	// Frames returns a channel that delivers captured frames. The channel is
	// closed when the source reaches end of input or the context is
	// cancelled.
	Frames(ctx context.Context) (<-chan Frame, error)
}

// ReaderSource reads 16-bit signed little-endian mono PCM from an io.Reader
// and chops it into fixed-size frames. This is the usual way to feed the
// pipeline from a capture process such as ffmpeg or pw-record writing to a
// pipe.
type ReaderSource struct {
	r          io.Reader
	sampleRate int
	frameSize  int
}

// ReaderOption is a functional option for configuring a ReaderSource.
type ReaderOption func(*ReaderSource)

// WithSampleRate sets the sample rate of the incoming PCM stream.
// Defaults to [DefaultSampleRate].
func WithSampleRate(rate int) ReaderOption {
	return func(s *ReaderSource) { s.sampleRate = rate }
}

// WithFrameSize sets the number of samples per emitted frame.
// Defaults to [DefaultFrameSize].
func WithFrameSize(n int) ReaderOption {
	return func(s *ReaderSource) { s.frameSize = n }
}

// NewReaderSource creates a ReaderSource reading PCM from r.
func NewReaderSource(r io.Reader, opts ...ReaderOption) (*ReaderSource, error) {
	if r == nil {
		return nil, errors.New("audio: reader must not be nil")
	}
	s := &ReaderSource{
		r:          r,
		sampleRate: DefaultSampleRate,
		frameSize:  DefaultFrameSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", s.sampleRate)
	}
	if s.frameSize <= 0 {
		return nil, fmt.Errorf("audio: invalid frame size %d", s.frameSize)
	}
	return s, nil
}

// Frames starts a reader goroutine and returns the frame channel. A short
// final read is zero-padded to the configured frame size so downstream
// consumers always see uniform frames.
func (s *ReaderSource) Frames(ctx context.Context) (<-chan Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio: context already cancelled: %w", err)
	}

	out := make(chan Frame, 4)
	go func() {
		defer close(out)

		buf := make([]byte, s.frameSize*2)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := io.ReadFull(s.r, buf)
			if n > 0 {
				chunk := buf[:n&^1]
				samples := FromPCM16(chunk)
				if len(samples) < s.frameSize {
					padded := make([]float64, s.frameSize)
					copy(padded, samples)
					samples = padded
				}
				frame := Frame{
					Samples:    samples,
					SampleRate: s.sampleRate,
					Timestamp:  time.Now(),
				}
				select {
				case out <- frame:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out, nil
}

var _ Source = (*ReaderSource)(nil)

package portaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
)

// ErrFormatMismatch is returned when a chunk does not match the stream format.
var ErrFormatMismatch = errors.New("portaudio: chunk format mismatch")

// InputStream captures audio from the default input device.
type InputStream struct {
	stream *pa.Stream
	format pcm.Format
	buf    []int16

	mu     sync.Mutex
	closed atomic.Bool
}

// NewInputStream opens and starts the default input device. Each ReadChunk
// returns bufferDuration of audio.
func NewInputStream(format pcm.Format, bufferDuration time.Duration) (*InputStream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	buf := make([]int16, format.SamplesInDuration(bufferDuration)*int64(format.Channels()))
	stream, err := pa.OpenDefaultStream(format.Channels(), 0, float64(format.SampleRate()), len(buf), &buf)
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("portaudio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		Terminate()
		return nil, fmt.Errorf("portaudio: start input stream: %w", err)
	}
	return &InputStream{stream: stream, format: format, buf: buf}, nil
}

// ReadChunk blocks until one buffer of audio has been captured.
func (s *InputStream) ReadChunk() (pcm.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, io.EOF
	}
	if err := s.stream.Read(); err != nil {
		if errors.Is(err, pa.InputOverflowed) {
			slog.Debug("portaudio: input overflowed")
		} else {
			return nil, fmt.Errorf("portaudio: read: %w", err)
		}
	}
	return s.format.SampleChunk(slices.Clone(s.buf)), nil
}

// Format returns the PCM format.
func (s *InputStream) Format() pcm.Format {
	return s.format
}

// Close stops the stream. A pending ReadChunk completes within one buffer
// duration and later reads return io.EOF.
func (s *InputStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	return errors.Join(err, Terminate())
}

// OutputStream plays audio to the default output device.
type OutputStream struct {
	stream *pa.Stream
	format pcm.Format
	buf    []int16

	mu     sync.Mutex
	closed bool
}

// NewOutputStream opens and starts the default output device. Audio is
// written in blocks of bufferDuration; playback can be cancelled between
// blocks.
func NewOutputStream(format pcm.Format, bufferDuration time.Duration) (*OutputStream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	buf := make([]int16, format.SamplesInDuration(bufferDuration)*int64(format.Channels()))
	stream, err := pa.OpenDefaultStream(0, format.Channels(), float64(format.SampleRate()), len(buf), &buf)
	if err != nil {
		Terminate()
		return nil, fmt.Errorf("portaudio: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		Terminate()
		return nil, fmt.Errorf("portaudio: start output stream: %w", err)
	}
	return &OutputStream{stream: stream, format: format, buf: buf}, nil
}

// Play writes the chunk to the device and returns once it has been rendered
// or ctx is cancelled.
func (s *OutputStream) Play(ctx context.Context, chunk pcm.Chunk) error {
	if chunk.Format() != s.format {
		return ErrFormatMismatch
	}
	dc, ok := chunk.(*pcm.DataChunk)
	if !ok {
		return fmt.Errorf("portaudio: unsupported chunk type %T", chunk)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("portaudio: stream closed")
	}

	for block := range slices.Chunk(dc.Samples(), len(s.buf)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(s.buf, block)
		clear(s.buf[n:])
		if err := s.stream.Write(); err != nil {
			if errors.Is(err, pa.OutputUnderflowed) {
				slog.Debug("portaudio: output underflowed")
				continue
			}
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}

	// The last block is queued; wait for the device latency to drain it.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.stream.Info().OutputLatency):
		return nil
	}
}

// Format returns the PCM format.
func (s *OutputStream) Format() pcm.Format {
	return s.format
}

// Close stops and closes the stream.
func (s *OutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	return errors.Join(err, Terminate())
}

package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
	"github.com/haivivi/wonderchat/pkg/audio/resampler"
)

var (
	// ErrDecode reports a chunk that could not be decoded. The chunk is
	// skipped and playback continues.
	ErrDecode = errors.New("playback: decode failed")

	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("playback: sequencer closed")
)

// Speaker renders PCM. Play blocks until the chunk has finished playing or
// ctx is cancelled.
type Speaker interface {
	Play(ctx context.Context, chunk pcm.Chunk) error
}

// AudioData is one encoded audio part as received from the model.
type AudioData struct {
	MIMEType string
	Data     string
}

// rateConverter resamples PCM to the output rate.
type rateConverter interface {
	Convert(data []byte) ([]byte, error)
	Reset() error
}

// Config configures a Sequencer.
type Config struct {
	Speaker Speaker

	// SampleRate is the output rate in Hz. Defaults to 24000.
	SampleRate int

	// OnSpeakingChange is called with true when playback starts and false
	// when the queue has drained or was interrupted.
	OnSpeakingChange func(bool)

	// OnError receives decode and playback failures. Neither stops the loop.
	OnError func(error)

	// OnPlayed is called after each chunk finished playing.
	OnPlayed func(pcm.Chunk)

	Logger *slog.Logger
}

// Sequencer plays audio parts back to back in arrival order.
type Sequencer struct {
	cfg    Config
	format pcm.Format
	logger *slog.Logger

	mu         sync.Mutex
	queue      []AudioData
	running    bool
	closed     bool
	cancel     context.CancelFunc
	done       chan struct{}
	converters map[int]rateConverter

	speaking atomic.Bool
}

// New creates a Sequencer.
func New(cfg Config) (*Sequencer, error) {
	if cfg.Speaker == nil {
		return nil, errors.New("playback: speaker is required")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = pcm.L16Mono24K.SampleRate()
	}
	format, ok := pcm.FormatForRate(cfg.SampleRate)
	if !ok {
		return nil, fmt.Errorf("playback: unsupported output rate %d", cfg.SampleRate)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sequencer{
		cfg:        cfg,
		format:     format,
		logger:     cfg.Logger,
		converters: make(map[int]rateConverter),
	}, nil
}

// Enqueue appends a part to the queue and starts playback if idle.
func (s *Sequencer) Enqueue(d AudioData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.queue = append(s.queue, d)
	if !s.running {
		s.running = true
		prev := s.done
		s.done = make(chan struct{})
		go s.loop(prev, s.done)
	}
	return nil
}

// Interrupt drops every queued part and stops the one playing. The queue is
// empty when Interrupt returns.
func (s *Sequencer) Interrupt() {
	s.mu.Lock()
	n := len(s.queue)
	s.queue = nil
	if s.cancel != nil {
		s.cancel()
	}
	for rate, c := range s.converters {
		if err := c.Reset(); err != nil {
			// Rebuilt on the next chunk at this rate.
			s.logger.Warn("playback: resampler reset failed", "rate", rate, "error", err)
			delete(s.converters, rate)
		}
	}
	s.mu.Unlock()
	s.logger.Debug("playback: interrupted", "dropped", n)
}

// Len returns the number of parts waiting to be played.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Speaking reports whether playback is active.
func (s *Sequencer) Speaking() bool {
	return s.speaking.Load()
}

// Close interrupts playback and waits for the loop to exit. It must not be
// called from a Config callback.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	if s.cancel != nil {
		s.cancel()
	}
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

func (s *Sequencer) loop(prev, done chan struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}
	s.setSpeaking(true)
	defer s.setSpeaking(false)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue[0] = AudioData{}
		s.queue = s.queue[1:]
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.mu.Unlock()

		s.playOne(ctx, d)
		cancel()
	}
}

func (s *Sequencer) playOne(ctx context.Context, d AudioData) {
	chunk, err := s.decode(d)
	if err != nil {
		s.logger.Warn("playback: skipping chunk", "mime", d.MIMEType, "error", err)
		s.emitError(fmt.Errorf("%w: %w", ErrDecode, err))
		return
	}
	if ctx.Err() != nil {
		return
	}
	err = s.cfg.Speaker.Play(ctx, chunk)
	switch {
	case err == nil:
		s.logger.Debug("playback: chunk complete", "duration", chunk.Format().Duration(chunk.Len()))
		if s.cfg.OnPlayed != nil {
			s.cfg.OnPlayed(chunk)
		}
	case errors.Is(err, context.Canceled):
	default:
		s.emitError(fmt.Errorf("playback: %w", err))
	}
}

func (s *Sequencer) decode(d AudioData) (pcm.Chunk, error) {
	rate, err := pcm.ParseMIMEType(d.MIMEType)
	if err != nil {
		return nil, err
	}
	data, err := pcm.DecodeBase64(d.Data)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio payload")
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd payload length %d", len(data))
	}
	out := s.format
	if rate != out.SampleRate() {
		conv, err := s.converter(rate)
		if err != nil {
			return nil, err
		}
		if data, err = conv.Convert(data); err != nil {
			return nil, err
		}
	}
	return out.DataChunk(data), nil
}

func (s *Sequencer) converter(rate int) (rateConverter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.converters[rate]; ok {
		return c, nil
	}
	c, err := resampler.NewConverter(rate, s.format.SampleRate())
	if err != nil {
		return nil, err
	}
	s.converters[rate] = c
	return c, nil
}

func (s *Sequencer) setSpeaking(v bool) {
	s.speaking.Store(v)
	if s.cfg.OnSpeakingChange != nil {
		s.cfg.OnSpeakingChange(v)
	}
}

func (s *Sequencer) emitError(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

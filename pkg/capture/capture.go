package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
	"github.com/haivivi/wonderchat/pkg/buffer"
	"github.com/haivivi/wonderchat/pkg/vad"
)

// ErrDeviceUnavailable is returned when the microphone cannot be opened or
// fails while capturing.
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// Defaults for Config.
const (
	DefaultChunkDuration = 128 * time.Millisecond
	DefaultVADInterval   = 100 * time.Millisecond
)

// Microphone is a started capture device. ReadChunk blocks until one chunk of
// the requested duration is available. Close unblocks a pending ReadChunk.
type Microphone interface {
	ReadChunk() (pcm.Chunk, error)
	Close() error
}

// Opener opens the capture device for the given format, delivering chunks of
// the given duration.
type Opener func(format pcm.Format, chunk time.Duration) (Microphone, error)

// Handler receives engine events. All callbacks of one capture session are
// invoked from a single goroutine in order; nil callbacks are skipped.
// Callbacks must not call Start or Stop on the same Engine.
type Handler struct {
	OnChunk         func(pcm.Chunk)
	OnChunkBase64   func(string)
	OnActivityStart func()
	OnActivityEnd   func()
	OnStatus        func(string)
	OnError         func(error)
	OnActiveChange  func(bool)
}

// Config configures an Engine.
type Config struct {
	// Open opens the microphone. Required.
	Open Opener

	// Format is the capture format. Defaults to pcm.L16Mono16K.
	Format pcm.Format

	// ChunkDuration is the size of each delivered chunk.
	ChunkDuration time.Duration

	// VADInterval is the sampling period of the detector.
	VADInterval time.Duration

	// AnalysisWindow is the number of most recent samples measured at each
	// detector tick. Defaults to one chunk.
	AnalysisWindow int

	// VAD holds the detector settings.
	VAD vad.Config

	Handler Handler
	Logger  *slog.Logger
}

// Engine captures microphone audio and reports speech activity.
type Engine struct {
	cfg      Config
	handler  Handler
	logger   *slog.Logger
	detector *vad.Detector
	window   *buffer.RingBuffer[int16]

	// injectable for tests
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	vadCfg vad.Config
	run    *run

	// owned by the loop goroutine while a run is active
	speaking bool
}

type run struct {
	mic     Microphone
	cancel  context.CancelFunc
	updates chan vad.Config
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (r *run) closeMic() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.mic.Close()
	})
	return r.closeErr
}

// New creates an Engine. The engine is idle until Start.
func New(cfg Config) (*Engine, error) {
	if cfg.Open == nil {
		return nil, errors.New("capture: Config.Open is required")
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultChunkDuration
	}
	if cfg.VADInterval <= 0 {
		cfg.VADInterval = DefaultVADInterval
	}
	if cfg.AnalysisWindow <= 0 {
		cfg.AnalysisWindow = int(cfg.Format.SamplesInDuration(cfg.ChunkDuration))
	}
	if err := cfg.VAD.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		handler:   cfg.Handler,
		logger:    logger,
		detector:  vad.NewDetector(cfg.VAD),
		window:    buffer.RingN[int16](cfg.AnalysisWindow),
		newTicker: defaultTicker,
		vadCfg:    cfg.VAD,
	}, nil
}

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Active reports whether the engine is capturing.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// VADConfig returns the current detector settings.
func (e *Engine) VADConfig() vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vadCfg
}

// Start opens the microphone and begins capturing. Calling Start on an active
// engine is a no-op. On failure nothing is left running and the error wraps
// ErrDeviceUnavailable.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		return nil
	}

	e.status("Requesting microphone access...")
	mic, err := e.cfg.Open(e.cfg.Format, e.cfg.ChunkDuration)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		e.emitError(err)
		e.status("Failed to start audio input")
		return err
	}
	e.status("Microphone access granted")

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		mic:     mic,
		cancel:  cancel,
		updates: make(chan vad.Config, 1),
		done:    make(chan struct{}),
	}
	e.run = r
	e.detector.SetConfig(e.vadCfg)
	e.detector.Reset()
	e.window.Reset()
	e.speaking = false

	if e.handler.OnActiveChange != nil {
		e.handler.OnActiveChange(true)
	}
	e.status("Audio input started")
	if !e.vadCfg.Enabled {
		e.logger.Debug("capture: vad disabled, opening activity for session")
		e.activityStart()
	}

	go e.loop(loopCtx, r)
	return nil
}

// Stop releases the device. When Stop returns the loop has exited, an
// activity end has been delivered for any open interval, and no further
// chunks will be delivered. Stop on an idle engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	r := e.run
	e.run = nil
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	r.cancel()
	err := r.closeMic()
	<-r.done
	return err
}

// UpdateVAD merges p into the detector settings. Changes apply from the next
// detector tick. Toggling Enabled while capturing opens or closes the
// always-speaking interval used when detection is off.
func (e *Engine) UpdateVAD(p vad.Patch) error {
	e.mu.Lock()
	cfg := p.Apply(e.vadCfg)
	if err := cfg.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.vadCfg = cfg
	r := e.run
	e.mu.Unlock()

	if r == nil {
		e.detector.SetConfig(cfg)
		return nil
	}
	for {
		select {
		case r.updates <- cfg:
			return nil
		case <-r.done:
			return nil
		default:
		}
		// Replace a pending update that the loop has not consumed yet.
		select {
		case <-r.updates:
		default:
		}
	}
}

func (e *Engine) loop(ctx context.Context, r *run) {
	defer close(r.done)

	type readResult struct {
		chunk pcm.Chunk
		err   error
	}
	chunks := make(chan readResult)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			c, err := r.mic.ReadChunk()
			select {
			case chunks <- readResult{c, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	tick, stopTick := e.newTicker(e.cfg.VADInterval)
	defer stopTick()

	var failure error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case res := <-chunks:
			if ctx.Err() != nil {
				break loop
			}
			if res.err != nil {
				failure = fmt.Errorf("%w: %v", ErrDeviceUnavailable, res.err)
				break loop
			}
			e.deliver(res.chunk)
		case now := <-tick:
			if ctx.Err() != nil {
				break loop
			}
			e.sample(now)
		case cfg := <-r.updates:
			e.applyVAD(cfg)
		}
	}

	r.cancel()
	_ = r.closeMic()
	<-readerDone

	if failure != nil {
		e.logger.Error("capture: device failure", "error", failure)
		e.emitError(failure)
	}

	if e.speaking {
		e.logger.Debug("capture: closing open activity on stop")
		e.activityEnd()
	}
	e.detector.Reset()
	e.window.Reset()
	e.status("Audio input stopped")
	if e.handler.OnActiveChange != nil {
		e.handler.OnActiveChange(false)
	}

	// The engine stays active until the closing callbacks have run.
	if failure != nil {
		e.mu.Lock()
		if e.run == r {
			e.run = nil
		}
		e.mu.Unlock()
	}
}

func (e *Engine) deliver(c pcm.Chunk) {
	dc, ok := c.(*pcm.DataChunk)
	if !ok {
		return
	}
	e.window.Write(dc.Samples())
	if e.handler.OnChunk != nil {
		e.handler.OnChunk(dc)
	}
	if e.handler.OnChunkBase64 != nil {
		e.handler.OnChunkBase64(pcm.EncodeBase64(dc.Data))
	}
}

func (e *Engine) sample(t time.Time) {
	if !e.detector.Config().Enabled {
		return
	}
	level := pcm.Level(e.window.Snapshot())
	switch e.detector.Observe(level, t) {
	case vad.ActivityStart:
		e.logger.Debug("capture: speech detected", "level", level)
		e.activityStart()
	case vad.ActivityEnd:
		e.logger.Debug("capture: speech ended", "level", level)
		e.activityEnd()
	}
}

func (e *Engine) applyVAD(cfg vad.Config) {
	was := e.detector.Config().Enabled
	e.detector.SetConfig(cfg)
	switch {
	case was && !cfg.Enabled:
		e.detector.Reset()
		if !e.speaking {
			e.activityStart()
		}
	case !was && cfg.Enabled:
		e.detector.Reset()
		if e.speaking {
			e.activityEnd()
		}
	}
}

func (e *Engine) activityStart() {
	e.speaking = true
	if e.handler.OnActivityStart != nil {
		e.handler.OnActivityStart()
	}
}

func (e *Engine) activityEnd() {
	e.speaking = false
	if e.handler.OnActivityEnd != nil {
		e.handler.OnActivityEnd()
	}
}

func (e *Engine) status(msg string) {
	e.logger.Debug("capture: " + msg)
	if e.handler.OnStatus != nil {
		e.handler.OnStatus(msg)
	}
}

func (e *Engine) emitError(err error) {
	if e.handler.OnError != nil {
		e.handler.OnError(err)
	}
}

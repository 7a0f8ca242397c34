package voicechat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
	"github.com/haivivi/wonderchat/pkg/capture"
	"github.com/haivivi/wonderchat/pkg/geminilive"
	"github.com/haivivi/wonderchat/pkg/metrics"
	"github.com/haivivi/wonderchat/pkg/playback"
	"github.com/haivivi/wonderchat/pkg/turn"
	"github.com/haivivi/wonderchat/pkg/vad"
)

// ErrNotConnected is returned by operations that need a Connected session.
var ErrNotConnected = errors.New("voicechat: not connected")

// DefaultPreConnectGrace is how long Connect waits after force-closing a
// previous session.
const DefaultPreConnectGrace = 250 * time.Millisecond

// Status strings emitted besides the ones from package turn.
const (
	StatusListening   = "Listening..."
	StatusProcessing  = "Processing..."
	StatusSpeaking    = "Speaking..."
	StatusReady       = "Ready"
	StatusSendingText = "Sending message..."
)

// Handler receives conversation events. Nil callbacks are skipped.
type Handler struct {
	OnTranscript func(kind turn.TranscriptKind, text string)
	OnStatus     func(string)
	OnError      func(error)

	// OnLogExport receives the debug log when a session is torn down.
	OnLogExport func(string)

	// OnTurn receives each model turn once it is closed.
	OnTurn func(*turn.Turn)
}

// Config configures an Orchestrator.
type Config struct {
	// Client opens Live sessions. Required.
	Client *geminilive.Client

	// Setup is sent when a session opens.
	Setup geminilive.Setup

	// Capture configures the microphone. Open is required; Handler and VAD
	// are managed by the orchestrator.
	Capture capture.Config

	// VAD is the initial detector configuration. The zero value selects
	// vad.DefaultConfig.
	VAD vad.Config

	// Speaker renders model audio. Required.
	Speaker playback.Speaker

	// AutoListen starts listening as soon as the session is connected.
	AutoListen bool

	// PreConnectGrace defaults to DefaultPreConnectGrace.
	PreConnectGrace time.Duration

	// DebugLogEntries bounds the debug log; defaults to
	// DefaultDebugLogEntries.
	DebugLogEntries int

	Handler Handler
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Orchestrator wires capture, the Live session, the turn state machine and
// playback into one conversation.
type Orchestrator struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics

	machine *turn.Machine
	player  *playback.Sequencer
	debug   *debugLog

	// lifecycle serializes Connect, Disconnect, StartListening and
	// StopListening.
	lifecycle sync.Mutex

	// dispatchMu serializes Dispatch calls; dispatching is the session whose
	// event is being dispatched.
	dispatchMu  sync.Mutex
	dispatching *geminilive.Session

	mu            sync.Mutex
	session       *geminilive.Session
	engine        *capture.Engine
	vadCfg        vad.Config
	activityOpen  bool
	activityStart time.Time
	connectStart  time.Time
}

// New creates an Orchestrator in the Disconnected state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, errors.New("voicechat: Config.Client is required")
	}
	if cfg.Capture.Open == nil {
		return nil, errors.New("voicechat: Config.Capture.Open is required")
	}
	if cfg.VAD == (vad.Config{}) {
		cfg.VAD = vad.DefaultConfig()
	}
	if err := cfg.VAD.Validate(); err != nil {
		return nil, err
	}
	if cfg.PreConnectGrace <= 0 {
		cfg.PreConnectGrace = DefaultPreConnectGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		cfg:     cfg,
		handler: cfg.Handler,
		logger:  logger,
		metrics: cfg.Metrics,
		vadCfg:  cfg.VAD,
	}
	o.debug = newDebugLog(uuid.New().String()[:8], cfg.DebugLogEntries, logger)

	player, err := playback.New(playback.Config{
		Speaker:          cfg.Speaker,
		OnSpeakingChange: o.onSpeakingChange,
		OnError:          o.onPlaybackError,
		OnPlayed: func(c pcm.Chunk) {
			o.metrics.ChunkPlayed(c.Format().Duration(c.Len()))
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	o.player = player

	o.machine = turn.New(turn.Handler{
		OnState: func(s turn.SessionState) {
			o.metrics.SetSessionState(int(s))
			if s == turn.Connected {
				o.onConnected()
			}
		},
		OnStatus:     o.status,
		OnTranscript: o.onTranscript,
		OnAudio: func(a geminilive.ModelAudio) {
			if err := o.player.Enqueue(playback.AudioData{MIMEType: a.MIMEType, Data: a.Data}); err != nil {
				o.debug.add("Dropping audio part: %v", err)
				return
			}
			o.metrics.SetQueueLen(o.player.Len())
		},
		OnInterrupt: func() {
			o.debug.add("Generation interrupted")
			o.player.Interrupt()
			o.metrics.Interrupted()
			o.metrics.SetQueueLen(0)
		},
		OnError: o.emitError,
		OnForceDisconnect: func(reason string) {
			o.forceDisconnect(o.dispatching, reason)
		},
		OnTurnClosed: func(t *turn.Turn) {
			o.debug.add("Turn %s %s (%d parts)", t.ID, t.Status, len(t.Parts))
			o.metrics.TurnClosed(t.Status.String())
			if o.handler.OnTurn != nil {
				o.handler.OnTurn(t)
			}
		},
	}, logger)
	return o, nil
}

// State returns the session state.
func (o *Orchestrator) State() turn.SessionState {
	return o.machine.State()
}

// IsConnected reports whether setup has been acknowledged.
func (o *Orchestrator) IsConnected() bool {
	return o.machine.State() == turn.Connected
}

// IsListening reports whether the microphone is capturing.
func (o *Orchestrator) IsListening() bool {
	o.mu.Lock()
	eng := o.engine
	o.mu.Unlock()
	return eng != nil && eng.Active()
}

// IsAISpeaking reports whether model audio is playing.
func (o *Orchestrator) IsAISpeaking() bool {
	return o.player.Speaking()
}

// DebugLog returns the debug log of the current connection.
func (o *Orchestrator) DebugLog() string {
	return o.debug.String()
}

// VADConfig returns the detector settings used for the next capture.
func (o *Orchestrator) VADConfig() vad.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vadCfg
}

// Connect opens a new session. A previous session that is still open is
// force-closed first. Connect returns once the socket is open and setup has
// been sent; the Connected status follows asynchronously.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.debug.reset()
	o.debug.add("Connect method called")

	o.mu.Lock()
	stale := o.session != nil || o.machine.State() != turn.Disconnected
	o.mu.Unlock()
	if stale {
		o.debug.add("WARN: previous session not closed. Forcing close.")
		o.teardown()
		select {
		case <-time.After(o.cfg.PreConnectGrace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.player.Interrupt()
	o.debug.add("Cleanup of playback complete before new connection.")

	if err := o.machine.BeginConnect(); err != nil {
		return err
	}
	o.mu.Lock()
	o.connectStart = time.Now()
	o.mu.Unlock()

	o.debug.add("Connecting to Live API (model %s)", o.cfg.Setup.Model)
	sess, err := o.cfg.Client.Connect(ctx, o.cfg.Setup)
	if err != nil {
		o.debug.add("ERROR connecting: %v", err)
		o.emitError(err)
		o.machine.Closed()
		return err
	}

	o.debug.add("WS open. Setup sent (%d chars of system instruction).", len(o.cfg.Setup.SystemInstruction))
	o.machine.SocketOpen()
	o.machine.SetupSent()

	o.mu.Lock()
	o.session = sess
	o.mu.Unlock()
	go o.readEvents(sess)
	return nil
}

// Disconnect stops capture and playback and closes the session. It is safe to
// call at any time and more than once.
func (o *Orchestrator) Disconnect() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.debug.add("disconnect method called.")
	if !o.teardown() {
		return
	}
	if o.handler.OnLogExport != nil {
		o.handler.OnLogExport(o.debug.String())
	}
}

// forceDisconnect tears down sess if it is still the current session. A
// newer session opened by Connect in the meantime is left alone.
func (o *Orchestrator) forceDisconnect(sess *geminilive.Session, reason string) {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	if o.currentSession() != sess {
		o.debug.add("Ignoring forced disconnect of a replaced session: %s", reason)
		return
	}
	o.debug.add("Forcing disconnect: %s", reason)
	if !o.teardown() {
		return
	}
	if o.handler.OnLogExport != nil {
		o.handler.OnLogExport(o.debug.String())
	}
}

// teardown releases everything held by the current session. It reports
// whether there was anything to release. The caller holds lifecycle.
func (o *Orchestrator) teardown() bool {
	o.mu.Lock()
	sess := o.session
	eng := o.engine
	o.session = nil
	o.engine = nil
	o.mu.Unlock()

	o.player.Interrupt()
	o.metrics.SetQueueLen(0)
	if eng != nil {
		o.debug.add("Stopping audio capture")
		eng.Stop()
	}
	closing := o.machine.BeginClose()
	if sess != nil {
		o.debug.add("Closing WebSocket")
		sess.Close()
	}
	o.machine.Closed()
	return closing || sess != nil || eng != nil
}

// StartListening starts the microphone. Audio is forwarded only while a
// speech interval is open.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.debug.add("startAudioStream called.")
	if !o.IsConnected() {
		o.debug.add("Cannot start audio: Not connected.")
		o.emitError(ErrNotConnected)
		return ErrNotConnected
	}

	o.mu.Lock()
	eng := o.engine
	vadCfg := o.vadCfg
	o.mu.Unlock()
	if eng != nil {
		if eng.Active() {
			o.debug.add("Audio capture already active.")
			return nil
		}
		o.debug.add("WARN: stale capture engine found. Destroying it first.")
		eng.Stop()
	}

	ccfg := o.cfg.Capture
	ccfg.VAD = vadCfg
	ccfg.Logger = o.logger
	ccfg.Handler = capture.Handler{
		OnChunk:         o.onChunk,
		OnActivityStart: o.onActivityStart,
		OnActivityEnd:   o.onActivityEnd,
		OnStatus: func(s string) {
			o.debug.add("Capture status: %s", s)
		},
		OnError: func(err error) {
			o.debug.add("Capture error: %v", err)
			o.emitError(err)
		},
		OnActiveChange: func(active bool) {
			o.debug.add("Capture active state changed: %t", active)
		},
	}
	eng, err := capture.New(ccfg)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.engine = eng
	o.mu.Unlock()

	if err := eng.Start(ctx); err != nil {
		o.mu.Lock()
		if o.engine == eng {
			o.engine = nil
		}
		o.mu.Unlock()
		return err
	}
	return nil
}

// StopListening stops the microphone. An open speech interval is closed and
// reported to the service. Chunks captured after this call are dropped.
func (o *Orchestrator) StopListening() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.debug.add("stopAudioStream called.")
	o.mu.Lock()
	eng := o.engine
	o.engine = nil
	o.mu.Unlock()
	if eng == nil {
		o.debug.add("Audio capture not active.")
		return
	}
	eng.Stop()
	if o.IsConnected() && !o.IsAISpeaking() {
		o.status(StatusReady)
	}
}

// SendText sends a text turn. Blank text is ignored.
func (o *Orchestrator) SendText(text string) error {
	if !o.IsConnected() {
		o.debug.add("Cannot send text: Not connected")
		o.emitError(ErrNotConnected)
		return ErrNotConnected
	}
	if strings.TrimSpace(text) == "" {
		o.debug.add("Text is empty, not sending")
		return nil
	}
	sess := o.currentSession()
	if sess == nil {
		return ErrNotConnected
	}
	o.debug.add("Sending text message: %s", abbreviate(text, 50))
	o.status(StatusSendingText)
	if err := sess.SendText(text); err != nil {
		o.metrics.SendFailed()
		return fmt.Errorf("voicechat: send text: %w", err)
	}
	o.metrics.FrameSent(metrics.FrameText)
	return nil
}

// UpdateVADSettings merges p into the detector settings. A running capture
// picks up the change on its next detection cycle.
func (o *Orchestrator) UpdateVADSettings(p vad.Patch) error {
	o.mu.Lock()
	cfg := p.Apply(o.vadCfg)
	if err := cfg.Validate(); err != nil {
		o.mu.Unlock()
		return err
	}
	o.vadCfg = cfg
	eng := o.engine
	o.mu.Unlock()

	o.debug.add("Updating VAD options: %+v", cfg)
	if eng == nil {
		return nil
	}
	return eng.UpdateVAD(p)
}

// Close disconnects and releases the playback loop.
func (o *Orchestrator) Close() error {
	o.Disconnect()
	return o.player.Close()
}

func (o *Orchestrator) currentSession() *geminilive.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

func (o *Orchestrator) readEvents(sess *geminilive.Session) {
	for ev, err := range sess.Events() {
		if o.currentSession() != sess {
			return
		}
		if err != nil {
			o.debug.add("ERROR parsing WS message: %v", err)
			o.metrics.ProtocolError()
			o.emitError(err)
			continue
		}
		o.metrics.EventReceived(eventName(ev))
		o.logEvent(ev)
		o.dispatch(sess, ev)
	}
}

func (o *Orchestrator) dispatch(sess *geminilive.Session, ev geminilive.Event) {
	o.dispatchMu.Lock()
	defer o.dispatchMu.Unlock()
	if o.currentSession() != sess {
		return
	}
	o.dispatching = sess
	defer func() { o.dispatching = nil }()
	o.machine.Dispatch(ev)
}

func (o *Orchestrator) logEvent(ev geminilive.Event) {
	switch ev := ev.(type) {
	case geminilive.SetupComplete:
		o.debug.add("Setup complete received")
		o.mu.Lock()
		started := o.connectStart
		o.mu.Unlock()
		o.metrics.Connected(time.Since(started))
	case geminilive.ModelText:
		o.debug.add("Model text response: %s", abbreviate(ev.Text, 50))
	case geminilive.ModelAudio:
		o.debug.add("Received audio part (%s, %d base64 bytes)", ev.MIMEType, len(ev.Data))
	case geminilive.InputTranscription:
		kind := "interim"
		if ev.Final {
			kind = "final"
		}
		o.debug.add("Input transcription (%s): %s", kind, ev.Text)
	case geminilive.TurnComplete:
		o.debug.add("Turn complete")
	case geminilive.ServerError:
		o.debug.add("Server error: %v", ev.Err)
		o.metrics.ServerError()
	case geminilive.GoAway:
		o.debug.add("Server is closing connection in %s", ev.TimeLeft)
	case geminilive.Closed:
		o.debug.add("WS closed. Code: %d, Reason: %s", ev.Code, ev.Reason)
	}
}

func (o *Orchestrator) onConnected() {
	if !o.cfg.AutoListen {
		return
	}
	go func() {
		if err := o.StartListening(context.Background()); err != nil {
			o.debug.add("Auto-start listening failed: %v", err)
		}
	}()
}

func (o *Orchestrator) onChunk(c pcm.Chunk) {
	o.mu.Lock()
	open := o.activityOpen
	sess := o.session
	o.mu.Unlock()
	if !open || sess == nil {
		o.metrics.FrameDropped()
		return
	}
	if err := sess.SendAudio(c); err != nil {
		o.metrics.SendFailed()
		o.logger.Debug("voicechat: dropping chunk", "error", err)
		return
	}
	o.metrics.FrameSent(metrics.FrameAudio)
}

func (o *Orchestrator) onActivityStart() {
	o.debug.add("VAD detected speech start - sending activityStart")
	o.mu.Lock()
	o.activityOpen = true
	o.activityStart = time.Now()
	sess := o.session
	o.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.SendActivityStart(); err != nil {
		o.metrics.SendFailed()
		o.debug.add("activityStart not sent: %v", err)
		return
	}
	o.metrics.FrameSent(metrics.FrameActivityStart)
	o.status(StatusListening)
}

func (o *Orchestrator) onActivityEnd() {
	o.debug.add("VAD detected speech end - sending activityEnd")
	o.mu.Lock()
	o.activityOpen = false
	o.metrics.Activity(time.Since(o.activityStart))
	sess := o.session
	o.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.SendActivityEnd(); err != nil {
		o.metrics.SendFailed()
		o.debug.add("activityEnd not sent: %v", err)
		return
	}
	o.metrics.FrameSent(metrics.FrameActivityEnd)
	o.status(StatusProcessing)
}

func (o *Orchestrator) onSpeakingChange(speaking bool) {
	if speaking {
		o.debug.add("Playing audio from queue")
		o.status(StatusSpeaking)
		return
	}
	o.metrics.SetQueueLen(o.player.Len())
	if o.IsConnected() && !o.IsListening() {
		o.status(StatusReady)
	}
}

func (o *Orchestrator) onPlaybackError(err error) {
	if errors.Is(err, playback.ErrDecode) {
		o.metrics.DecodeError()
	}
	o.debug.add("Error playing audio: %v", err)
	o.emitError(err)
}

func (o *Orchestrator) onTranscript(kind turn.TranscriptKind, text string) {
	if o.handler.OnTranscript != nil {
		o.handler.OnTranscript(kind, text)
	}
}

func (o *Orchestrator) status(s string) {
	o.debug.add("Status: %s", s)
	if o.handler.OnStatus != nil {
		o.handler.OnStatus(s)
	}
}

func (o *Orchestrator) emitError(err error) {
	if o.handler.OnError != nil {
		o.handler.OnError(err)
	}
}

func eventName(ev geminilive.Event) string {
	switch ev.(type) {
	case geminilive.SetupComplete:
		return "setup_complete"
	case geminilive.ModelText:
		return "model_text"
	case geminilive.ModelAudio:
		return "model_audio"
	case geminilive.InputTranscription:
		return "input_transcription"
	case geminilive.TurnComplete:
		return "turn_complete"
	case geminilive.Interrupted:
		return "interrupted"
	case geminilive.ServerError:
		return "error"
	case geminilive.GoAway:
		return "go_away"
	case geminilive.Closed:
		return "closed"
	}
	return "unknown"
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package turn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/wonderchat/pkg/geminilive"
)

// ErrInvalidTransition is returned when an explicit transition is not allowed
// from the current state.
var ErrInvalidTransition = errors.New("turn: invalid state transition")

// Handler receives the effects of transitions and dispatched events. Nil
// callbacks are skipped. Callbacks run after the machine has released its
// lock, so they may call back into the machine.
type Handler struct {
	OnState      func(SessionState)
	OnStatus     func(string)
	OnTranscript func(kind TranscriptKind, text string)

	// OnAudio receives each audio part in arrival order.
	OnAudio func(geminilive.ModelAudio)

	// OnInterrupt must flush pending playback before returning.
	OnInterrupt func()

	OnError func(error)

	// OnForceDisconnect is called when the session must be torn down: the
	// service rejected the credentials or closed the connection.
	OnForceDisconnect func(reason string)

	OnTurnClosed func(*Turn)
}

// Machine interprets inbound events and tracks the session state. It is safe
// for concurrent use; events must be dispatched from one goroutine in
// arrival order.
type Machine struct {
	handler Handler
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state SessionState
	turn  *Turn
}

// New creates a machine in the Disconnected state.
func New(h Handler, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		handler: h,
		logger:  logger,
		now:     time.Now,
	}
}

// State returns the current session state.
func (m *Machine) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentTurn returns a copy of the open turn, or nil.
func (m *Machine) CurrentTurn() *Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.turn == nil {
		return nil
	}
	t := *m.turn
	t.Parts = append([]Part(nil), m.turn.Parts...)
	return &t
}

// effects collects callbacks to run once the lock is released.
type effects []func()

func (e effects) run() {
	for _, f := range e {
		f()
	}
}

// BeginConnect moves Disconnected to Connecting.
func (m *Machine) BeginConnect() error {
	return m.transition(Disconnected, Connecting, StatusConnecting)
}

// SocketOpen reports that the transport is open. The state stays Connecting
// until setup has been sent.
func (m *Machine) SocketOpen() error {
	return m.transition(Connecting, Connecting, StatusConnectionOpen)
}

// SetupSent moves Connecting to AwaitingSetupAck.
func (m *Machine) SetupSent() error {
	return m.transition(Connecting, AwaitingSetupAck, StatusInitializing)
}

func (m *Machine) transition(from, to SessionState, status string) error {
	var fx effects
	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
	}
	if m.state != to {
		m.state = to
		fx = append(fx, m.stateEffect(to))
	}
	fx = append(fx, m.statusEffect(status))
	m.mu.Unlock()
	fx.run()
	return nil
}

// BeginClose moves any live state to Closing and abandons the open turn. It
// reports false when the session is already closing or closed.
func (m *Machine) BeginClose() bool {
	var fx effects
	m.mu.Lock()
	if m.state == Disconnected || m.state == Closing {
		m.mu.Unlock()
		return false
	}
	fx = append(fx, m.closeTurn(Abandoned)...)
	m.state = Closing
	fx = append(fx, m.stateEffect(Closing))
	m.mu.Unlock()
	fx.run()
	return true
}

// Closed moves the session to Disconnected. Calling it while already
// disconnected is a no-op.
func (m *Machine) Closed() {
	var fx effects
	m.mu.Lock()
	if m.state == Disconnected {
		m.mu.Unlock()
		return
	}
	fx = append(fx, m.closeTurn(Abandoned)...)
	m.state = Disconnected
	fx = append(fx, m.stateEffect(Disconnected), m.statusEffect(StatusDisconnected))
	m.mu.Unlock()
	fx.run()
}

// Dispatch applies one inbound event.
func (m *Machine) Dispatch(ev geminilive.Event) {
	var fx effects
	m.mu.Lock()
	fx = m.dispatchLocked(ev)
	m.mu.Unlock()
	fx.run()
}

func (m *Machine) dispatchLocked(ev geminilive.Event) effects {
	if m.state == Disconnected || m.state == Closing {
		m.logger.Debug("turn: dropping event on inactive session", "state", m.state, "event", fmt.Sprintf("%T", ev))
		return nil
	}

	var fx effects
	switch ev := ev.(type) {
	case geminilive.SetupComplete:
		fx = append(fx, m.closeTurn(Abandoned)...)
		switch m.state {
		case Connecting, AwaitingSetupAck:
			m.state = Connected
			fx = append(fx, m.stateEffect(Connected), m.statusEffect(StatusConnected))
		default:
			m.logger.Warn("turn: setup acknowledged twice", "state", m.state)
		}

	case geminilive.ModelText:
		t := m.openTurn()
		t.Parts = append(t.Parts, Part{Text: ev.Text})
		if h := m.handler.OnTranscript; h != nil {
			fx = append(fx, func() { h(Model, ev.Text) })
		}

	case geminilive.ModelAudio:
		t := m.openTurn()
		t.Parts = append(t.Parts, Part{MIMEType: ev.MIMEType, Data: ev.Data})
		if h := m.handler.OnAudio; h != nil {
			fx = append(fx, func() { h(ev) })
		}

	case geminilive.InputTranscription:
		kind := Interim
		if ev.Final {
			kind = Final
		}
		if h := m.handler.OnTranscript; h != nil {
			fx = append(fx, func() { h(kind, ev.Text) })
		}

	case geminilive.TurnComplete:
		fx = append(fx, m.closeTurn(Completed)...)

	case geminilive.Interrupted:
		fx = append(fx, m.closeTurn(Interrupted)...)
		if h := m.handler.OnInterrupt; h != nil {
			fx = append(fx, h)
		}
		if h := m.handler.OnTranscript; h != nil {
			fx = append(fx, func() { h(Model, InterruptedMarker) })
		}

	case geminilive.ServerError:
		err := ev.Err
		if h := m.handler.OnError; h != nil {
			fx = append(fx, func() { h(err) })
		}
		if errors.Is(err, geminilive.ErrAuthentication) {
			if h := m.handler.OnForceDisconnect; h != nil {
				fx = append(fx, func() { h(err.Error()) })
			}
		}

	case geminilive.GoAway:
		m.logger.Info("turn: server closing connection", "time_left", ev.TimeLeft)
		fx = append(fx, m.statusEffect(StatusServerClosing))

	case geminilive.Closed:
		reason := fmt.Sprintf("connection closed: code=%d reason=%q", ev.Code, ev.Reason)
		m.logger.Info("turn: "+reason, "state", m.state)
		if h := m.handler.OnForceDisconnect; h != nil {
			fx = append(fx, func() { h(reason) })
		}

	default:
		m.logger.Warn("turn: unhandled event", "event", fmt.Sprintf("%T", ev))
	}
	return fx
}

func (m *Machine) openTurn() *Turn {
	if m.turn == nil {
		m.turn = newTurn(m.now())
	}
	return m.turn
}

func (m *Machine) closeTurn(status TurnStatus) effects {
	t := m.turn
	if t == nil {
		return nil
	}
	m.turn = nil
	t.Status = status
	t.EndedAt = m.now()
	m.logger.Debug("turn: closed", "id", t.ID, "status", status, "parts", len(t.Parts))
	if h := m.handler.OnTurnClosed; h != nil {
		return effects{func() { h(t) }}
	}
	return nil
}

func (m *Machine) stateEffect(s SessionState) func() {
	return func() {
		if h := m.handler.OnState; h != nil {
			h(s)
		}
	}
}

func (m *Machine) statusEffect(status string) func() {
	return func() {
		if h := m.handler.OnStatus; h != nil {
			h(status)
		}
	}
}

package turn

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/haivivi/wonderchat/pkg/geminilive"
)

// recorder logs every callback as a string so tests can assert on order.
type recorder struct {
	log    []string
	turns  []*Turn
	forced []string
}

func (r *recorder) handler() Handler {
	return Handler{
		OnState:  func(s SessionState) { r.log = append(r.log, "state:"+s.String()) },
		OnStatus: func(s string) { r.log = append(r.log, "status:"+s) },
		OnTranscript: func(k TranscriptKind, text string) {
			r.log = append(r.log, fmt.Sprintf("transcript:%s:%s", k, text))
		},
		OnAudio:     func(a geminilive.ModelAudio) { r.log = append(r.log, "audio:"+a.Data) },
		OnInterrupt: func() { r.log = append(r.log, "interrupt") },
		OnError:     func(err error) { r.log = append(r.log, "error:"+err.Error()) },
		OnForceDisconnect: func(reason string) {
			r.forced = append(r.forced, reason)
			r.log = append(r.log, "force-disconnect")
		},
		OnTurnClosed: func(t *Turn) {
			r.turns = append(r.turns, t)
			r.log = append(r.log, "turn:"+t.Status.String())
		},
	}
}

func (r *recorder) reset() { r.log = nil }

func connected(t *testing.T, r *recorder) *Machine {
	t.Helper()
	m := New(r.handler(), nil)
	if err := m.BeginConnect(); err != nil {
		t.Fatal(err)
	}
	if err := m.SocketOpen(); err != nil {
		t.Fatal(err)
	}
	if err := m.SetupSent(); err != nil {
		t.Fatal(err)
	}
	m.Dispatch(geminilive.SetupComplete{})
	return m
}

func TestConnectStatusSequence(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)

	want := []string{
		"state:connecting",
		"status:Connecting...",
		"status:Connection open...",
		"state:awaiting_setup_ack",
		"status:Initializing...",
		"state:connected",
		"status:Connected",
	}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log =\n%q\nwant\n%q", r.log, want)
	}
	if m.State() != Connected {
		t.Errorf("State() = %v", m.State())
	}
}

func TestInvalidTransitions(t *testing.T) {
	r := &recorder{}
	m := New(r.handler(), nil)
	if err := m.SetupSent(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetupSent from Disconnected: err = %v", err)
	}
	if err := m.BeginConnect(); err != nil {
		t.Fatal(err)
	}
	if err := m.BeginConnect(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BeginConnect twice: err = %v", err)
	}
}

func TestModelTurn(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	r.reset()

	m.Dispatch(geminilive.ModelText{Text: "Hello there"})
	m.Dispatch(geminilive.ModelAudio{MIMEType: "audio/pcm;rate=24000", Data: "a1"})
	m.Dispatch(geminilive.ModelAudio{MIMEType: "audio/pcm;rate=24000", Data: "a2"})

	cur := m.CurrentTurn()
	if cur == nil || cur.Status != Open || len(cur.Parts) != 3 {
		t.Fatalf("CurrentTurn() = %+v", cur)
	}
	if cur.ID == "" {
		t.Error("turn has no ID")
	}

	m.Dispatch(geminilive.TurnComplete{})

	want := []string{
		"transcript:model:Hello there",
		"audio:a1",
		"audio:a2",
		"turn:completed",
	}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log = %q, want %q", r.log, want)
	}
	if m.CurrentTurn() != nil {
		t.Error("turn still open after TurnComplete")
	}
	got := r.turns[0]
	if got.Text() != "Hello there" || got.AudioParts() != 2 {
		t.Errorf("closed turn text=%q audio=%d", got.Text(), got.AudioParts())
	}
	if got.EndedAt.Before(got.StartedAt) {
		t.Error("EndedAt before StartedAt")
	}
}

func TestTurnCompleteWithoutTurn(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	r.reset()

	m.Dispatch(geminilive.TurnComplete{})
	if len(r.log) != 0 {
		t.Errorf("log = %q, want nothing", r.log)
	}
}

func TestInterrupted(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	m.Dispatch(geminilive.ModelAudio{MIMEType: "audio/pcm", Data: "a1"})
	r.reset()

	m.Dispatch(geminilive.Interrupted{})

	want := []string{"turn:interrupted", "interrupt", "transcript:model:" + InterruptedMarker}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log = %q, want %q", r.log, want)
	}

	// The next model part starts a fresh turn.
	m.Dispatch(geminilive.ModelText{Text: "again"})
	if cur := m.CurrentTurn(); cur == nil || cur.ID == r.turns[0].ID {
		t.Errorf("CurrentTurn() = %+v, want a new turn", cur)
	}
}

func TestTranscriptions(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	r.reset()

	m.Dispatch(geminilive.InputTranscription{Text: "hel"})
	m.Dispatch(geminilive.InputTranscription{Text: "hello", Final: true})

	want := []string{"transcript:interim:hel", "transcript:final:hello"}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log = %q, want %q", r.log, want)
	}
	if m.State() != Connected || m.CurrentTurn() != nil {
		t.Error("transcription changed the session or turn state")
	}
}

func TestSetupCompleteAbandonsOpenTurn(t *testing.T) {
	r := &recorder{}
	m := New(r.handler(), nil)
	m.BeginConnect()
	m.SetupSent()
	m.Dispatch(geminilive.ModelText{Text: "early"})
	r.reset()

	m.Dispatch(geminilive.SetupComplete{})

	want := []string{"turn:abandoned", "state:connected", "status:Connected"}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log = %q, want %q", r.log, want)
	}
}

func TestServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       *geminilive.Error
		wantForce bool
	}{
		{"quota", &geminilive.Error{Status: geminilive.StatusResourceExhausted, Message: "slow down"}, false},
		{"unauthenticated", &geminilive.Error{Status: geminilive.StatusUnauthenticated, Message: "bad key"}, true},
		{"grpc code 16", &geminilive.Error{Code: 16, Message: "bad key"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			m := connected(t, r)
			r.reset()

			m.Dispatch(geminilive.ServerError{Err: tt.err})

			if len(r.log) == 0 || r.log[0] != "error:"+tt.err.Error() {
				t.Fatalf("log = %q", r.log)
			}
			if got := len(r.forced) == 1; got != tt.wantForce {
				t.Errorf("forced disconnect = %v, want %v", got, tt.wantForce)
			}
			if m.State() != Connected {
				t.Errorf("State() = %v; the machine leaves teardown to the handler", m.State())
			}
		})
	}
}

func TestRemoteClose(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	r.reset()

	m.Dispatch(geminilive.GoAway{})
	m.Dispatch(geminilive.Closed{Code: 1011, Reason: "boom"})

	if r.log[0] != "status:"+StatusServerClosing {
		t.Errorf("log[0] = %q", r.log[0])
	}
	if len(r.forced) != 1 {
		t.Fatalf("forced = %q", r.forced)
	}
}

func TestCloseLifecycle(t *testing.T) {
	r := &recorder{}
	m := connected(t, r)
	m.Dispatch(geminilive.ModelText{Text: "half"})
	r.reset()

	if !m.BeginClose() {
		t.Fatal("BeginClose() = false")
	}
	if m.BeginClose() {
		t.Error("second BeginClose() = true")
	}
	// Events arriving while closing are dropped.
	m.Dispatch(geminilive.ModelAudio{MIMEType: "audio/pcm", Data: "late"})
	m.Dispatch(geminilive.Closed{Code: 1000})
	m.Closed()
	m.Closed()

	want := []string{
		"turn:abandoned",
		"state:closing",
		"state:disconnected",
		"status:Disconnected",
	}
	if !reflect.DeepEqual(r.log, want) {
		t.Errorf("log = %q, want %q", r.log, want)
	}
	if err := m.BeginConnect(); err != nil {
		t.Errorf("reconnect after close: %v", err)
	}
}

func TestCallbacksMayReenter(t *testing.T) {
	var m *Machine
	m = New(Handler{
		OnForceDisconnect: func(string) {
			m.BeginClose()
			m.Closed()
		},
	}, nil)
	m.BeginConnect()
	m.SetupSent()
	m.Dispatch(geminilive.SetupComplete{})
	m.Dispatch(geminilive.ServerError{Err: &geminilive.Error{Status: geminilive.StatusPermissionDenied}})
	if m.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", m.State())
	}
}

package turn

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the connection state of one conversation.
type SessionState int

const (
	Disconnected SessionState = iota
	Connecting
	AwaitingSetupAck
	Connected
	Closing
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingSetupAck:
		return "awaiting_setup_ack"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	}
	return "unknown"
}

// TranscriptKind labels a transcript event.
type TranscriptKind string

const (
	// Interim is a partial transcript of the user's speech.
	Interim TranscriptKind = "interim"
	// Final is a settled transcript of the user's speech.
	Final TranscriptKind = "final"
	// Model is text spoken or written by the model.
	Model TranscriptKind = "model"
)

// InterruptedMarker is the model transcript emitted when a response is cut
// off.
const InterruptedMarker = "[Interrupted]"

// Status strings emitted by the machine.
const (
	StatusConnecting     = "Connecting..."
	StatusConnectionOpen = "Connection open..."
	StatusInitializing   = "Initializing..."
	StatusConnected      = "Connected"
	StatusServerClosing  = "Server closing connection..."
	StatusDisconnected   = "Disconnected"
)

// TurnStatus is the lifecycle state of a model turn.
type TurnStatus int

const (
	Open TurnStatus = iota
	Completed
	Interrupted
	// Abandoned turns were still open when the session restarted or closed.
	Abandoned
)

func (s TurnStatus) String() string {
	switch s {
	case Open:
		return "open"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Abandoned:
		return "abandoned"
	}
	return "unknown"
}

// Part is one piece of a model turn: text or an audio payload.
type Part struct {
	Text     string
	MIMEType string
	Data     string
}

// IsAudio reports whether the part carries audio.
func (p Part) IsAudio() bool {
	return p.MIMEType != ""
}

// Turn accumulates the parts of one model response.
type Turn struct {
	ID        string
	Parts     []Part
	StartedAt time.Time
	EndedAt   time.Time
	Status    TurnStatus
}

func newTurn(now time.Time) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		StartedAt: now,
		Status:    Open,
	}
}

// Text returns the text parts joined with spaces.
func (t *Turn) Text() string {
	var out string
	for _, p := range t.Parts {
		if p.IsAudio() || p.Text == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p.Text
	}
	return out
}

// AudioParts returns the number of audio parts.
func (t *Turn) AudioParts() int {
	n := 0
	for _, p := range t.Parts {
		if p.IsAudio() {
			n++
		}
	}
	return n
}

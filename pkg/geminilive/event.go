package geminilive

import "time"

// Event is a decoded inbound event. The concrete types are SetupComplete,
// ModelText, ModelAudio, InputTranscription, TurnComplete, Interrupted,
// ServerError, GoAway and Closed.
type Event interface {
	liveEvent()
}

// SetupComplete acknowledges the setup message. Sends are accepted after it.
type SetupComplete struct{}

// ModelText carries the text parts of one model turn frame, joined with
// spaces.
type ModelText struct {
	Text string
}

// ModelAudio is one inline audio part of a model turn. Data is the base64
// payload as received; decoding is left to the consumer.
type ModelAudio struct {
	MIMEType string
	Data     string
}

// InputTranscription is a transcript of the user's speech.
type InputTranscription struct {
	Text  string
	Final bool
}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Interrupted reports that the model's response was cut off by the user.
type Interrupted struct{}

// ServerError is an error frame from the service.
type ServerError struct {
	Err *Error
}

// GoAway warns that the service will close the connection soon.
type GoAway struct {
	TimeLeft time.Duration
}

// Closed is the last event of a session closed by the remote side or the
// network.
type Closed struct {
	Code   int
	Reason string
}

func (SetupComplete) liveEvent()      {}
func (ModelText) liveEvent()          {}
func (ModelAudio) liveEvent()         {}
func (InputTranscription) liveEvent() {}
func (TurnComplete) liveEvent()       {}
func (Interrupted) liveEvent()        {}
func (ServerError) liveEvent()        {}
func (GoAway) liveEvent()             {}
func (Closed) liveEvent()             {}

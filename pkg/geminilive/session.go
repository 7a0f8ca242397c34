package geminilive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/wonderchat/pkg/audio/pcm"
)

const closeWriteTimeout = time.Second

// Session is one open Live connection. It is safe for concurrent use.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	closeCh   chan struct{}
	doneCh    chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex

	ready  atomic.Bool
	closed atomic.Bool
}

type eventOrError struct {
	event Event
	err   error
}

func newSession(conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:     conn,
		logger:   logger,
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
}

// Ready reports whether the setup acknowledgement has been received.
func (s *Session) Ready() bool {
	return s.ready.Load() && !s.closed.Load()
}

// Done is closed when the read loop exits.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// SendAudio streams one PCM chunk as realtime input.
func (s *Session) SendAudio(chunk pcm.Chunk) error {
	var buf bytes.Buffer
	buf.Grow(int(chunk.Len()))
	if _, err := chunk.WriteTo(&buf); err != nil {
		return err
	}
	return s.SendAudioBase64(chunk.Format().MIMEType(), pcm.EncodeBase64(buf.Bytes()))
}

// SendAudioBase64 streams already encoded audio as realtime input.
func (s *Session) SendAudioBase64(mimeType, data string) error {
	return s.sendPayload(clientMessage{RealtimeInput: &wireRealtimeInput{
		Media: &wireBlob{MIMEType: mimeType, Data: data},
	}})
}

// SendActivityStart marks the beginning of user speech.
func (s *Session) SendActivityStart() error {
	return s.sendPayload(clientMessage{RealtimeInput: &wireRealtimeInput{ActivityStart: &struct{}{}}})
}

// SendActivityEnd marks the end of user speech.
func (s *Session) SendActivityEnd() error {
	return s.sendPayload(clientMessage{RealtimeInput: &wireRealtimeInput{ActivityEnd: &struct{}{}}})
}

// SendText sends a complete user text turn.
func (s *Session) SendText(text string) error {
	return s.sendPayload(clientMessage{ClientContent: &wireClientContent{
		Turns:        []wireContent{{Role: "user", Parts: []wirePart{{Text: text}}}},
		TurnComplete: true,
	}})
}

// Events returns an iterator over inbound events. Decoding errors are yielded
// with a nil event and iteration continues. A remote close yields a final
// Closed event. Iteration ends when the session is closed.
func (s *Session) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
			}
		}
	}
}

// Close closes the session with a normal close frame. It is safe to call
// more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		remoteClosed := s.closed.Swap(true)
		close(s.closeCh)
		if remoteClosed {
			return
		}

		s.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		s.mu.Unlock()

		err = s.conn.Close()
	})
	return err
}

func (s *Session) sendPayload(msg clientMessage) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.ready.Load() {
		return ErrNotReady
	}
	return s.send(msg)
}

// send writes one frame. Setup uses it directly, before the session is ready.
func (s *Session) send(msg clientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(msg); err == nil {
			s.logger.Debug("geminilive: sending frame", "content", truncate(string(b), 500))
		}
	}
	return s.conn.WriteJSON(msg)
}

func (s *Session) readLoop() {
	defer close(s.doneCh)
	defer close(s.eventsCh)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Swap(true) {
				return
			}
			s.emit(eventOrError{event: closedEvent(err)})
			s.conn.Close()
			return
		}

		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("geminilive: received frame", "len", len(message), "content", truncate(string(message), 1000))
		}

		events, err := decodeFrame(message)
		if err != nil {
			if !s.emit(eventOrError{err: err}) {
				return
			}
			continue
		}
		for _, ev := range events {
			if _, ok := ev.(SetupComplete); ok {
				s.ready.Store(true)
			}
			if !s.emit(eventOrError{event: ev}) {
				return
			}
		}
	}
}

func (s *Session) emit(item eventOrError) bool {
	select {
	case <-s.closeCh:
		return false
	case s.eventsCh <- item:
		return true
	}
}

func closedEvent(err error) Closed {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return Closed{Code: ce.Code, Reason: ce.Text}
	}
	return Closed{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}


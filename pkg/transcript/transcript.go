// Package transcript persists chat sessions and their messages.
//
// Sessions are stored under session:<id> and messages under
// transcript:<session>:<seq>, both msgpack encoded. Sequence numbers are
// zero-padded so that listing returns messages in the order they were
// appended.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/wonderchat/pkg/kv"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message kinds. Spoken sessions also use the transcript kinds of package
// turn ("interim", "final", "model").
const (
	KindText = "text"
)

var ErrSessionNotFound = errors.New("transcript: session not found")

// Session is one conversation with a profile.
type Session struct {
	ID        string    `msgpack:"id" json:"id"`
	ProfileID string    `msgpack:"profile_id" json:"profile_id"`
	Mode      string    `msgpack:"mode" json:"mode"`
	CreatedAt time.Time `msgpack:"created_at" json:"created_at"`
}

// Message is one stored utterance.
type Message struct {
	Seq       int       `msgpack:"seq" json:"seq"`
	Role      string    `msgpack:"role" json:"role"`
	Kind      string    `msgpack:"kind" json:"kind"`
	Content   string    `msgpack:"content" json:"content"`
	CreatedAt time.Time `msgpack:"created_at" json:"created_at"`
}

var (
	sessionPrefix = kv.Key{"session"}
	messagePrefix = kv.Key{"transcript"}
)

// Recorder writes and reads sessions.
type Recorder struct {
	kv  kv.Store
	now func() time.Time

	mu   sync.Mutex
	next map[string]int
}

func NewRecorder(s kv.Store) *Recorder {
	return &Recorder{kv: s, now: time.Now, next: make(map[string]int)}
}

// NewSession creates a session for profileID. Mode names the surface, for
// example "live" or "text".
func (r *Recorder) NewSession(ctx context.Context, profileID, mode string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Mode:      mode,
		CreatedAt: r.now().UTC(),
	}
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, sessionPrefix.Append(s.ID), data); err != nil {
		return nil, fmt.Errorf("transcript: create session: %w", err)
	}
	r.mu.Lock()
	r.next[s.ID] = 1
	r.mu.Unlock()
	return s, nil
}

func (r *Recorder) Session(ctx context.Context, id string) (*Session, error) {
	data, err := r.kv.Get(ctx, sessionPrefix.Append(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("transcript: decode session %s: %w", id, err)
	}
	return &s, nil
}

// Sessions returns all sessions, newest first. A non-empty profileID limits
// the result to that profile.
func (r *Recorder) Sessions(ctx context.Context, profileID string) ([]*Session, error) {
	var out []*Session
	for e, err := range r.kv.List(ctx, sessionPrefix) {
		if err != nil {
			return nil, err
		}
		var s Session
		if err := msgpack.Unmarshal(e.Value, &s); err != nil {
			return nil, fmt.Errorf("transcript: decode %s: %w", e.Key, err)
		}
		if profileID == "" || s.ProfileID == profileID {
			out = append(out, &s)
		}
	}
	slices.SortFunc(out, func(a, b *Session) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Append stores one message at the end of the session.
func (r *Recorder) Append(ctx context.Context, sessionID, role, kind, content string) (*Message, error) {
	seq, err := r.reserve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := &Message{
		Seq:       seq,
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: r.now().UTC(),
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := r.kv.Set(ctx, messageKey(sessionID, seq), data); err != nil {
		return nil, fmt.Errorf("transcript: append: %w", err)
	}
	return m, nil
}

// Messages returns the messages of a session in append order.
func (r *Recorder) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	var out []*Message
	for e, err := range r.kv.List(ctx, messagePrefix.Append(sessionID)) {
		if err != nil {
			return nil, err
		}
		var m Message
		if err := msgpack.Unmarshal(e.Value, &m); err != nil {
			return nil, fmt.Errorf("transcript: decode %s: %w", e.Key, err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// reserve returns the next sequence number of a session, recovering the
// counter from storage the first time a session is seen.
func (r *Recorder) reserve(ctx context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.next[sessionID]; ok {
		r.next[sessionID] = n + 1
		return n, nil
	}
	if _, err := r.Session(ctx, sessionID); err != nil {
		return 0, err
	}
	last := 0
	for e, err := range r.kv.List(ctx, messagePrefix.Append(sessionID)) {
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(e.Key[len(e.Key)-1]); err == nil && n > last {
			last = n
		}
	}
	r.next[sessionID] = last + 2
	return last + 1, nil
}

func messageKey(sessionID string, seq int) kv.Key {
	return messagePrefix.Append(sessionID, fmt.Sprintf("%06d", seq))
}

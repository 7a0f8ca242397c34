package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haivivi/wonderchat/pkg/kv"
)

func newTestRecorder(s kv.Store) *Recorder {
	r := NewRecorder(s)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	r.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }
	return r
}

func TestAppendAndMessages(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(kv.NewMemory())

	s, err := r.NewSession(ctx, "p1", "live")
	if err != nil {
		t.Fatal(err)
	}
	inputs := []struct{ role, kind, text string }{
		{RoleAssistant, KindText, "Hi Sam! I'm WonderChat. How are you feeling today?"},
		{RoleUser, "final", "I saw a dinosaur"},
		{RoleAssistant, "model", "Wow, what kind?"},
	}
	for _, in := range inputs {
		if _, err := r.Append(ctx, s.ID, in.role, in.kind, in.text); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := r.Messages(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != len(inputs) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(inputs))
	}
	for i, m := range msgs {
		if m.Seq != i+1 || m.Role != inputs[i].role || m.Kind != inputs[i].kind || m.Content != inputs[i].text {
			t.Errorf("message %d = %+v, want %+v", i, m, inputs[i])
		}
	}
}

func TestSequenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	r := newTestRecorder(store)
	s, _ := r.NewSession(ctx, "p1", "text")
	for i := 0; i < 11; i++ {
		r.Append(ctx, s.ID, RoleUser, KindText, "x")
	}

	r2 := newTestRecorder(store)
	m, err := r2.Append(ctx, s.ID, RoleUser, KindText, "after restart")
	if err != nil {
		t.Fatal(err)
	}
	if m.Seq != 12 {
		t.Errorf("Seq = %d, want 12", m.Seq)
	}
	msgs, _ := r2.Messages(ctx, s.ID)
	if last := msgs[len(msgs)-1]; last.Content != "after restart" {
		t.Errorf("last message = %+v", last)
	}
}

func TestAppendUnknownSession(t *testing.T) {
	r := newTestRecorder(kv.NewMemory())
	if _, err := r.Append(context.Background(), "nope", RoleUser, KindText, "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	r := newTestRecorder(kv.NewMemory())
	a, _ := r.NewSession(ctx, "p1", "live")
	b, _ := r.NewSession(ctx, "p2", "text")
	c, _ := r.NewSession(ctx, "p1", "text")

	all, err := r.Sessions(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != c.ID || all[2].ID != a.ID {
		t.Errorf("Sessions() not newest first: %v", all)
	}
	p1, _ := r.Sessions(ctx, "p1")
	if len(p1) != 2 {
		t.Errorf("Sessions(p1) = %d sessions, want 2", len(p1))
	}
	got, err := r.Session(ctx, b.ID)
	if err != nil || got.Mode != "text" || !got.CreatedAt.Equal(b.CreatedAt) {
		t.Errorf("Session = %+v, %v", got, err)
	}
}

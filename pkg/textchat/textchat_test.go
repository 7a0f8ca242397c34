package textchat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/genai"

	"github.com/haivivi/wonderchat/pkg/transcript"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	c := &genai.Content{Role: string(genai.RoleModel)}
	for _, p := range parts {
		c.Parts = append(c.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: c}}}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestReply(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("Dinosaurs ", "are great!")}
	c := New(gen, WithInstruction("be kind"), WithLogger(quiet))

	history := []*transcript.Message{
		{Role: transcript.RoleAssistant, Content: "Hi Sam!"},
		{Role: transcript.RoleUser, Content: ""},
		{Role: transcript.RoleUser, Content: "I like dinosaurs"},
	}
	got, err := c.Reply(context.Background(), history, "Tell me more")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Dinosaurs are great!" {
		t.Errorf("Reply = %q", got)
	}
	if gen.model != DefaultModel {
		t.Errorf("model = %q, want %q", gen.model, DefaultModel)
	}

	wantRoles := []genai.Role{genai.RoleModel, genai.RoleUser, genai.RoleUser}
	if len(gen.contents) != len(wantRoles) {
		t.Fatalf("sent %d contents, want %d", len(gen.contents), len(wantRoles))
	}
	for i, r := range wantRoles {
		if gen.contents[i].Role != string(r) {
			t.Errorf("content %d role = %q, want %q", i, gen.contents[i].Role, r)
		}
	}
	if last := gen.contents[2].Parts[0].Text; last != "Tell me more" {
		t.Errorf("last content = %q", last)
	}
	if gen.config == nil || gen.config.SystemInstruction.Parts[0].Text != "be kind" {
		t.Errorf("system instruction not sent: %+v", gen.config)
	}
}

func TestReplyFallback(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{"error", &fakeGenerator{err: errors.New("quota exceeded")}, nil},
		{"no candidates", &fakeGenerator{resp: &genai.GenerateContentResponse{}}, ErrEmptyReply},
		{"blank text", &fakeGenerator{resp: textResponse("  ")}, ErrEmptyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.gen, WithModel("gemini-test"), WithLogger(quiet))
			got, err := c.Reply(context.Background(), nil, "hi")
			if got != Fallback {
				t.Errorf("Reply = %q, want the fallback", got)
			}
			if err == nil {
				t.Fatal("Reply returned no error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if tt.gen.config != nil {
				t.Error("config sent without an instruction")
			}
		})
	}
}

// Package textchat produces non-realtime chat replies with a Gemini text
// model.
package textchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/haivivi/wonderchat/pkg/transcript"
)

// DefaultModel is the text model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// Fallback is returned in place of a reply when generation fails.
const Fallback = "Sorry, I had trouble processing that. Please try again."

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("textchat: empty reply")

// Generator is the subset of *genai.Models used by Chat.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Chat generates replies for one system instruction.
type Chat struct {
	gen         Generator
	model       string
	instruction string
	logger      *slog.Logger
}

type Option func(*Chat)

func WithModel(model string) Option {
	return func(c *Chat) { c.model = model }
}

func WithInstruction(s string) Option {
	return func(c *Chat) { c.instruction = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Chat) { c.logger = l }
}

// New creates a Chat. Pass client.Models of a *genai.Client.
func New(gen Generator, opts ...Option) *Chat {
	c := &Chat{gen: gen, model: DefaultModel, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGeminiClient creates a genai client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("textchat: genai client: %w", err)
	}
	return client, nil
}

// Reply answers prompt given the earlier messages of the session. On failure
// it returns Fallback together with the error, so callers can always show a
// reply.
func (c *Chat) Reply(ctx context.Context, history []*transcript.Message, prompt string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	var cfg *genai.GenerateContentConfig
	if c.instruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(c.instruction, genai.RoleUser),
		}
	}

	resp, err := c.gen.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		err = unwrap(err)
		c.logger.Error("textchat: generate failed", "model", c.model, "error", err)
		return Fallback, fmt.Errorf("textchat: generate: %w", err)
	}
	text := replyText(resp)
	if text == "" {
		c.logger.Warn("textchat: empty reply", "model", c.model)
		return Fallback, ErrEmptyReply
	}
	return text, nil
}

func role(r string) genai.Role {
	if r == transcript.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

func unwrap(err error) error {
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if inner := ae.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}

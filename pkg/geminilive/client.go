package geminilive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultURL is the bidirectional streaming endpoint.
	DefaultURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultHandshakeTimeout bounds the WebSocket handshake.
	DefaultHandshakeTimeout = 15 * time.Second
)

// Client is the Gemini Live API client.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey           string
	url              string
	model            string
	handshakeTimeout time.Duration
	header           http.Header
	logger           *slog.Logger
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new Live client.
//
// The apiKey is required and can be obtained from:
// https://aistudio.google.com/apikey
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("geminilive: API key is required")
	}
	cfg := &clientConfig{
		apiKey:           apiKey,
		url:              DefaultURL,
		model:            ModelNativeAudioDialog,
		handshakeTimeout: DefaultHandshakeTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// WithURL sets the WebSocket URL.
func WithURL(u string) Option {
	return func(c *clientConfig) {
		c.url = u
	}
}

// WithModel sets the model used when Setup.Model is empty.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithHandshakeTimeout bounds the WebSocket handshake. Zero means no bound
// beyond the context passed to Connect.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// WithHeader adds HTTP headers to the handshake request.
func WithHeader(h http.Header) Option {
	return func(c *clientConfig) {
		c.header = h.Clone()
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// Connect opens a session and sends the setup message. It returns once the
// socket is open and setup has been written; the acknowledgement arrives later
// as a SetupComplete event. Sends are rejected with ErrNotReady until then.
func (c *Client) Connect(ctx context.Context, setup Setup) (*Session, error) {
	u, err := url.Parse(c.config.url)
	if err != nil {
		return nil, fmt.Errorf("%w: bad url: %v", ErrConnectionFailed, err)
	}
	q := u.Query()
	q.Set("key", c.config.apiKey)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.handshakeTimeout,
	}
	header := http.Header{}
	for k, v := range c.config.header {
		header[k] = v
	}

	c.config.logger.Debug("geminilive: dialing", "url", c.config.url)
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, &Error{
				Message:    fmt.Sprintf("handshake rejected: %v", err),
				HTTPStatus: resp.StatusCode,
			})
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := newSession(conn, c.config.logger)
	if err := s.send(setupMessage(setup, c.config.model)); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: send setup: %v", ErrConnectionFailed, err)
	}
	go s.readLoop()
	return s, nil
}

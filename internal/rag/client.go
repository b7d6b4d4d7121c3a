// Package rag talks to the retrieval-augmented answering backend.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iksnae/ptsp-chat/internal"
)

const (
	loopbackHost    = "localhost"
	loopbackIPv4    = "127.0.0.1"
	maxErrorBody    = 64 << 10
	maxDetailLength = 500
)

// Response is the backend answer with defaults applied
type Response struct {
	Message          string            `json:"message"`
	Sources          []internal.Source `json:"sources"`
	TotalSources     int               `json:"total_sources"`
	EnhancedFeatures map[string]any    `json:"enhanced_features"`
}

// rawResponse keeps absent fields distinguishable from zero values
type rawResponse struct {
	Message          string            `json:"message"`
	Sources          []internal.Source `json:"sources"`
	TotalSources     *int              `json:"total_sources"`
	EnhancedFeatures map[string]any    `json:"enhanced_features"`
}

// WireMessage is the role/content pair sent to the backend
type WireMessage struct {
	Role    internal.Role `json:"role"`
	Content string        `json:"content"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Messages []WireMessage `json:"messages"`
}

// Client sends conversations to the backend. It keeps no per-call state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the deadline shared by the primary and fallback attempts
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    internal.NormalizeBaseURL(baseURL),
		httpClient: &http.Client{},
		timeout:    internal.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the primary backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ToWire strips messages down to role and content
func ToWire(history []internal.Message) []WireMessage {
	out := make([]WireMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, WireMessage{Role: msg.Role(), Content: msg.Text()})
	}
	return out
}

// Send posts the history to the backend. A transport failure against a
// localhost address is retried once against 127.0.0.1 within the same
// deadline. Non-2xx responses are never retried.
func (c *Client) Send(ctx context.Context, history []internal.Message) (*Response, error) {
	return c.SendWire(ctx, ToWire(history))
}

// SendWire is Send for callers that already hold wire messages
func (c *Client) SendWire(ctx context.Context, messages []WireMessage) (*Response, error) {
	if messages == nil {
		messages = []WireMessage{}
	}
	body, err := json.Marshal(ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	internal.LogDebug("Using RAG backend base URL: %s", c.baseURL)

	target := c.baseURL
	resp, err := c.attempt(ctx, target, body)
	if err != nil {
		if fallback, ok := FallbackURL(c.baseURL); ok {
			internal.LogDebug("Primary attempt failed (%v), retrying with %s", err, fallback)
			target = fallback
			resp, err = c.attempt(ctx, target, body)
		}
		if err != nil {
			internal.LogError("RAG fetch network failure: %v", err)
			return nil, &UnreachableError{URL: target, Err: err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		internal.LogError("RAG API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return nil, &BackendError{Status: resp.StatusCode, Detail: errorDetail(data)}
	}

	var raw rawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &UnreachableError{URL: target, Err: ctxErr}
		}
		return nil, &DecodeError{Err: err}
	}

	return raw.normalize(), nil
}

func (c *Client) attempt(ctx context.Context, base string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// Ping checks that something answers HTTP at the backend address, trying
// the 127.0.0.1 fallback like Send does. Any HTTP status counts as
// reachable. It returns the address that answered.
func (c *Client) Ping(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	try := func(base string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return resp.Body.Close()
	}

	target := c.baseURL
	err := try(target)
	if err != nil {
		if fallback, ok := FallbackURL(c.baseURL); ok {
			target = fallback
			err = try(target)
		}
	}
	if err != nil {
		return "", &UnreachableError{URL: target, Err: err}
	}
	return target, nil
}

func (r rawResponse) normalize() *Response {
	out := &Response{
		Message:          r.Message,
		Sources:          r.Sources,
		EnhancedFeatures: r.EnhancedFeatures,
	}
	if out.Sources == nil {
		out.Sources = []internal.Source{}
	}
	if r.TotalSources != nil {
		out.TotalSources = *r.TotalSources
	} else {
		out.TotalSources = len(out.Sources)
	}
	if out.EnhancedFeatures == nil {
		out.EnhancedFeatures = map[string]any{}
	}
	return out
}

// FallbackURL returns base with a localhost host replaced by 127.0.0.1.
// ok is false when base does not point at localhost.
func FallbackURL(base string) (string, bool) {
	u, err := url.Parse(base)
	if err != nil || !strings.EqualFold(u.Hostname(), loopbackHost) {
		return "", false
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(loopbackIPv4, port)
	} else {
		u.Host = loopbackIPv4
	}
	return u.String(), true
}

// IsUnreachable reports whether err is (or wraps) an UnreachableError
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// errorDetail extracts a human-readable detail from an error body
func errorDetail(data []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			switch v := payload[key].(type) {
			case string:
				return truncate(v)
			case nil:
			default:
				if b, err := json.Marshal(v); err == nil {
					return truncate(string(b))
				}
			}
		}
	}
	return truncate(strings.TrimSpace(string(data)))
}

// truncate cuts s to at most maxDetailLength bytes on a rune boundary
func truncate(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	cut := maxDetailLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

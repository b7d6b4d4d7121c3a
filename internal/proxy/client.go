package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/rag"
)

// Client sends conversations through a running proxy instead of calling
// the backend directly
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for the proxy at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = internal.DefaultTimeout
	}
	return &Client{
		baseURL:    internal.NormalizeBaseURL(baseURL),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Send posts the history to /api/chat. A 503 or a transport failure is
// reported as rag.UnreachableError, any other non-200 as rag.BackendError.
func (c *Client) Send(ctx context.Context, history []internal.Message) (*rag.Response, error) {
	body, err := json.Marshal(rag.ChatRequest{Messages: rag.ToWire(history)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &rag.UnreachableError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var reply ErrorReply
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxRequestBody))
		_ = json.Unmarshal(data, &reply)
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, &rag.UnreachableError{URL: c.baseURL, Err: errors.New(reply.Detail)}
		}
		detail := reply.Detail
		if detail == "" {
			detail = reply.Error
		}
		return nil, &rag.BackendError{Status: resp.StatusCode, Detail: detail}
	}

	var reply ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &rag.DecodeError{Err: err}
	}
	if reply.Sources == nil {
		reply.Sources = []internal.Source{}
	}
	if reply.EnhancedFeatures == nil {
		reply.EnhancedFeatures = map[string]any{}
	}
	return &rag.Response{
		Message:          reply.Content,
		Sources:          reply.Sources,
		TotalSources:     reply.TotalSources,
		EnhancedFeatures: reply.EnhancedFeatures,
	}, nil
}

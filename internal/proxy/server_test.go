package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/chat"
	"github.com/iksnae/ptsp-chat/internal/rag"
	"github.com/iksnae/ptsp-chat/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	resp *rag.Response
	err  error
	got  []rag.WireMessage
}

func (s *stubBackend) SendWire(ctx context.Context, messages []rag.WireMessage) (*rag.Response, error) {
	s.got = messages
	return s.resp, s.err
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec, decoded
}

func TestHandleChat_Success(t *testing.T) {
	backend := &stubBackend{resp: &rag.Response{
		Message:          "DPMPTSP adalah ...",
		Sources:          []internal.Source{},
		TotalSources:     0,
		EnhancedFeatures: map[string]any{"hybrid_search": true},
	}}
	h := New(backend, ":0", time.Second).Handler()

	rec, body := postChat(t, h, `{"messages":[{"role":"user","content":"Apa itu DPMPTSP?"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "assistant", body["role"])
	assert.Equal(t, "DPMPTSP adalah ...", body["content"])
	assert.Equal(t, []any{}, body["sources"])
	assert.Equal(t, float64(0), body["total_sources"])
	assert.Equal(t, []rag.WireMessage{{Role: internal.RoleUser, Content: "Apa itu DPMPTSP?"}}, backend.got)
}

func TestHandleChat_InvalidPayload(t *testing.T) {
	backend := &stubBackend{resp: &rag.Response{}}
	h := New(backend, ":0", time.Second).Handler()

	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"messages":null}`,
		`{"messages":"hello"}`,
		`{"messages":{"role":"user"}}`,
		`{"messages":[1,2]}`,
	} {
		t.Run(payload, func(t *testing.T) {
			backend.got = nil
			rec, body := postChat(t, h, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid messages payload", body["error"])
			assert.Nil(t, backend.got)
		})
	}
}

func TestHandleChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantDetail string
	}{
		{
			name:       "unreachable",
			err:        &rag.UnreachableError{URL: "http://127.0.0.1:8001", Err: errors.New("dial tcp: connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "RAG backend unreachable",
			wantDetail: unreachableDetail,
		},
		{
			name:       "backend error forwarded",
			err:        &rag.BackendError{Status: http.StatusUnprocessableEntity, Detail: "messages empty"},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "RAG backend error",
			wantDetail: "messages empty",
		},
		{
			name:       "anything else",
			err:        &rag.DecodeError{Err: errors.New("unexpected EOF")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to process chat request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&stubBackend{err: tt.err}, ":0", time.Second).Handler()
			rec, body := postChat(t, h, `{"messages":[]}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, body["error"])
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	h := New(&stubBackend{}, ":0", time.Second).Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	h := New(&stubBackend{}, ":0", time.Second).Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	internal.SetLogOutput(&buf)
	defer internal.SetLogOutput(nil)

	h := New(&stubBackend{}, ":0", time.Second).Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "/api/health")
	assert.Contains(t, out, "200")
}

func TestEndToEnd_ThroughProxy(t *testing.T) {
	backend := testutil.NewBackend(t, http.StatusOK,
		`{"message":"DPMPTSP adalah ...","sources":[],"total_sources":0,"enhanced_features":{}}`)
	server := httptest.NewServer(New(rag.NewClient(backend.URL), ":0", time.Second).Handler())
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	resp, err := client.Send(context.Background(), []internal.Message{internal.UserMessage{Content: "Apa itu DPMPTSP?"}})
	require.NoError(t, err)
	assert.Equal(t, "DPMPTSP adalah ...", resp.Message)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 1, backend.Calls())
}

func TestClient_ErrorMapping(t *testing.T) {
	backend := testutil.NewBackend(t, http.StatusInternalServerError, `{"detail":"index missing"}`)
	server := httptest.NewServer(New(rag.NewClient(backend.URL), ":0", time.Second).Handler())
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Send(context.Background(), nil)
	var be *rag.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
	assert.Equal(t, "index missing", be.Detail)

	backend.Close()
	_, err = client.Send(context.Background(), nil)
	assert.True(t, rag.IsUnreachable(err), "503 from the proxy should read as unreachable, got %v", err)
}

func TestClient_ProxyDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second).Send(context.Background(), nil)
	assert.True(t, rag.IsUnreachable(err))
}

func TestClient_DrivesController(t *testing.T) {
	server := httptest.NewServer(New(&stubBackend{err: &rag.UnreachableError{URL: "x", Err: errors.New("down")}}, ":0", time.Second).Handler())
	defer server.Close()

	store := internal.NewSessionStore(testutil.CreateInMemoryDB(t))
	c := chat.New(store, NewClient(server.URL, time.Second), chat.Options{})
	defer c.Close()

	reply, err := c.Submit(context.Background(), "halo")
	require.NoError(t, err)
	assert.Equal(t, chat.ApologyMessage, reply.Content)
}

func TestServe_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&stubBackend{}, "127.0.0.1:0", time.Second).Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

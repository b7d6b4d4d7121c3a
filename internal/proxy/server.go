// Package proxy exposes the answering backend behind a local /api/chat
// endpoint and provides a client for it.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/rag"
)

const (
	maxRequestBody    = 1 << 20
	unreachableDetail = "the answering service did not respond"
)

// Backend forwards wire messages to the answering backend
type Backend interface {
	SendWire(ctx context.Context, messages []rag.WireMessage) (*rag.Response, error)
}

// ChatReply is the 200 body of POST /api/chat
type ChatReply struct {
	Role             internal.Role     `json:"role"`
	Content          string            `json:"content"`
	Sources          []internal.Source `json:"sources"`
	TotalSources     int               `json:"total_sources"`
	EnhancedFeatures map[string]any    `json:"enhanced_features"`
}

// ErrorReply is the body of every non-200 answer
type ErrorReply struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Server serves the local chat endpoint
type Server struct {
	backend Backend
	mux     *http.ServeMux
	addr    string
	timeout time.Duration
}

// New creates a server forwarding to backend. timeout bounds a single
// backend exchange and sizes the write timeout.
func New(backend Backend, addr string, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = internal.DefaultTimeout
	}
	s := &Server{
		backend: backend,
		mux:     http.NewServeMux(),
		addr:    addr,
		timeout: timeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	return LogRequests(JSON(s.mux))
}

// Serve listens on the configured address until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.timeout + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	internal.LogInfo("Listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	messages, err := decodeChatRequest(r.Body)
	if err != nil {
		internal.LogDebug("Rejected chat request: %v", err)
		writeJSON(w, http.StatusBadRequest, ErrorReply{Error: "Invalid messages payload"})
		return
	}

	resp, err := s.backend.SendWire(r.Context(), messages)
	if err != nil {
		status, reply := errorReply(err)
		writeJSON(w, status, reply)
		return
	}

	writeJSON(w, http.StatusOK, ChatReply{
		Role:             internal.RoleAssistant,
		Content:          resp.Message,
		Sources:          resp.Sources,
		TotalSources:     resp.TotalSources,
		EnhancedFeatures: resp.EnhancedFeatures,
	})
}

// decodeChatRequest accepts {"messages": [...]} and nothing else
func decodeChatRequest(body io.Reader) ([]rag.WireMessage, error) {
	var req struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxRequestBody)).Decode(&req); err != nil {
		return nil, &internal.ValidationError{Field: "body", Reason: err.Error()}
	}
	if len(req.Messages) == 0 || req.Messages[0] != '[' {
		return nil, &internal.ValidationError{Field: "messages", Reason: "must be an array"}
	}

	var messages []rag.WireMessage
	if err := json.Unmarshal(req.Messages, &messages); err != nil {
		return nil, &internal.ValidationError{Field: "messages", Reason: err.Error()}
	}
	return messages, nil
}

// errorReply maps a backend failure to a status and body. Transport detail
// stays in the log.
func errorReply(err error) (int, ErrorReply) {
	var ue *rag.UnreachableError
	var be *rag.BackendError
	switch {
	case errors.As(err, &ue):
		internal.LogError("RAG backend unreachable: %v", err)
		return http.StatusServiceUnavailable, ErrorReply{Error: "RAG backend unreachable", Detail: unreachableDetail}
	case errors.As(err, &be):
		return be.Status, ErrorReply{Error: "RAG backend error", Detail: be.Detail}
	default:
		internal.LogError("Chat API error: %v", err)
		return http.StatusInternalServerError, ErrorReply{Error: "Failed to process chat request"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		internal.LogDebug("write response: %v", err)
	}
}

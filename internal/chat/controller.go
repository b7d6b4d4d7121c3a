// Package chat sequences user input through the backend client and the
// session store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/rag"
)

// ApologyMessage replaces the answer when the backend call fails
const ApologyMessage = "❌ Maaf, terjadi kesalahan saat memproses pertanyaan Anda.\n\nSilakan coba lagi dalam beberapa saat atau hubungi administrator sistem."

// Feature keys added to every answer
const (
	FeatureFrontendTime = "frontend_processing_time"
	FeatureTotalTime    = "total_processing_time"
	featureResponseTime = "response_time"
)

var (
	// ErrEmptyInput is returned for blank submissions; nothing is appended
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy is returned while a request is outstanding
	ErrBusy = errors.New("a request is already in flight")
)

// State of the controller
type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sender delivers a conversation to the backend
type Sender interface {
	Send(ctx context.Context, history []internal.Message) (*rag.Response, error)
}

// Store is the subset of the session store the controller uses
type Store interface {
	List() []internal.SessionSummary
	Get(id string) (*internal.Session, error)
	Save(session *internal.Session)
	Create() *internal.Session
}

// Options configures a Controller
type Options struct {
	// Debounce is the quiet period before a change is persisted
	Debounce time.Duration
	// Now is the clock used to time round trips
	Now func() time.Time
	// Dictation is optional; nil when no speech input is available
	Dictation Dictation
}

// Controller holds the working copy of the current session. At most one
// request is outstanding at a time.
type Controller struct {
	store     Store
	sender    Sender
	saver     *internal.Debouncer
	now       func() time.Time
	dictation Dictation

	mu      sync.Mutex
	state   State
	current *internal.Session
}

// New creates a controller. The most recently updated stored session
// becomes current; with an empty store a fresh session is created.
func New(store Store, sender Sender, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = internal.DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		store:     store,
		sender:    sender,
		saver:     internal.NewDebouncer(opts.Debounce),
		now:       opts.Now,
		dictation: opts.Dictation,
	}

	if list := store.List(); len(list) > 0 {
		if session, err := store.Get(list[0].ID); err == nil {
			c.current = session
		}
	}
	if c.current == nil {
		c.current = store.Create()
	}
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the current session
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.ID
}

// Title returns the current session title, derived from the first user
// message while the session has not been saved yet
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.Title != "" {
		return c.current.Title
	}
	return internal.DeriveTitle(c.current.FirstUserMessage())
}

// Messages returns a copy of the current session's messages
func (c *Controller) Messages() internal.Messages {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(internal.Messages{}, c.current.Messages...)
}

// Submit sends text as the next user turn and appends the answer, or the
// apology message when the backend call fails. Backend failures are
// logged, not returned.
func (c *Controller) Submit(ctx context.Context, text string) (internal.AssistantMessage, error) {
	if strings.TrimSpace(text) == "" {
		return internal.AssistantMessage{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return internal.AssistantMessage{}, ErrBusy
	}
	session := c.current
	session.Messages = append(session.Messages, internal.UserMessage{Content: text})
	history := append([]internal.Message(nil), session.Messages...)
	c.state = StateSending
	c.schedulePersistLocked()
	c.mu.Unlock()

	start := c.now()
	resp, err := c.sender.Send(ctx, history)
	elapsed := c.now().Sub(start)

	var reply internal.AssistantMessage
	if err != nil {
		internal.LogError("Chat request failed: %v", err)
		reply = internal.AssistantMessage{Content: ApologyMessage}
	} else {
		reply = answerMessage(resp, elapsed)
	}

	c.mu.Lock()
	session.Messages = append(session.Messages, reply)
	c.state = StateIdle
	c.schedulePersistLocked()
	c.mu.Unlock()

	return reply, nil
}

func answerMessage(resp *rag.Response, elapsed time.Duration) internal.AssistantMessage {
	features := maps.Clone(resp.EnhancedFeatures)
	if features == nil {
		features = map[string]any{}
	}
	features[FeatureFrontendTime] = fmt.Sprintf("%.2fs", elapsed.Seconds())
	if rt, ok := resp.EnhancedFeatures[featureResponseTime]; ok {
		features[FeatureTotalTime] = rt
	}

	total := resp.TotalSources
	return internal.AssistantMessage{
		Content:          resp.Message,
		Sources:          resp.Sources,
		TotalSources:     &total,
		EnhancedFeatures: features,
	}
}

// SwitchSession persists the current session immediately and loads the
// session with the given id. An unknown id starts a new empty session.
func (c *Controller) SwitchSession(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return ErrBusy
	}

	c.flushLocked()

	target, err := c.store.Get(id)
	if err != nil {
		internal.LogDebug("Switch to %s: %v, starting a new session", id, err)
		target = c.store.Create()
	}
	c.current = target
	return nil
}

// NewChat persists the current session immediately and starts a new one
func (c *Controller) NewChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending {
		return ErrBusy
	}

	c.flushLocked()
	c.current = c.store.Create()
	return nil
}

// Flush writes any pending change now
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Close flushes pending changes. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.Flush()
}

func (c *Controller) flushLocked() {
	c.schedulePersistLocked()
	c.saver.Flush()
}

// schedulePersistLocked queues a save of a snapshot of the current
// session. Sessions without a user turn are never written.
func (c *Controller) schedulePersistLocked() {
	if !c.current.HasUserMessage() {
		return
	}
	snapshot := c.current.Clone()
	c.saver.Schedule(func() {
		c.store.Save(snapshot)
	})
}

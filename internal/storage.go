package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// HistoryKey is the key of the blob holding every session
	HistoryKey = "ptsp_chat_history"
	// MaxSessions is the retention cap of the session list
	MaxSessions = 50
)

// SessionStore persists chat sessions as a single JSON blob in the
// key/value table. Storage failures never reach callers: reads degrade to
// empty results and writes to no-ops.
type SessionStore struct {
	mu    sync.Mutex
	db    *sql.DB
	key   string
	max   int
	now   func() time.Time
	newID func() string
}

// StoreOption configures a SessionStore
type StoreOption func(*SessionStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithMaxSessions overrides the retention cap
func WithMaxSessions(n int) StoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithIDGenerator overrides session id generation
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *SessionStore) { s.newID = fn }
}

// NewSessionStore creates a store on top of an open database. A nil db
// yields a store with no backing storage.
func NewSessionStore(db *sql.DB, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		db:    db,
		key:   HistoryKey,
		max:   MaxSessions,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSessionStore opens the database at path. When the database cannot be
// opened the returned store works without storage.
func OpenSessionStore(path string, opts ...StoreOption) *SessionStore {
	db, err := OpenDatabase(path)
	if err != nil {
		LogWarn("%v", &StorageError{Op: "open", Key: path, Err: err})
		return NewSessionStore(nil, opts...)
	}
	return NewSessionStore(db, opts...)
}

// Available reports whether the store has backing storage
func (s *SessionStore) Available() bool {
	return s.db != nil
}

// Check reads the stored history and reports why it cannot be used.
// While it returns an error, Save leaves the stored blob untouched.
func (s *SessionStore) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

// Close releases the database
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// load reads and decodes the whole session list. Callers hold mu.
func (s *SessionStore) load() ([]*Session, error) {
	if s.db == nil {
		return nil, &StorageError{Op: "read", Key: s.key, Err: fmt.Errorf("storage unavailable")}
	}
	raw, ok, err := KVGet(s.db, s.key)
	if err != nil {
		return nil, &StorageError{Op: "read", Key: s.key, Err: err}
	}
	if !ok || raw == "" {
		return []*Session{}, nil
	}

	var sessions []*Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, &StorageError{Op: "decode", Key: s.key, Err: &ParseError{Source: "history", Key: s.key, Err: err}}
	}
	return sessions, nil
}

// Sessions returns every stored session, most recently updated first
func (s *SessionStore) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		LogDebug("%v", err)
		return []*Session{}
	}
	return sessions
}

// List returns session metadata, most recently updated first
func (s *SessionStore) List() []SessionSummary {
	sessions := s.Sessions()
	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summary())
	}
	return summaries
}

// Get returns the stored session with the given id or ErrSessionNotFound
func (s *SessionStore) Get(id string) (*Session, error) {
	for _, session := range s.Sessions() {
		if session.ID == id {
			return session, nil
		}
	}
	LogDebug("session %s not in store", id)
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Save upserts the session. An existing entry keeps its creation time and
// title; a new one is inserted at the front. The list is then trimmed to
// the retention cap. session's title and timestamps are updated to the
// stored values.
func (s *SessionStore) Save(session *Session) {
	if session == nil || session.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		LogWarn("Failed to save session %s: %v", session.ID, err)
		return
	}

	stored := session.Clone()
	stored.LastUpdated = s.now()

	idx := slices.IndexFunc(sessions, func(existing *Session) bool { return existing.ID == stored.ID })
	if idx >= 0 {
		existing := sessions[idx]
		stored.CreatedAt = existing.CreatedAt
		if existing.Title != "" {
			stored.Title = existing.Title
		}
		sessions = slices.Delete(sessions, idx, idx+1)
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.LastUpdated
	}
	if stored.Title == "" {
		stored.Title = DeriveTitle(stored.FirstUserMessage())
	}

	sessions = slices.Insert(sessions, 0, stored)
	slices.SortStableFunc(sessions, func(a, b *Session) int {
		return b.LastUpdated.Compare(a.LastUpdated)
	})
	if len(sessions) > s.max {
		LogDebug("Evicting %d session(s) beyond cap %d", len(sessions)-s.max, s.max)
		sessions = sessions[:s.max]
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		LogWarn("%v", &StorageError{Op: "encode", Key: s.key, Err: err})
		return
	}
	if err := KVPut(s.db, s.key, string(data)); err != nil {
		LogWarn("%v", &StorageError{Op: "write", Key: s.key, Err: err})
		return
	}

	session.Title = stored.Title
	session.CreatedAt = stored.CreatedAt
	session.LastUpdated = stored.LastUpdated
}

// Create returns a fresh, unsaved session
func (s *SessionStore) Create() *Session {
	now := s.now()
	return &Session{
		ID:          s.newID(),
		Messages:    Messages{},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

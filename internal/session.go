package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session represents one persisted conversation
type Session struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Messages    Messages  `json:"messages" yaml:"messages"`
	CreatedAt   time.Time `json:"timestamp" yaml:"created_at"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"last_updated"`
}

// SessionSummary is the list view of a session
type SessionSummary struct {
	ID           string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	LastUpdated  time.Time
}

// Summary returns the metadata of the session without its messages
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: len(s.Messages),
		CreatedAt:    s.CreatedAt,
		LastUpdated:  s.LastUpdated,
	}
}

// Clone returns a copy whose message slice can be appended to independently
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append(Messages(nil), s.Messages...)
	return &c
}

// FirstUserMessage returns the first user message content, or "" if none
func (s *Session) FirstUserMessage() string {
	for _, msg := range s.Messages {
		if u, ok := msg.(UserMessage); ok {
			return u.Content
		}
	}
	return ""
}

// HasUserMessage reports whether the session contains any user turn
func (s *Session) HasUserMessage() bool {
	return s.FirstUserMessage() != ""
}

// Message is one turn in a conversation. It is either a UserMessage or an
// AssistantMessage.
type Message interface {
	Role() Role
	Text() string
	isMessage()
}

// UserMessage is a turn typed by the user
type UserMessage struct {
	Content string
}

func (UserMessage) Role() Role     { return RoleUser }
func (m UserMessage) Text() string { return m.Content }
func (UserMessage) isMessage()     {}

// AssistantMessage is a turn produced by the backend (or the apology text)
type AssistantMessage struct {
	Content          string
	Sources          []Source
	TotalSources     *int
	EnhancedFeatures map[string]any
}

func (AssistantMessage) Role() Role     { return RoleAssistant }
func (m AssistantMessage) Text() string { return m.Content }
func (AssistantMessage) isMessage()     {}

// Source is a document fragment cited by the backend
type Source struct {
	Filename       string   `json:"filename" yaml:"filename"`
	Score          *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	ContentPreview string   `json:"content_preview" yaml:"content_preview"`
	Path           string   `json:"path" yaml:"path"`
}

// Messages is an ordered conversation. It encodes to the flat
// {role, content, sources, total_sources, enhanced_features} records.
type Messages []Message

// MessageRecord is the flat wire/storage form of a Message
type MessageRecord struct {
	Role             Role           `json:"role" yaml:"role"`
	Content          string         `json:"content" yaml:"content"`
	Sources          []Source       `json:"sources,omitempty" yaml:"sources,omitempty"`
	TotalSources     *int           `json:"total_sources,omitempty" yaml:"total_sources,omitempty"`
	EnhancedFeatures map[string]any `json:"enhanced_features,omitempty" yaml:"enhanced_features,omitempty"`
}

// ToRecord flattens a message
func ToRecord(msg Message) MessageRecord {
	switch m := msg.(type) {
	case UserMessage:
		return MessageRecord{Role: RoleUser, Content: m.Content}
	case AssistantMessage:
		return MessageRecord{
			Role:             RoleAssistant,
			Content:          m.Content,
			Sources:          m.Sources,
			TotalSources:     m.TotalSources,
			EnhancedFeatures: m.EnhancedFeatures,
		}
	default:
		return MessageRecord{Role: msg.Role(), Content: msg.Text()}
	}
}

// FromRecord rebuilds a message from its flat form
func FromRecord(rec MessageRecord) (Message, error) {
	switch rec.Role {
	case RoleUser:
		return UserMessage{Content: rec.Content}, nil
	case RoleAssistant:
		return AssistantMessage{
			Content:          rec.Content,
			Sources:          rec.Sources,
			TotalSources:     rec.TotalSources,
			EnhancedFeatures: rec.EnhancedFeatures,
		}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", rec.Role)
	}
}

// Records flattens every message
func (ms Messages) Records() []MessageRecord {
	records := make([]MessageRecord, 0, len(ms))
	for _, msg := range ms {
		records = append(records, ToRecord(msg))
	}
	return records
}

// MarshalJSON implements json.Marshaler
func (ms Messages) MarshalJSON() ([]byte, error) {
	return json.Marshal(ms.Records())
}

// UnmarshalJSON implements json.Unmarshaler
func (ms *Messages) UnmarshalJSON(data []byte) error {
	var records []MessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	out := make(Messages, 0, len(records))
	for i, rec := range records {
		msg, err := FromRecord(rec)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	*ms = out
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (ms Messages) MarshalYAML() (interface{}, error) {
	return ms.Records(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler via the decode callback form
func (ms *Messages) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var records []MessageRecord
	if err := unmarshal(&records); err != nil {
		return err
	}
	out := make(Messages, 0, len(records))
	for i, rec := range records {
		msg, err := FromRecord(rec)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	*ms = out
	return nil
}

const (
	titleMaxLen    = 50
	titleCutLen    = 47
	titleEllipsis  = "..."
	defaultSummary = "Percakapan baru"
)

// DeriveTitle turns the first user message into a session title
func DeriveTitle(firstMessage string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(firstMessage, "\n", " "))
	runes := []rune(cleaned)
	if len(runes) > titleMaxLen {
		return string(runes[:titleCutLen]) + titleEllipsis
	}
	return cleaned
}

// DisplayTitle returns the title or a placeholder for untitled sessions
func DisplayTitle(title string) string {
	if title == "" {
		return defaultSummary
	}
	return title
}

package internal

import (
	"time"
)

// CreateTestSession creates a test session with one question and one answer
func CreateTestSession(id string) *Session {
	score := 0.87
	total := 2
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return &Session{
		ID:    id,
		Title: "Apa itu DPMPTSP?",
		Messages: Messages{
			UserMessage{Content: "Apa itu DPMPTSP?"},
			AssistantMessage{
				Content: "DPMPTSP adalah Dinas Penanaman Modal dan Pelayanan Terpadu Satu Pintu.",
				Sources: []Source{
					{Filename: "profil-dinas.pdf", Score: &score, ContentPreview: "Dinas Penanaman Modal dan PTSP bertugas ..."},
					{Filename: "faq.md"},
				},
				TotalSources:     &total,
				EnhancedFeatures: map[string]any{"hybrid_search": true, "response_time": "1.10s"},
			},
		},
		CreatedAt:   created,
		LastUpdated: created.Add(time.Minute),
	}
}

// CreateTestSessionWithMessages creates a test session with custom messages
func CreateTestSessionWithMessages(id string, messages Messages) *Session {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	s := &Session{
		ID:          id,
		Messages:    messages,
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.Title = DeriveTitle(s.FirstUserMessage())
	return s
}

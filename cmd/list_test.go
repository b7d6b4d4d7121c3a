package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/testutil"
)

func TestListCommand(t *testing.T) {
	storage := seedStorage(t, testutil.HistoryBlob)

	out, err := runCommand(t, storage, "http://127.0.0.1:1", nil, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "Found 2 conversation(s)") {
		t.Errorf("output missing count:\n%s", out)
	}
	if strings.Index(out, "Apa itu DPMPTSP?") > strings.Index(out, "Syarat izin usaha") {
		t.Errorf("most recent conversation should be listed first:\n%s", out)
	}
}

func TestListCommand_Limit(t *testing.T) {
	storage := seedStorage(t, testutil.HistoryBlob)

	out, err := runCommand(t, storage, "http://127.0.0.1:1", nil, "list", "-n", "1")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.Contains(out, "Syarat izin usaha") {
		t.Errorf("limit 1 should hide the older conversation:\n%s", out)
	}
}

func TestDisplaySessions(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		summaries []internal.SessionSummary
		want      []string
	}{
		{
			name:      "empty",
			summaries: nil,
			want:      []string{"No conversations yet"},
		},
		{
			name: "untitled and long id",
			summaries: []internal.SessionSummary{
				{ID: "0f5e2b6c-1111-2222-3333-444455556666", MessageCount: 3, LastUpdated: now.Add(-2 * time.Hour)},
			},
			want: []string{"0f5e2b6c", internal.DisplayTitle(""), "3", "0f5e2b6c-1111-2222-3333-444455556666"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			displaySessions(&buf, tt.summaries, now)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/iksnae/ptsp-chat/internal"
)

func TestMarkdownExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.Session
		want    []string
	}{
		{
			name:    "basic session",
			session: internal.CreateTestSession("test1"),
			want: []string{
				"# Apa itu DPMPTSP?",
				"**Session:** test1",
				"**Messages:** 2",
				"## Messages",
				"**user:**",
				"**assistant:**",
				"**Sources (2):**",
				"1. profil-dinas.pdf (87%)",
				"2. faq.md (n/a)",
				"_Features: Hybrid Search, Response Time_",
			},
		},
		{
			name:    "untitled session",
			session: &internal.Session{ID: "test2", Messages: internal.Messages{}},
			want: []string{
				"# Percakapan baru",
				"**Messages:** 0",
			},
		},
		{
			name: "markdown escaped outside code blocks",
			session: internal.CreateTestSessionWithMessages("test3", internal.Messages{
				internal.UserMessage{Content: "**tebal**\n```\n**kode**\n```"},
			}),
			want: []string{
				"\\*\\*tebal\\*\\*",
				"**kode**",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := &MarkdownExporter{}
			var buf bytes.Buffer
			if err := exporter.Export(tt.session, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("Export() output missing %q\n%s", want, output)
				}
			}
		})
	}
}

func TestMarkdownExporter_SourceLimit(t *testing.T) {
	var sources []internal.Source
	for i := 0; i < 8; i++ {
		sources = append(sources, internal.Source{Filename: fmt.Sprintf("doc%d.pdf", i)})
	}
	session := internal.CreateTestSessionWithMessages("s", internal.Messages{
		internal.UserMessage{Content: "q"},
		internal.AssistantMessage{Content: "a", Sources: sources},
	})

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(session, &buf); err != nil {
		t.Fatal(err)
	}
	output := buf.String()
	if !strings.Contains(output, "**Sources (8):**") {
		t.Errorf("total should fall back to the source count:\n%s", output)
	}
	if !strings.Contains(output, "doc4.pdf") || strings.Contains(output, "doc5.pdf") {
		t.Errorf("expected exactly %d sources rendered:\n%s", internal.MaxDisplayedSources, output)
	}
}

func TestMarkdownExporter_Extension(t *testing.T) {
	if got := (&MarkdownExporter{}).Extension(); got != "md" {
		t.Errorf("Extension() = %q, want md", got)
	}
}

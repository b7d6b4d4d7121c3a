package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *internal.Session, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(internal.DisplayTitle(session.Title)))
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", session.ID)
	if !session.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt.Format(time.RFC3339))
	}
	if !session.LastUpdated.IsZero() {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", session.LastUpdated.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range session.Messages {
		_, _ = fmt.Fprintf(w, "**%s:**\n\n%s\n\n", msg.Role(), escapeMarkdown(msg.Text()))

		if reply, ok := msg.(internal.AssistantMessage); ok {
			writeSources(w, reply)
			if tags := internal.FeatureTags(reply.EnhancedFeatures); len(tags) > 0 {
				_, _ = fmt.Fprintf(w, "_Features: %s_\n\n", strings.Join(tags, ", "))
			}
		}

		// Add horizontal rule after each message (except the last one)
		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func writeSources(w io.Writer, reply internal.AssistantMessage) {
	if len(reply.Sources) == 0 {
		return
	}
	total := len(reply.Sources)
	if reply.TotalSources != nil {
		total = *reply.TotalSources
	}
	_, _ = fmt.Fprintf(w, "**Sources (%d):**\n\n", total)
	for i, src := range reply.Sources {
		if i == internal.MaxDisplayedSources {
			break
		}
		_, _ = fmt.Fprintf(w, "%d. %s (%s)\n", i+1, src.Filename, internal.ScoreLabel(src.Score))
		if src.ContentPreview != "" {
			_, _ = fmt.Fprintf(w, "   > %s\n", strings.ReplaceAll(internal.TruncatePreview(src.ContentPreview), "\n", " "))
		}
	}
	_, _ = fmt.Fprintln(w)
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}

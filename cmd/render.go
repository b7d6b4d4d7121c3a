package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ptsp-chat/internal"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			PaddingLeft(2)

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true).
			PaddingLeft(5)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

func displaySessionHeader(w io.Writer, session *internal.Session, now time.Time) {
	if session == nil {
		return
	}
	header := sessionHeaderStyle.Render(fmt.Sprintf("💬 %s", internal.DisplayTitle(session.Title)))
	_, _ = fmt.Fprintln(w, header)

	var metaParts []string
	if !session.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Dibuat: %s", session.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	if !session.LastUpdated.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Diperbarui: %s", internal.RelativeTime(session.LastUpdated, now)))
	}
	metaParts = append(metaParts, fmt.Sprintf("Pesan: %d", len(session.Messages)))

	_, _ = fmt.Fprintln(w, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	_, _ = fmt.Fprintln(w)
}

// displayMessage renders one turn. total <= 0 omits the [i/n] counter.
func displayMessage(w io.Writer, index int, msg internal.Message, total int) {
	var actorStyle lipgloss.Style
	var actorLabel string

	switch msg.Role() {
	case internal.RoleUser:
		actorStyle = userMessageStyle
		actorLabel = "👤 Anda"
	default:
		actorStyle = assistantMessageStyle
		actorLabel = "🤖 Asisten"
	}

	header := actorStyle.Render(actorLabel)
	if total > 0 {
		header += " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	}
	_, _ = fmt.Fprintln(w, header)

	content := strings.TrimSpace(msg.Text())
	if content != "" {
		content = wrapText(content, 80)
		_, _ = fmt.Fprintln(w, messageContentStyle.Render(content))
	} else {
		_, _ = fmt.Fprintln(w, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(pesan kosong)"))
	}

	if reply, ok := msg.(internal.AssistantMessage); ok {
		displaySources(w, reply)
	}
	_, _ = fmt.Fprintln(w)
}

// displaySources lists up to five cited documents and the feature tags
func displaySources(w io.Writer, reply internal.AssistantMessage) {
	if len(reply.Sources) == 0 {
		return
	}

	total := len(reply.Sources)
	if reply.TotalSources != nil {
		total = *reply.TotalSources
	}
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📚 Sumber Dokumen (%d dari %d)", len(reply.Sources), total)))

	for i, src := range reply.Sources {
		if i == internal.MaxDisplayedSources {
			break
		}
		_, _ = fmt.Fprintln(w, sourceStyle.Render(fmt.Sprintf("📄 %s", src.Filename))+" "+
			dateStyle.Render(fmt.Sprintf("Relevansi: %s", internal.ScoreLabel(src.Score))))
		if src.ContentPreview != "" {
			preview := strings.ReplaceAll(internal.TruncatePreview(src.ContentPreview), "\n", " ")
			_, _ = fmt.Fprintln(w, previewStyle.Render(preview))
		}
	}
	if extra := len(reply.Sources) - internal.MaxDisplayedSources; extra > 0 {
		_, _ = fmt.Fprintln(w, idStyle.Render(fmt.Sprintf("  +%d dokumen lainnya tersedia", extra)))
	}

	if tags := internal.FeatureTags(reply.EnhancedFeatures); len(tags) > 0 {
		rendered := make([]string, 0, len(tags))
		for _, tag := range tags {
			rendered = append(rendered, tagStyle.Render(tag))
		}
		_, _ = fmt.Fprintln(w, dateStyle.Render("  Fitur: ")+strings.Join(rendered, " · "))
	}
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
					currentLine = word
				} else {
					wrapped = append(wrapped, word)
					currentLine = ""
				}
			} else {
				if currentLine == "" {
					currentLine = word
				} else {
					currentLine += " " + word
				}
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

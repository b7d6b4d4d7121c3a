package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ptsp-chat/internal"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Long:  `List saved conversations, most recently updated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := openStore(cfg)
		defer func() { _ = store.Close() }()

		if !store.Available() {
			internal.PrintWarning("Chat history storage is unavailable")
		}

		summaries := store.List()
		if listLimit > 0 && listLimit < len(summaries) {
			summaries = summaries[:listLimit]
		}
		displaySessions(cmd.OutOrStdout(), summaries, time.Now())
		return nil
	},
}

func displaySessions(out io.Writer, summaries []internal.SessionSummary, now time.Time) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(out, headerStyle.Render("📋 No conversations yet"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("📋 Found %d conversation(s)", len(summaries)))
	_, _ = fmt.Fprintln(out, header)
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 90))

	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	for _, summary := range summaries {
		name := nameStyle.Render(internal.DisplayTitle(summary.Title))
		msgCount := countStyle.Render(strconv.Itoa(summary.MessageCount))
		updated := dateStyle.Render(internal.RelativeTime(summary.LastUpdated, now))
		id := idStyle.Render(shortID(summary.ID))

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", id, name, msgCount, updated)
	}

	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the full ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(summaries[0].ID)+
		idStyle.Render(") with `ptsp-chat show <id>` or `ptsp-chat chat --session <id>`"))
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many conversations")
}

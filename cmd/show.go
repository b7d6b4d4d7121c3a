package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/ptsp-chat/internal"
	"github.com/spf13/cobra"
)

var limit int

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show messages for a saved conversation",
	Long: `Display a saved conversation with its cited sources.

The id may be a unique prefix, as printed by 'ptsp-chat list'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := openStore(cfg)
		defer func() { _ = store.Close() }()

		session, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		displaySessionHeader(out, session, time.Now())

		messagesToShow := session.Messages
		total := len(messagesToShow)
		if limit > 0 && limit < total {
			messagesToShow = messagesToShow[:limit]
		}

		for i, msg := range messagesToShow {
			displayMessage(out, i+1, msg, total)
		}

		if limit > 0 && limit < total {
			remaining := total - limit
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", remaining)))
		}

		return nil
	},
}

// findSession resolves a full id or a unique id prefix
func findSession(store *internal.SessionStore, id string) (*internal.Session, error) {
	if session, err := store.Get(id); err == nil {
		return session, nil
	}

	var match *internal.Session
	for _, session := range store.Sessions() {
		if !strings.HasPrefix(session.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("session id %q is ambiguous", id)
		}
		match = session
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s (use 'ptsp-chat list' to see available sessions)", internal.ErrSessionNotFound, id)
	}
	return match, nil
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of messages to show")
}

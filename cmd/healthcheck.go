package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/rag"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
	healthcheckTimeout time.Duration
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check chat history storage and the RAG backend",
	Long: `Check the health of ptsp-chat by verifying:
  • Chat history storage can be opened
  • Saved conversations can be decoded
  • The RAG backend answers (with the 127.0.0.1 fallback for localhost)

This command is useful for debugging a local setup before starting a chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, sectionStyle.Render("🔍 PTSP Chat Health Check"))
		_, _ = fmt.Fprintln(out)

		cfg, err := loadConfig()
		if err != nil {
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration:"), err)
			return err
		}

		// Step 1: storage
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 1: Opening chat history storage..."))
		store := openStore(cfg)
		defer func() { _ = store.Close() }()

		storageOK := store.Available()
		if storageOK {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Storage available"))
		} else {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Storage unavailable, conversations will not be saved"))
		}
		if healthcheckDetails {
			_, _ = fmt.Fprintf(out, "   Database: %s\n", cfg.DatabasePath)
			_, _ = fmt.Fprintf(out, "   Key: %s\n", internal.HistoryKey)
		}
		_, _ = fmt.Fprintln(out)

		// Step 2: sessions
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 2: Loading saved conversations..."))
		summaries := store.List()
		if storageOK {
			if err := store.Check(); err != nil {
				storageOK = false
				_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Saved history cannot be read, new messages will not be saved"))
				if healthcheckDetails {
					_, _ = fmt.Fprintf(out, "   %v\n", err)
				}
			}
		}
		if len(summaries) > 0 {
			_, _ = fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d conversation(s) (cap %d)", len(summaries), cfg.MaxSessions)))
			if healthcheckDetails {
				for i, summary := range summaries {
					if i == 5 {
						_, _ = fmt.Fprintf(out, "   ... and %d more\n", len(summaries)-5)
						break
					}
					_, _ = fmt.Fprintf(out, "   [%d] %s (ID: %s)\n", i+1, internal.DisplayTitle(summary.Title), shortID(summary.ID))
				}
			}
		} else {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  No conversations found"))
		}
		_, _ = fmt.Fprintln(out)

		// Step 3: backend
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 3: Contacting the RAG backend..."))
		ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
		defer cancel()
		client := rag.NewClient(cfg.BackendURL, rag.WithTimeout(healthcheckTimeout))
		addr, pingErr := client.Ping(ctx)
		if pingErr == nil {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Backend reachable"))
			if healthcheckDetails {
				_, _ = fmt.Fprintf(out, "   Answered at: %s\n", addr)
			}
		} else {
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Backend unreachable"))
			if healthcheckDetails {
				_, _ = fmt.Fprintf(out, "   %v\n", pingErr)
			}
		}
		_, _ = fmt.Fprintln(out)

		// Summary
		_, _ = fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		_, _ = fmt.Fprintln(out)

		if pingErr != nil {
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			_, _ = fmt.Fprintf(out, "   • Backend: %s is not answering\n", cfg.BackendURL)
			return fmt.Errorf("health check failed: %w", pingErr)
		}
		if !storageOK {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Backend reachable but history storage is unavailable"))
			return nil
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		_, _ = fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("   • Conversations: %d saved", len(summaries))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckDetails, "details", "d", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 5*time.Second, "How long to wait for the backend")
}

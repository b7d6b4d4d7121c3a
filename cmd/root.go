package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	storagePath string
	configPath  string
	backendURL  string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ptsp-chat",
	Short: "Chat with the DPMPTSP licensing assistant from the terminal",
	Long: `A terminal front end for the DPMPTSP retrieval-augmented assistant.

Questions are answered by the RAG backend (RAG_API_URL, default
http://localhost:8001). Conversations are kept locally, the 50 most
recent ones, and can be resumed, listed and exported.

Quick Start:
  ptsp-chat chat                      # Start chatting
  ptsp-chat list                      # List saved conversations
  ptsp-chat show <session-id>         # Read a conversation
  ptsp-chat export --format md        # Export as Markdown
  ptsp-chat serve                     # Expose POST /api/chat locally`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves settings from defaults, the config file, .env, the
// environment and finally the persistent flags
func loadConfig() (internal.Config, error) {
	path := configPath
	if path == "" {
		path = internal.DefaultConfigPath()
	}
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if storagePath != "" {
		cfg.DatabasePath = storagePath
	}
	cfg.Normalize()
	internal.LogDebug("Backend %s, history %s", cfg.BackendURL, cfg.DatabasePath)
	return cfg, nil
}

// openStore opens the session store for cfg. Storage failures leave a
// working store without persistence.
func openStore(cfg internal.Config) *internal.SessionStore {
	return internal.OpenSessionStore(cfg.DatabasePath, internal.WithMaxSessions(cfg.MaxSessions))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Path to the chat history database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.ptsp-chat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "RAG backend base URL (overrides RAG_API_URL)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

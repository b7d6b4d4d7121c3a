package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/iksnae/ptsp-chat/internal/proxy"
	"github.com/iksnae/ptsp-chat/internal/rag"
	"github.com/spf13/cobra"
)

var serveListen string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the RAG backend as a local /api/chat endpoint",
	Long: `Serve POST /api/chat, forwarding {"messages": [...]} to the RAG backend.

Errors are answered as JSON:
  400  Invalid messages payload
  503  RAG backend unreachable
  4xx/5xx forwarded from the backend with its detail

GET /api/health answers {"status":"ok"}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if serveListen != "" {
			addr = serveListen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := rag.NewClient(cfg.BackendURL, rag.WithTimeout(cfg.Timeout))
		return proxy.New(client, addr, cfg.Timeout).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default :3000 or PTSP_CHAT_LISTEN)")
}

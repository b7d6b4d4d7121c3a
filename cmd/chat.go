package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/iksnae/ptsp-chat/internal"
	"github.com/iksnae/ptsp-chat/internal/chat"
	"github.com/iksnae/ptsp-chat/internal/proxy"
	"github.com/iksnae/ptsp-chat/internal/rag"
	"github.com/spf13/cobra"
)

var (
	chatProxyURL  string
	chatSessionID string
	chatNoSuggest bool
)

const chatHelp = `Commands:
  /new            Start a new conversation
  /list           List saved conversations
  /switch <id>    Continue a saved conversation (id prefix is enough)
  /mic            Ask by voice (needs a dictation command)
  /help           Show this help
  /quit           Save and exit`

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask the DPMPTSP assistant questions",
	Long: `Start an interactive conversation with the DPMPTSP assistant.

The most recent conversation is resumed. Each answer lists the documents it
was drawn from. Conversations are saved automatically.

` + chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store := openStore(cfg)
		defer func() { _ = store.Close() }()
		warnUnsaved(cmd.OutOrStdout(), store)

		var sender chat.Sender
		if chatProxyURL != "" {
			sender = proxy.NewClient(chatProxyURL, cfg.Timeout)
		} else {
			sender = rag.NewClient(cfg.BackendURL, rag.WithTimeout(cfg.Timeout))
		}

		controller := chat.New(store, sender, chat.Options{
			Debounce:  cfg.Debounce,
			Dictation: chat.DetectDictation(cfg.DictationCmd),
		})
		defer controller.Close()

		if chatSessionID != "" {
			session, err := findSession(store, chatSessionID)
			if err != nil {
				return err
			}
			if err := controller.SwitchSession(session.ID); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), controller, store)
	},
}

// warnUnsaved tells the user once when nothing said in this run will be
// saved: storage did not open, or the stored history does not decode
func warnUnsaved(out io.Writer, store *internal.SessionStore) {
	if !store.Available() {
		_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Chat history storage is unavailable, this conversation will not be saved"))
		return
	}
	if err := store.Check(); err != nil {
		internal.LogDebug("history check: %v", err)
		_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Saved chat history cannot be read, new messages will not be saved (see 'ptsp-chat inspect')"))
	}
}

// runChat reads lines from in until EOF, /quit or ctx is done
func runChat(ctx context.Context, in io.Reader, out io.Writer, c *chat.Controller, store *internal.SessionStore) error {
	_, _ = fmt.Fprintln(out, headerStyle.Render("🏛️  Asisten DPMPTSP"))
	_, _ = fmt.Fprintln(out, idStyle.Render("Ketik pertanyaan Anda, atau /help untuk bantuan."))
	_, _ = fmt.Fprintln(out)
	showConversation(out, c)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, _ = fmt.Fprint(out, userMessageStyle.Render("› "))

		var line string
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runChatCommand(ctx, out, c, store, line)
			if err != nil {
				_, _ = fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		if suggestion, ok := pickSuggestion(line, c.Suggestions()); ok {
			line = suggestion
			_, _ = fmt.Fprintln(out, idStyle.Render(line))
		}
		ask(ctx, out, c, line)
	}
}

// runChatCommand handles a slash command and reports whether to quit
func runChatCommand(ctx context.Context, out io.Writer, c *chat.Controller, store *internal.SessionStore, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		_, _ = fmt.Fprintln(out, chatHelp)
		if !c.DictationAvailable() {
			_, _ = fmt.Fprintln(out, idStyle.Render("/mic is off: set "+internal.EnvDictationCmd+" to a speech-to-text command"))
		}
	case "/new":
		if err := c.NewChat(); err != nil {
			return false, err
		}
		_, _ = fmt.Fprintln(out, successStyle.Render("✓ Percakapan baru dimulai"))
		showConversation(out, c)
	case "/list":
		displaySessions(out, store.List(), time.Now())
	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		session, err := findSession(store, fields[1])
		if err != nil {
			return false, err
		}
		if err := c.SwitchSession(session.ID); err != nil {
			return false, err
		}
		showConversation(out, c)
	case "/mic":
		if !c.DictationAvailable() {
			return false, fmt.Errorf("dictation is not configured (set %s)", internal.EnvDictationCmd)
		}
		_, _ = fmt.Fprintln(out, infoStyle.Render("🎤 Mendengarkan..."))
		text, err := c.Dictate(ctx)
		if err != nil {
			return false, err
		}
		if text == "" {
			internal.PrintWarning("Tidak ada suara yang dikenali")
			return false, nil
		}
		_, _ = fmt.Fprintln(out, idStyle.Render(text))
		ask(ctx, out, c, text)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func ask(ctx context.Context, out io.Writer, c *chat.Controller, text string) {
	var reply internal.AssistantMessage
	err := internal.ShowWaiting(ctx, "Mencari jawaban...", func() error {
		var err error
		reply, err = c.Submit(ctx, text)
		return err
	})
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return
	case err != nil:
		_, _ = fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
		return
	}
	displayMessage(out, 0, reply, 0)
}

// showConversation prints the current session, or the suggested questions
// when it is empty
func showConversation(out io.Writer, c *chat.Controller) {
	messages := c.Messages()
	if len(messages) == 0 {
		suggestions := c.Suggestions()
		if chatNoSuggest || len(suggestions) == 0 {
			return
		}
		_, _ = fmt.Fprintln(out, sectionStyle.Render("Pertanyaan yang sering diajukan"))
		for i, s := range suggestions {
			_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, s)
		}
		_, _ = fmt.Fprintln(out, idStyle.Render("Ketik nomornya untuk bertanya."))
		_, _ = fmt.Fprintln(out)
		return
	}

	_, _ = fmt.Fprintln(out, sessionHeaderStyle.Render("💬 "+c.Title()))
	for i, msg := range messages {
		displayMessage(out, i+1, msg, len(messages))
	}
}

// pickSuggestion maps "1".."n" to a suggested question
func pickSuggestion(line string, suggestions []string) (string, bool) {
	if chatNoSuggest || len(suggestions) == 0 {
		return "", false
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(suggestions) {
		return "", false
	}
	return suggestions[n-1], true
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatProxyURL, "proxy", "", "Send questions through a running 'ptsp-chat serve' at this URL")
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Continue the conversation with this id")
	chatCmd.Flags().BoolVar(&chatNoSuggest, "no-suggest", false, "Do not offer suggested questions")
}

// Package chatcmder provides the chat command for an interactive study
// session through the buddy gateway.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/studybuddyai/buddy/pkg/chatstream"
	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/dotdir"
	"github.com/studybuddyai/buddy/pkg/llm"
	"github.com/studybuddyai/buddy/pkg/logger"
)

type chatCommander struct {
	endpoint   string
	stallLimit int
	fresh      bool
	noSave     bool
	configDir  string
	debug      bool

	viper  *viper.Viper
	logger *slog.Logger
	dotdir *dotdir.Manager

	in     io.Reader
	out    io.Writer
	render bool
	sigCh  chan os.Signal
}

const chatLongDesc string = `Start an interactive chat session with Study Buddy AI.

Messages are sent through the buddy gateway and the answer is printed as it
streams in. Press Ctrl+C while an answer is streaming to stop it; the partial
answer is kept. Press Ctrl+C at the prompt, type /exit or press Ctrl+D to quit.

The conversation is saved to .buddy/session.json after every answer and
resumed on the next start. Use --new to start over.

Commands:
  /new     Start a new conversation
  /exit    Quit
  1-4      Ask one of the quick questions (new conversations only)

Secrets:
  BUDDY_API_KEY   bearer token, when the gateway requires one

Examples:
  buddy chat
  buddy chat --endpoint https://buddy.example.com/chat --new`

const chatShortDesc string = "Interactive chat with Study Buddy AI"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{
				config.FlagEndpoint,
				config.FlagStallLimit,
			})
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEndpoint, &cmder.endpoint)
	config.AddIntFlag(cmd, config.ClientFlags, config.FlagStallLimit, &cmder.stallLimit)
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming the saved one")
	cmd.Flags().BoolVar(&cmder.noSave, "no-save", false, "Do not save the conversation")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := "warn"
	if c.debug {
		level = "debug"
	}
	c.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	c.dotdir = dotdir.NewManager()
	c.render = cliui.IsTerminal(c.out)
	cliui.ConfigureColor(c.out)

	client, err := chatstream.NewClient(chatstream.Config{
		Endpoint:   c.viper.GetString("client.endpoint"),
		APIKey:     config.SecretsFromViper(c.viper).APIKey,
		Logger:     c.logger,
		StallLimit: c.viper.GetInt("client.stall_limit"),
	})
	if err != nil {
		return err
	}

	transcript, err := c.openTranscript()
	if err != nil {
		return err
	}

	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, os.Interrupt)
	defer signal.Stop(c.sigCh)

	return c.loop(ctx, client, transcript)
}

// openTranscript resumes the saved session unless --new was given.
func (c *chatCommander) openTranscript() (*chatstream.Transcript, error) {
	if c.fresh {
		if err := c.dotdir.ClearSession(c.configDir); err != nil {
			return nil, fmt.Errorf("clearing session: %w", err)
		}
	} else {
		state, err := c.dotdir.LoadSession(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if state != nil && len(state.Messages) > 0 {
			fmt.Fprintf(c.out, "\n  %s Resuming conversation %s\n",
				cliui.SuccessMark,
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(state.Messages))),
			)
			return chatstream.RestoreTranscript(state.Messages), nil
		}
	}

	return chatstream.NewTranscript(chatstream.DefaultGreeting), nil
}

func (c *chatCommander) loop(ctx context.Context, sender chatstream.Sender, transcript *chatstream.Transcript) error {
	fmt.Fprintf(c.out, "\n  %s %s\n",
		cliui.KeyStyle.Render("Gateway:"),
		cliui.NameStyle.Render(c.viper.GetString("client.endpoint")),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /exit or Ctrl+D to quit."))
	c.printIntro(transcript)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(c.in, done)

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)

		var input string
		select {
		case <-ctx.Done():
			return nil
		case <-c.sigCh:
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			input = strings.TrimSpace(line)
		}

		switch {
		case input == "":
			continue
		case input == "/exit":
			return nil
		case input == "/new":
			if err := c.dotdir.ClearSession(c.configDir); err != nil {
				c.logger.Warn("could not clear session", "error", err)
			}
			transcript = chatstream.NewTranscript(chatstream.DefaultGreeting)
			fmt.Fprintln(c.out)
			c.printIntro(transcript)
			continue
		}

		if q, ok := quickAction(transcript, input); ok {
			input = q
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(q))
		}

		c.exchange(ctx, sender, transcript, input)
		c.save(transcript)
	}
}

// exchange streams one answer to c.out. Ctrl+C cancels the stream.
func (c *chatCommander) exchange(ctx context.Context, sender chatstream.Sender, transcript *chatstream.Transcript, text string) {
	drain(c.sigCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-c.sigCh:
			cancel()
		case <-finished:
		}
	}()

	fmt.Fprint(c.out, cliui.BuddyPrompt)

	var shown string
	onUpdate := func(msgs []llm.Message) {
		last := msgs[len(msgs)-1]
		if last.Role != llm.RoleAssistant {
			return
		}
		if strings.HasPrefix(last.Content, shown) {
			fmt.Fprint(c.out, last.Content[len(shown):])
		} else {
			fmt.Fprint(c.out, "\n"+last.Content)
		}
		shown = last.Content
	}

	answer, err := chatstream.Run(ctx, sender, transcript, text, onUpdate)
	switch {
	case errors.Is(err, chatstream.ErrCanceled):
		fmt.Fprintf(c.out, " %s\n\n", cliui.DimStyle.Render("(stopped)"))
		return
	case err != nil:
		fmt.Fprintf(c.out, "\n  %s %s\n\n", cliui.FailMark, cliui.ErrorStyle.Render(describe(err)))
		return
	}

	if c.render && answer != "" {
		c.rerender(shown)
		return
	}
	fmt.Fprint(c.out, "\n\n")
}

// rerender replaces the raw streamed answer with its glamour rendering.
func (c *chatCommander) rerender(raw string) {
	rendered, err := cliui.RenderMarkdown(raw)
	if err != nil {
		c.logger.Debug("markdown render failed", "error", err)
		fmt.Fprint(c.out, "\n\n")
		return
	}

	width := 80
	if f, ok := c.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	// Move to the start of the prompt line and clear everything below.
	fmt.Fprint(c.out, "\r")
	if up := visualLines(cliui.BuddyPrompt+raw, width) - 1; up > 0 {
		fmt.Fprintf(c.out, "\x1b[%dA", up)
	}
	fmt.Fprint(c.out, "\x1b[J")
	fmt.Fprint(c.out, cliui.BuddyPrompt+"\n"+rendered)
}

func (c *chatCommander) printIntro(transcript *chatstream.Transcript) {
	if !transcript.Fresh() {
		return
	}

	greeting := chatstream.DefaultGreeting
	if c.render {
		if rendered, err := cliui.RenderMarkdown(greeting); err == nil {
			greeting = rendered
		}
	}
	fmt.Fprintf(c.out, "%s%s\n\n", cliui.BuddyPrompt, greeting)

	fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Quick options:"))
	for i, a := range chatstream.QuickActions {
		fmt.Fprintf(c.out, "    %s %s\n", cliui.KeyStyle.Render(strconv.Itoa(i+1)), a.Label)
	}
	fmt.Fprintln(c.out)
}

func (c *chatCommander) save(transcript *chatstream.Transcript) {
	if c.noSave {
		return
	}
	if err := c.dotdir.SaveSession(transcript.Messages(), c.configDir); err != nil {
		c.logger.Warn("could not save session", "error", err)
	}
}

// quickAction maps "1".."4" to a quick question while the conversation is
// fresh.
func quickAction(transcript *chatstream.Transcript, input string) (string, bool) {
	if !transcript.Fresh() {
		return "", false
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(chatstream.QuickActions) {
		return "", false
	}
	return chatstream.QuickActions[n-1].Message, true
}

// describe turns a send error into a short line for the terminal.
func describe(err error) string {
	var transportErr *chatstream.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Message != "" {
			return transportErr.Message
		}
		if transportErr.Err != nil {
			return "could not reach the gateway: " + transportErr.Err.Error()
		}
	}
	return err.Error()
}

// visualLines counts the terminal rows s occupies at the given width.
func visualLines(s string, width int) int {
	rows := 0
	for _, line := range strings.Split(s, "\n") {
		w := lipgloss.Width(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

// readLines delivers input lines until r is exhausted or done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func drain(ch <-chan os.Signal) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

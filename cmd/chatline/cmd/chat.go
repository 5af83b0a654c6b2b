package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/app"
)

const quitCommand = "/quit"

var (
	chatEndpoint string
	chatName     string
	chatEcho     string
	chatOffline  bool
	chatRedraw   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join the room and start chatting",
	Long: `Join the chat room and exchange messages. You are asked for a name until
one is accepted; after that every line you type is sent as a message.
Type /quit or press Ctrl+D to leave.

Examples:
  chatline chat                                 # connect to CHAT_ENDPOINT
  chatline chat --name Bob                      # skip the name prompt
  chatline chat --endpoint ws://host:4000/ws    # connect elsewhere
  chatline chat --offline                       # talk to yourself, no network
  chatline chat --echo optimistic               # show sent messages immediately`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("endpoint") {
			cfg.Endpoint = chatEndpoint
		}
		if flags.Changed("name") {
			cfg.Username = chatName
		}
		if flags.Changed("echo") {
			cfg.EchoMode = chatEcho
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		c, err := app.NewChat(ctx, cfg, out, app.Options{
			Offline: chatOffline,
			Redraw:  chatRedraw,
			Color:   color.SupportColor(),
		})
		if err != nil {
			return fmt.Errorf("connect to %s: %w", cfg.Endpoint, err)
		}
		defer c.Close()

		return runChat(ctx, c, cmd.InOrStdin(), out, cfg.Username)
	},
}

func init() {
	flags := chatCmd.Flags()
	flags.StringVar(&chatEndpoint, "endpoint", "", "websocket endpoint (overrides CHAT_ENDPOINT)")
	flags.StringVar(&chatName, "name", "", "display name (overrides CHAT_USERNAME)")
	flags.StringVar(&chatEcho, "echo", "", "how your own messages appear: wait or optimistic")
	flags.BoolVar(&chatOffline, "offline", false, "use an in-process loopback instead of the network")
	flags.BoolVar(&chatRedraw, "redraw", false, "repaint the whole screen on every change")
	rootCmd.AddCommand(chatCmd)
}

// runChat drives a session from line-based input until the input ends, the
// user quits, the connection drops or ctx is canceled.
func runChat(ctx context.Context, c *app.Chat, in io.Reader, out io.Writer, name string) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
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
		scanErr <- scanner.Err()
	}()

	var done <-chan struct{}
	if d, ok := c.Transport.(interface{ Done() <-chan struct{} }); ok {
		done = d.Done()
	}

	sess := c.Session
	flash := c.View.Flash()

	if name != "" {
		flash.FromError(sess.Join(ctx, name))
	}

	for {
		if !sess.Joined() {
			c.View.Render(sess.Snapshot())
			fmt.Fprint(out, c.View.JoinPrompt())
		}

		var line string
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return fmt.Errorf("connection closed")
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		if strings.TrimSpace(line) == quitCommand {
			return nil
		}

		if !sess.Joined() {
			flash.FromError(sess.Join(ctx, line))
			continue
		}

		sess.SetDraft(line)
		if err := sess.Send(ctx); err != nil {
			flash.FromError(err)
			c.View.Render(sess.Snapshot())
		}
	}
}

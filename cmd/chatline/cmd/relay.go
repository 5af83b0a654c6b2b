package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/app"
)

var relayAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a local broadcast relay",
	Long: `Run a websocket relay for local development. Every chat message a client
sends is played back to all connected clients, the sender included.

Examples:
  chatline relay                 # listen on CHAT_RELAY_ADDR (default :4000)
  chatline relay --addr :9000    # listen on another port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.RelayAddr = relayAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		relay := app.NewRelay(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return relay.Start(ctx, cfg.RelayAddr)
	},
}

func init() {
	relayCmd.Flags().StringVar(&relayAddr, "addr", "", "listen address (overrides CHAT_RELAY_ADDR)")
	rootCmd.AddCommand(relayCmd)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/config"
	"github.com/nfrund/chatline/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "chatline",
	Short: "Terminal client for a realtime chat room",
	Long: `chatline joins a realtime chat room over a websocket and lets you exchange
messages from the terminal.

Available commands:
  chat      Join the room and start chatting
  relay     Run a local broadcast relay to chat against
  version   Print the version

Configuration is read from the environment (and a .env file if present);
flags override it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relaymesh/postrelay/pkg/server"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long: "Run the server that verifies Workplace webhooks, forwards post details downstream and " +
			"streams received events to websocket viewers.",
		Example: "  postrelay serve --config config.yaml\n  PORT=9000 postrelay serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.RunConfig(configPath, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config and PORT)")
	return cmd
}

package cmd

import "github.com/spf13/cobra"

// NewRootCmd returns the Cobra entrypoint for the CLI/server.
func NewRootCmd() *cobra.Command {
	apiBaseURL = ""
	configPath = "config.yaml"
	root := &cobra.Command{
		Use:   "postrelay",
		Short: "Relay Workplace post webhooks to a downstream automation webhook",
		Long: "postrelay verifies Workplace Graph API webhooks, fetches the full post, normalizes its message " +
			"and forwards it to a downstream webhook, while streaming received events to live viewers over /ws.",
		Example: "  postrelay serve --config config.yaml\n" +
			"  postrelay --endpoint http://localhost:8000 process 1234567890\n" +
			"  postrelay sign --secret $WORKPLACE_APP_SECRET --file payload.json",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&apiBaseURL, "endpoint", apiBaseURL, "Base URL of a running postrelay server")
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Path to config file")
	root.AddCommand(newServeCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newProcessCmd())
	root.AddCommand(newSignCmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newVerifyTokenCmd())
	return root
}

var apiBaseURL string
var configPath string

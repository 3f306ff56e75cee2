package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const initConfigTemplate = `# Secrets are read from the environment (or a .env file):
#   WORKPLACE_VERIFY_TOKEN, WORKPLACE_APP_SECRET, WORKPLACE_ACCESS_TOKEN, AIRTABLE_WEBHOOK
server:
  port: 8000
  max_body_bytes: 1048576
  debug_events: false

endpoint: http://localhost:8000

workplace:
  graph_api: https://graph.workplace.com
  timeout_ms: 10000

forward:
  timeout_ms: 10000
  # transform_js: |
  #   function transform(post) { return { id: post.id, text: post.message, url: post.permalink_url }; }

broadcast:
  history_size: 10
  buffer: 64

webhook:
  skip_rules: []
  # - id: reactions
  #   when: item == "reaction"

# watermill:
#   driver: gochannel
#   topic: workplace.webhook
`

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Create a starter config file",
		Example: "  postrelay init --config config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := strings.TrimSpace(configPath)
			if path == "" {
				return fmt.Errorf("config path is required")
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s", path)
				}
			}
			if err := os.WriteFile(path, []byte(initConfigTemplate), 0o644); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote config to %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

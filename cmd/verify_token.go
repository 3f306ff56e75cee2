package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newVerifyTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "verify-token <token>",
		Short:   "Check a verify token against a running server",
		Example: "  postrelay --endpoint http://localhost:8000 verify-token my-token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			body, err := json.Marshal(map[string]string{"verify_token": args[0]})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliHTTPTimeout)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveEndpoint(cfg)+"/verify-webhook", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := cliHTTPClient().Do(req)
			if err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			defer resp.Body.Close()
			if err := decodeResponse(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("verify token: server returned %s", resp.Status)
			}
			return nil
		},
	}
	return cmd
}

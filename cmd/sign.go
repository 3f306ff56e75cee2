package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relaymesh/postrelay/pkg/webhook"
)

func newSignCmd() *cobra.Command {
	var (
		secret string
		file   string
		send   bool
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the webhook signature header for a payload",
		Long: "Print the X-Hub-Signature-256 value for a payload read from --file or stdin. " +
			"With --send the signed payload is posted to the server's /webhook route.",
		Example: "  postrelay sign --file payload.json\n" +
			"  postrelay --endpoint http://localhost:8000 sign --file payload.json --send",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(secret) == "" {
				secret = cfg.Workplace.AppSecret
			}
			if err := requireNonEmpty("secret", secret); err != nil {
				return err
			}
			body, err := readInput(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			signature := webhook.Sign(secret, body)
			if !send {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), signature)
				return err
			}
			return sendSigned(cmd, resolveEndpoint(cfg), body, signature)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "App secret (defaults to WORKPLACE_APP_SECRET)")
	cmd.Flags().StringVar(&file, "file", "", "Payload file (default stdin)")
	cmd.Flags().BoolVar(&send, "send", false, "POST the signed payload to the server")
	return cmd
}

func sendSigned(cmd *cobra.Command, endpoint string, body []byte, signature string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cliHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/webhook", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, signature)
	resp, err := cliHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", resp.Status); err != nil {
		return err
	}
	if err := decodeResponse(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send webhook: server returned %s", resp.Status)
	}
	return nil
}

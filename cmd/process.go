package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaymesh/postrelay/pkg/core"
	"github.com/relaymesh/postrelay/pkg/forward"
	"github.com/relaymesh/postrelay/pkg/relay"
	"github.com/relaymesh/postrelay/pkg/workplace"
)

func newProcessCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "process <post-id>",
		Short: "Fetch a post and forward it downstream",
		Long: "Run the fetch-then-forward flow for one post. By default the request goes to a running " +
			"server's /process-post route; --local runs it in-process with the configured credentials.",
		Example: "  postrelay --endpoint http://localhost:8000 process 1234567890\n" +
			"  postrelay process --local 1234567890",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID := strings.TrimSpace(args[0])
			if err := requireNonEmpty("post-id", postID); err != nil {
				return err
			}
			cfg, err := loadCLIConfig()
			if err != nil {
				return err
			}
			if local {
				return processLocal(cmd, cfg, postID)
			}
			return processRemote(cmd, resolveEndpoint(cfg), postID)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Process in-process instead of calling a server")
	return cmd
}

func processRemote(cmd *cobra.Command, endpoint, postID string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cliHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/process-post/"+url.PathEscape(postID), nil)
	if err != nil {
		return err
	}
	resp, err := cliHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("process post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("process post: server returned %s", resp.Status)
	}
	return decodeResponse(cmd.OutOrStdout(), resp)
}

func processLocal(cmd *cobra.Command, cfg core.AppConfig, postID string) error {
	if err := requireNonEmpty(core.EnvAccessToken, cfg.Workplace.AccessToken); err != nil {
		return err
	}
	forwarder, err := forward.New(forward.Config{
		URL:         cfg.Forward.URL,
		Timeout:     time.Duration(cfg.Forward.TimeoutMS) * time.Millisecond,
		TransformJS: cfg.Forward.TransformJS,
		Logger:      core.NewLogger("forward"),
	})
	if err != nil {
		return err
	}
	graph := workplace.NewClient(workplace.Config{
		BaseURL:     cfg.Workplace.GraphAPI,
		AccessToken: cfg.Workplace.AccessToken,
		Fields:      cfg.Workplace.Fields,
		Timeout:     time.Duration(cfg.Workplace.TimeoutMS) * time.Millisecond,
		Logger:      core.NewLogger("workplace"),
	})
	result := relay.NewProcessor(graph, forwarder, core.NewLogger("relay")).Process(cmd.Context(), postID)
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("%s: %w", result.Message, result.Err)
	}
	return nil
}

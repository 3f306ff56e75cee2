package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/relaymesh/postrelay/pkg/core"
)

const cliHTTPTimeout = 30 * time.Second

func loadCLIConfig() (core.AppConfig, error) {
	cfg, err := core.LoadConfigUnvalidated(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// resolveEndpoint picks the --endpoint flag, then the configured endpoint,
// then the local server port.
func resolveEndpoint(cfg core.AppConfig) string {
	if endpoint := strings.TrimSpace(apiBaseURL); endpoint != "" {
		return strings.TrimRight(endpoint, "/")
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		return strings.TrimRight(endpoint, "/")
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

func cliHTTPClient() *http.Client {
	return &http.Client{Timeout: cliHTTPTimeout}
}

package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// StatusError reports a downstream response other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream webhook returned status %d", e.StatusCode)
}

// Config configures a Forwarder.
type Config struct {
	URL         string
	Timeout     time.Duration
	TransformJS string
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// Forwarder posts post details to the downstream automation webhook.
type Forwarder struct {
	url       string
	transform *transform
	http      *http.Client
	logger    *log.Logger
}

// New validates the transform and builds a Forwarder.
func New(cfg Config) (*Forwarder, error) {
	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, errors.New("forward url is required")
	}
	tr, err := compileTransform(cfg.TransformJS)
	if err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Forwarder{url: target, transform: tr, http: client, logger: logger}, nil
}

// Forward sends payload as JSON. Only a 200 response counts as delivered.
func (f *Forwarder) Forward(ctx context.Context, payload interface{}) error {
	if f.transform != nil {
		out, err := f.transform.apply(payload)
		if err != nil {
			return err
		}
		payload = out
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode forward payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("forward request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	f.logger.Printf("forward status=%d bytes=%d body=%s", resp.StatusCode, len(body), strings.TrimSpace(string(respBody)))
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

package workplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrMissingPostID is returned when FetchPost is called without an id.
var ErrMissingPostID = errors.New("post id is required")

// PostDetails is the decoded post resource returned by the Graph API.
type PostDetails map[string]interface{}

// StatusError reports a non-200 Graph API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph api returned status %d", e.StatusCode)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	AccessToken string
	Fields      []string
	Timeout     time.Duration
	// HTTPClient is the base client wrapped with bearer auth. Optional.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client fetches posts from the Workplace Graph API.
type Client struct {
	baseURL string
	fields  string
	http    *http.Client
	logger  *log.Logger
}

// NewClient builds a Graph API client that authenticates with a static
// bearer token.
func NewClient(cfg Config) *Client {
	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = cfg.Timeout

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		fields:  strings.Join(cfg.Fields, ","),
		http:    httpClient,
		logger:  logger,
	}
}

// FetchPost loads a post by id and normalizes its message.
func (c *Client) FetchPost(ctx context.Context, postID string) (PostDetails, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, ErrMissingPostID
	}
	endpoint := c.baseURL + "/" + url.PathEscape(postID)
	if c.fields != "" {
		endpoint += "?" + url.Values{"fields": {c.fields}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	c.logger.Printf("graph fetch post_id=%s status=%d bytes=%d", postID, resp.StatusCode, len(body))
	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("graph fetch failed post_id=%s body=%s", postID, strings.TrimSpace(string(body)))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var details PostDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}
	if details == nil {
		return nil, errors.New("graph response is not an object")
	}
	normalizeDetails(details)
	return details, nil
}

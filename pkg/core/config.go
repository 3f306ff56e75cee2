package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingSecret is returned by Validate when a required credential is unset.
var ErrMissingSecret = errors.New("missing required configuration")

// Environment variables that override the file configuration.
const (
	EnvVerifyToken     = "WORKPLACE_VERIFY_TOKEN"
	EnvAppSecret       = "WORKPLACE_APP_SECRET"
	EnvAccessToken     = "WORKPLACE_ACCESS_TOKEN"
	EnvGraphAPI        = "WORKPLACE_GRAPH_API"
	EnvDownstreamURL   = "AIRTABLE_WEBHOOK"
	EnvPort            = "PORT"
	DefaultGraphAPI    = "https://graph.workplace.com"
	DefaultHistorySize = 10
)

// DefaultPostFields is the field list requested for every post.
var DefaultPostFields = []string{
	"id", "created_time", "description", "feed_targeting", "from",
	"icon", "is_hidden", "link", "message", "message_tags",
	"name", "object_id", "parent_id", "permalink_url", "picture",
	"place", "properties", "shares", "source",
}

// AppConfig represents the main application configuration.
type AppConfig struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int      `yaml:"port"`
		ReadTimeoutMS  int64    `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64    `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64    `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64    `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
		DebugEvents    bool     `yaml:"debug_events"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	// Workplace holds the upstream Graph API credentials.
	Workplace WorkplaceConfig `yaml:"workplace"`
	// Forward holds the downstream webhook target.
	Forward ForwardConfig `yaml:"forward"`
	// Broadcast sizes the live event history and subscriber queues.
	Broadcast BroadcastConfig `yaml:"broadcast"`
	// Webhook holds ingestion options.
	Webhook WebhookConfig `yaml:"webhook"`
	// Watermill optionally relays recorded events to a message bus.
	Watermill WatermillConfig `yaml:"watermill"`
	// Endpoint is the base URL the CLI uses to reach a running server.
	Endpoint string `yaml:"endpoint"`
}

// WorkplaceConfig holds upstream platform settings.
type WorkplaceConfig struct {
	GraphAPI    string   `yaml:"graph_api"`
	AccessToken string   `yaml:"access_token"`
	AppSecret   string   `yaml:"app_secret"`
	VerifyToken string   `yaml:"verify_token"`
	TimeoutMS   int64    `yaml:"timeout_ms"`
	Fields      []string `yaml:"fields"`
}

// ForwardConfig holds downstream webhook settings.
type ForwardConfig struct {
	URL         string `yaml:"url"`
	TimeoutMS   int64  `yaml:"timeout_ms"`
	TransformJS string `yaml:"transform_js"`
}

// BroadcastConfig holds live stream settings.
type BroadcastConfig struct {
	HistorySize int `yaml:"history_size"`
	Buffer      int `yaml:"buffer"`
}

// WebhookConfig holds ingestion settings.
type WebhookConfig struct {
	// SkipRules are evaluated against the change value; a match skips fetch and forward.
	SkipRules []Rule `yaml:"skip_rules"`
}

// WatermillConfig holds the configuration for the event bus relay.
type WatermillConfig struct {
	Driver    string          `yaml:"driver"`
	Drivers   []string        `yaml:"drivers"`
	Topic     string          `yaml:"topic"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming publisher.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP publisher.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// Enabled reports whether any relay driver is configured.
func (c WatermillConfig) Enabled() bool {
	return strings.TrimSpace(c.Driver) != "" || len(c.Drivers) > 0
}

// LoadConfig loads configuration from an optional YAML file, .env files and
// the process environment, applies defaults and validates required secrets.
func LoadConfig(path string) (AppConfig, error) {
	cfg, err := loadConfig(path, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigUnvalidated is LoadConfig without the secret checks, for CLI
// commands that only need a subset of the settings.
func LoadConfigUnvalidated(path string) (AppConfig, error) {
	return loadConfig(path, os.LookupEnv)
}

func loadConfig(path string, lookup func(string) (string, bool)) (AppConfig, error) {
	var cfg AppConfig
	if err := loadEnvFiles(".env"); err != nil {
		return cfg, err
	}
	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	rules, err := normalizeRules(cfg.Webhook.SkipRules)
	if err != nil {
		return cfg, err
	}
	cfg.Webhook.SkipRules = rules
	return cfg, nil
}

// loadEnvFiles loads each existing dotenv file without overriding variables
// already present in the environment.
func loadEnvFiles(paths ...string) error {
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	set := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	set(EnvVerifyToken, &cfg.Workplace.VerifyToken)
	set(EnvAppSecret, &cfg.Workplace.AppSecret)
	set(EnvAccessToken, &cfg.Workplace.AccessToken)
	set(EnvGraphAPI, &cfg.Workplace.GraphAPI)
	set(EnvDownstreamURL, &cfg.Forward.URL)
	if value, ok := lookup(EnvPort); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 30000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Workplace.GraphAPI == "" {
		cfg.Workplace.GraphAPI = DefaultGraphAPI
	}
	cfg.Workplace.GraphAPI = strings.TrimRight(cfg.Workplace.GraphAPI, "/")
	if cfg.Workplace.TimeoutMS == 0 {
		cfg.Workplace.TimeoutMS = 10000
	}
	if len(cfg.Workplace.Fields) == 0 {
		cfg.Workplace.Fields = append([]string(nil), DefaultPostFields...)
	}
	if cfg.Forward.TimeoutMS == 0 {
		cfg.Forward.TimeoutMS = 10000
	}
	if cfg.Broadcast.HistorySize <= 0 {
		cfg.Broadcast.HistorySize = DefaultHistorySize
	}
	if cfg.Broadcast.Buffer <= 0 {
		cfg.Broadcast.Buffer = 64
	}
	if cfg.Broadcast.Buffer < cfg.Broadcast.HistorySize {
		cfg.Broadcast.Buffer = cfg.Broadcast.HistorySize * 2
	}
	if cfg.Watermill.Topic == "" {
		cfg.Watermill.Topic = "workplace.webhook"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Watermill.HTTP.Mode == "" {
		cfg.Watermill.HTTP.Mode = "topic_url"
	}
}

// Validate fails when any credential needed for correct operation is unset.
func (c AppConfig) Validate() error {
	var err error
	required := []struct {
		name  string
		value string
	}{
		{EnvVerifyToken, c.Workplace.VerifyToken},
		{EnvAppSecret, c.Workplace.AppSecret},
		{EnvAccessToken, c.Workplace.AccessToken},
		{EnvDownstreamURL, c.Forward.URL},
	}
	for _, item := range required {
		if strings.TrimSpace(item.value) == "" {
			err = errors.Join(err, fmt.Errorf("%w: %s", ErrMissingSecret, item.name))
		}
	}
	return err
}

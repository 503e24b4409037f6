package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr       string   `yaml:"http_addr" env:"HTTP_ADDR"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	InviteBaseURL  string   `yaml:"invite_base_url" env:"INVITE_BASE_URL"`

	LobbyInterval   time.Duration `yaml:"lobby_interval" env:"LOBBY_INTERVAL"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	SendQueue       int           `yaml:"send_queue" env:"SEND_QUEUE"`
	ReadLimit       int64         `yaml:"read_limit" env:"READ_LIMIT"`
	FramesPerSecond float64       `yaml:"frames_per_second" env:"FRAMES_PER_SECOND"`
	FrameBurst      int           `yaml:"frame_burst" env:"FRAME_BURST"`

	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	ResultTTL   time.Duration `yaml:"result_ttl" env:"RESULT_TTL"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`

	ResultWebhookURL string        `yaml:"result_webhook_url" env:"RESULT_WEBHOOK_URL"`
	WebhookTimeout   time.Duration `yaml:"webhook_timeout" env:"WEBHOOK_TIMEOUT"`
	WebhookRetries   int           `yaml:"webhook_retries" env:"WEBHOOK_RETRIES"`

	MessagesDir string `yaml:"messages_dir" env:"MESSAGES_DIR"`

	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"LOG_FORMAT"`
	LogFile      string `yaml:"log_file" env:"LOG_FILE"`
	LogCaller    bool   `yaml:"log_caller" env:"LOG_CALLER"`
	LogToConsole bool   `yaml:"log_to_console" env:"LOG_TO_CONSOLE"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:        ":8080",
		InviteBaseURL:   "http://localhost:8080/",
		LobbyInterval:   5 * time.Second,
		PingInterval:    15 * time.Second,
		WriteTimeout:    5 * time.Second,
		SendQueue:       64,
		ReadLimit:       4096,
		FramesPerSecond: 20,
		FrameBurst:      40,
		ResultTTL:       24 * time.Hour,
		WebhookTimeout:  5 * time.Second,
		WebhookRetries:  3,
		LogLevel:        "info",
		LogFormat:       "legacy",
		LogToConsole:    true,
	}
}

// Load applies defaults, then the YAML file at path (optional), then environment variables.
func Load(path string) (*AppConfig, error) {
	cfg := Defaults()

	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ARENA_CONFIG"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.InviteBaseURL = strings.TrimSpace(c.InviteBaseURL)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.ResultWebhookURL = strings.TrimSpace(c.ResultWebhookURL)
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.LobbyInterval <= 0 {
		errs = append(errs, errors.New("LOBBY_INTERVAL must be positive"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("PING_INTERVAL must be positive"))
	}
	if c.SendQueue <= 0 {
		errs = append(errs, errors.New("SEND_QUEUE must be positive"))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("READ_LIMIT must be positive"))
	}
	if c.FramesPerSecond <= 0 || c.FrameBurst <= 0 {
		errs = append(errs, errors.New("FRAMES_PER_SECOND and FRAME_BURST must be positive"))
	}
	return errors.Join(errs...)
}

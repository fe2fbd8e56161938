// Package config loads the immutable ticketd configuration. The struct
// is constructed once at process start and passed by reference into
// every component constructor; nothing reads the environment after
// startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ticketd-io/ticketd/internal/store"
)

// Config is the top-level ticketd configuration.
type Config struct {
	Data   DataConfig   `json:"data"`
	Store  StoreConfig  `json:"store"`
	Slack  SlackConfig  `json:"slack"`
	Ticket TicketConfig `json:"ticket"`
	Alert  AlertConfig  `json:"alert"`
	API    APIConfig    `json:"api"`
}

// DataConfig holds local filesystem settings.
type DataConfig struct {
	Dir string `json:"dir"` // database and transcript artifacts live here
}

// StoreConfig selects and configures the ticket store backend.
type StoreConfig struct {
	Driver string            `json:"driver"` // "sqlite" (default) or "mysql"
	Path   string            `json:"path,omitempty"`
	MySQL  store.MySQLConfig `json:"mysql,omitempty"`
}

// SlackConfig holds chat-platform credentials.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

// TicketConfig holds scope and channel identities for the lifecycle
// engine.
type TicketConfig struct {
	ScopeID     string `json:"scope_id"`
	Container   string `json:"container,omitempty"`
	SupportRole string `json:"support_role,omitempty"`
	LogChannel  string `json:"log_channel,omitempty"`
	GraceDelay  int    `json:"grace_delay_seconds,omitempty"` // default 10
}

// AlertConfig optionally routes closure notices to an operator's
// Telegram chat.
type AlertConfig struct {
	TelegramToken string `json:"telegram_token,omitempty"`
	ChatID        int64  `json:"chat_id,omitempty"`
}

// APIConfig holds admin API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds the config from TICKETD_-prefixed environment
// variables. A .env file in the working directory is merged first when
// present.
func LoadFromEnv() (*Config, error) {
	godotenv.Load() // missing .env is fine

	cfg := &Config{
		Data: DataConfig{
			Dir: getenv("TICKETD_DATA_DIR", "/data"),
		},
		Store: StoreConfig{
			Driver: getenv("TICKETD_STORE_DRIVER", "sqlite"),
			Path:   os.Getenv("TICKETD_STORE_PATH"),
			MySQL: store.MySQLConfig{
				Host: os.Getenv("TICKETD_MYSQL_HOST"),
				User: os.Getenv("TICKETD_MYSQL_USER"),
				Pass: os.Getenv("TICKETD_MYSQL_PASS"),
				Name: os.Getenv("TICKETD_MYSQL_NAME"),
			},
		},
		Slack: SlackConfig{
			BotToken: os.Getenv("TICKETD_SLACK_BOT_TOKEN"),
			AppToken: os.Getenv("TICKETD_SLACK_APP_TOKEN"),
		},
		Ticket: TicketConfig{
			ScopeID:     os.Getenv("TICKETD_SCOPE_ID"),
			Container:   os.Getenv("TICKETD_CONTAINER"),
			SupportRole: os.Getenv("TICKETD_SUPPORT_ROLE"),
			LogChannel:  os.Getenv("TICKETD_LOG_CHANNEL"),
			GraceDelay:  getenvInt("TICKETD_GRACE_DELAY_SECONDS", 0),
		},
		API: APIConfig{
			Host: getenv("TICKETD_API_HOST", "0.0.0.0"),
			Port: getenvInt("TICKETD_API_PORT", 8080),
			Key:  os.Getenv("TICKETD_API_KEY"),
		},
	}

	if token := os.Getenv("TICKETD_ALERT_TELEGRAM_TOKEN"); token != "" {
		chatID, err := strconv.ParseInt(os.Getenv("TICKETD_ALERT_CHAT_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: TICKETD_ALERT_CHAT_ID: %w", err)
		}
		cfg.Alert = AlertConfig{TelegramToken: token, ChatID: chatID}
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" && cfg.Data.Dir != "" {
		cfg.Store.Path = cfg.Data.Dir + "/tickets.db"
	}
	if cfg.Ticket.GraceDelay <= 0 {
		cfg.Ticket.GraceDelay = 10
	}
}

// Validate checks for required fields, collecting every failure.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.Dir == "" {
		errs = append(errs, "data.dir is required")
	}
	if c.Ticket.ScopeID == "" {
		errs = append(errs, "ticket.scope_id is required")
	}
	if c.Slack.BotToken == "" {
		errs = append(errs, "slack.bot_token is required")
	}
	if c.Slack.AppToken == "" {
		errs = append(errs, "slack.app_token is required")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "mysql":
		if c.Store.MySQL.Host == "" || c.Store.MySQL.User == "" || c.Store.MySQL.Name == "" {
			errs = append(errs, "store.mysql.host, store.mysql.user and store.mysql.name are required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, mysql)", c.Store.Driver))
	}

	if c.Alert.TelegramToken != "" && c.Alert.ChatID == 0 {
		errs = append(errs, "alert.chat_id is required when alert.telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

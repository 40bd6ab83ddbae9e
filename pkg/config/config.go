package config

import (
	"fmt"
	"time"
)

// Environment variable names for bot configuration
const (
	EnvBotToken           = "BOT_TOKEN"
	EnvTransport          = "ACTIONBOT_TRANSPORT"
	EnvWebhookAddr        = "ACTIONBOT_WEBHOOK_ADDR"
	EnvActionCodesBaseURL = "ACTIONBOT_ACTIONCODES_URL"
	EnvTxBuilderBaseURL   = "ACTIONBOT_TXBUILDER_URL"
	EnvPollInterval       = "ACTIONBOT_POLL_INTERVAL"
	EnvPollTimeout        = "ACTIONBOT_POLL_TIMEOUT"
	EnvSessionStore       = "ACTIONBOT_SESSION_STORE"
	EnvRedisAddress       = "ACTIONBOT_REDIS_ADDRESS"
	EnvRedisPassword      = "ACTIONBOT_REDIS_PASSWORD"
	EnvRedisDB            = "ACTIONBOT_REDIS_DB"
	EnvVerbose            = "ACTIONBOT_VERBOSE"
)

// Transport selects how Telegram updates are delivered to the bot.
type Transport string

const (
	TransportPolling Transport = "polling"
	TransportWebhook Transport = "webhook"
)

// SessionStoreType selects the backing store for conversation sessions.
type SessionStoreType string

const (
	SessionStoreMemory SessionStoreType = "memory"
	SessionStoreRedis  SessionStoreType = "redis"
)

// Default endpoints and polling cadence
const (
	DefaultTxBuilderBaseURL   = "https://solana-sbl.dial.to"
	DefaultActionCodesBaseURL = "https://api.actioncode.app"
	DefaultPollInterval       = 2 * time.Second
	DefaultPollTimeout        = 2 * time.Minute
)

// Config represents the complete configuration for the action-code bot
type Config struct {
	// Telegram
	BotToken    string    `json:"bot_token"`
	Transport   Transport `json:"transport"`
	WebhookAddr string    `json:"webhook_addr"` // listen address for webhook mode

	// External services
	ActionCodesBaseURL string `json:"actioncodes_base_url"`
	TxBuilderBaseURL   string `json:"txbuilder_base_url"`

	// Status observation cadence
	PollInterval time.Duration `json:"poll_interval"`
	PollTimeout  time.Duration `json:"poll_timeout"`

	// Session store
	SessionStore  SessionStoreType `json:"session_store"`
	RedisAddress  string           `json:"redis_address"`
	RedisPassword string           `json:"-"`
	RedisDB       int              `json:"redis_db"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the bot configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token cannot be empty")
	}

	if c.Transport == "" {
		c.Transport = TransportPolling
	}
	switch c.Transport {
	case TransportPolling:
	case TransportWebhook:
		if c.WebhookAddr == "" {
			return fmt.Errorf("webhook address is required for webhook transport")
		}
	default:
		return fmt.Errorf("unsupported transport: %s (supported: %s, %s)",
			c.Transport, TransportPolling, TransportWebhook)
	}

	if c.ActionCodesBaseURL == "" {
		c.ActionCodesBaseURL = DefaultActionCodesBaseURL
	}
	if c.TxBuilderBaseURL == "" {
		c.TxBuilderBaseURL = DefaultTxBuilderBaseURL
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.PollTimeout < c.PollInterval {
		return fmt.Errorf("poll timeout %s must be at least one interval %s", c.PollTimeout, c.PollInterval)
	}

	if c.SessionStore == "" {
		c.SessionStore = SessionStoreMemory
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis address is required for redis session store")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("redis DB must be between 0-15, got %d", c.RedisDB)
		}
	default:
		return fmt.Errorf("unsupported session store: %s (supported: %s, %s)",
			c.SessionStore, SessionStoreMemory, SessionStoreRedis)
	}

	return nil
}

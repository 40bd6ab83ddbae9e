package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/internal/telegram"
	"github.com/actioncodes/actionbot/pkg/actioncodes"
	"github.com/actioncodes/actionbot/pkg/config"
	"github.com/actioncodes/actionbot/pkg/flow"
	"github.com/actioncodes/actionbot/pkg/logger"
	"github.com/actioncodes/actionbot/pkg/session"
	sessionmemory "github.com/actioncodes/actionbot/pkg/session/memory"
	sessionredis "github.com/actioncodes/actionbot/pkg/session/redis"
	"github.com/actioncodes/actionbot/pkg/txbuilder"
)

func main() {
	// Load environment variables from .env file, if present
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "actionbot",
		Usage: "Telegram bot for signing messages and transfers with Action Codes",
		Description: `A chat bot that pairs user intent with a short-lived one-time action
code and off-band confirmation on actioncode.app.

The bot never signs anything itself: it collects an intent (a message to
sign, or transfer parameters), binds it to an 8-digit action code,
obtains a signable payload from the transaction construction service and
polls until the external signer finalizes or the code expires.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bot-token",
				Usage:    "Telegram bot API token",
				EnvVars:  []string{config.EnvBotToken},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "transport",
				Usage:   "Update delivery: polling or webhook",
				EnvVars: []string{config.EnvTransport},
				Value:   string(config.TransportPolling),
			},
			&cli.StringFlag{
				Name:    "webhook-addr",
				Usage:   "Listen address for webhook transport (e.g. :8080)",
				EnvVars: []string{config.EnvWebhookAddr},
			},
			&cli.StringFlag{
				Name:    "actioncodes-url",
				Usage:   "Base URL of the action codes relay",
				EnvVars: []string{config.EnvActionCodesBaseURL},
				Value:   config.DefaultActionCodesBaseURL,
			},
			&cli.StringFlag{
				Name:    "txbuilder-url",
				Usage:   "Base URL of the transaction construction service",
				EnvVars: []string{config.EnvTxBuilderBaseURL},
				Value:   config.DefaultTxBuilderBaseURL,
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Status polling interval",
				EnvVars: []string{config.EnvPollInterval},
				Value:   config.DefaultPollInterval,
			},
			&cli.DurationFlag{
				Name:    "poll-timeout",
				Usage:   "Status polling timeout",
				EnvVars: []string{config.EnvPollTimeout},
				Value:   config.DefaultPollTimeout,
			},
			&cli.StringFlag{
				Name:    "session-store",
				Usage:   "Session store backend: memory or redis",
				EnvVars: []string{config.EnvSessionStore},
				Value:   string(config.SessionStoreMemory),
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis session store",
				EnvVars: []string{config.EnvRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvRedisDB},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Log configuration at startup",
				EnvVars: []string{config.EnvVerbose},
			},
		},
		Action: runBot,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		BotToken:           c.String("bot-token"),
		Transport:          config.Transport(c.String("transport")),
		WebhookAddr:        c.String("webhook-addr"),
		ActionCodesBaseURL: c.String("actioncodes-url"),
		TxBuilderBaseURL:   c.String("txbuilder-url"),
		PollInterval:       c.Duration("poll-interval"),
		PollTimeout:        c.Duration("poll-timeout"),
		SessionStore:       config.SessionStoreType(c.String("session-store")),
		RedisAddress:       c.String("redis-address"),
		RedisPassword:      c.String("redis-password"),
		RedisDB:            c.Int("redis-db"),
		Debug:              c.Bool("debug"),
		Verbose:            c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBot(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if cfg.Verbose {
		zapLogger.Sugar().Infow("Bot configuration",
			"transport", string(cfg.Transport),
			"session_store", string(cfg.SessionStore),
			"actioncodes_url", cfg.ActionCodesBaseURL,
			"txbuilder_url", cfg.TxBuilderBaseURL,
			"poll_interval", cfg.PollInterval,
			"poll_timeout", cfg.PollTimeout,
		)
	}

	store, err := newSessionStore(cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.HealthCheck(healthCtx); err != nil {
		return fmt.Errorf("session store health check failed: %w", err)
	}

	codesClient, err := actioncodes.NewClient(&actioncodes.ClientConfig{
		BaseURL: cfg.ActionCodesBaseURL,
		Logger:  zapLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create action codes client: %w", err)
	}

	builderClient, err := txbuilder.NewClient(&txbuilder.ClientConfig{
		BaseURL: cfg.TxBuilderBaseURL,
		Logger:  zapLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create construction client: %w", err)
	}

	// The bot delivers the orchestrator's notifications, and the
	// orchestrator handles the bot's updates; break the cycle with a
	// late-bound notifier.
	notifier := &deferredNotifier{}

	orchestrator, err := flow.New(flow.Config{
		Store:        store,
		Resolver:     codesClient,
		Attacher:     codesClient,
		StatusSource: codesClient,
		Builder:      builderClient,
		Notifier:     notifier,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		Logger:       zapLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to create flow orchestrator: %w", err)
	}

	bot, err := telegram.NewBot(&telegram.Config{
		Token:  cfg.BotToken,
		Flow:   orchestrator,
		Logger: zapLogger,
		Debug:  cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	notifier.target = bot

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == config.TransportWebhook {
		return bot.RunWebhook(ctx, cfg.WebhookAddr)
	}
	return bot.Run(ctx)
}

func newSessionStore(cfg *config.Config, zapLogger *zap.Logger) (session.Store, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		return sessionredis.NewRedisStore(&sessionredis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, zapLogger)
	default:
		return sessionmemory.NewMemoryStore(), nil
	}
}

// deferredNotifier forwards notifications to a target bound after
// construction.
type deferredNotifier struct {
	target flow.Notifier
}

func (d *deferredNotifier) Notify(ctx context.Context, userID int64, text string) error {
	if d.target == nil {
		return fmt.Errorf("notifier not bound")
	}
	return d.target.Notify(ctx, userID, text)
}

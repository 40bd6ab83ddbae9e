package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/flow"
)

// Bot adapts the Telegram update stream to the flow orchestrator's three
// entry points and delivers its notifications back to chats. Updates for
// the same user are handled sequentially; different users run
// independently.
type Bot struct {
	api    *tgbotapi.BotAPI
	flow   *flow.Orchestrator
	logger *zap.Logger

	// userID -> *sync.Mutex, serializes one user's messages
	userLocks sync.Map
	// userID -> chat ID, for notifications while a flow runs
	chats sync.Map

	wg sync.WaitGroup
}

// Config holds the Telegram adapter configuration
type Config struct {
	Token  string
	Flow   *flow.Orchestrator
	Logger *zap.Logger
	Debug  bool
}

// NewBot creates the Telegram adapter and authenticates with the Bot API.
func NewBot(cfg *Config) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.Flow == nil {
		return nil, fmt.Errorf("flow orchestrator is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Telegram: %w", err)
	}
	api.Debug = cfg.Debug

	cfg.Logger.Sugar().Infow("Authenticated with Telegram", "username", api.Self.UserName)

	return &Bot{
		api:    api,
		flow:   cfg.Flow,
		logger: cfg.Logger,
	}, nil
}

// Run consumes updates via long polling until ctx is cancelled, then
// waits for in-flight flows to finish.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Sugar().Info("Listening for Telegram updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.Dispatch(ctx, update)
		}
	}
}

// Dispatch hands one update to the flow. Handling runs on its own
// goroutine so a slow flow for one user never stalls another user's
// updates; a per-user lock keeps each user's messages sequential.
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleMessage(ctx, msg)
	}()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.chats.Store(userID, msg.Chat.ID)

	lock, _ := b.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	var reply string
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			reply = b.flow.Welcome()
		case "message":
			reply = b.flow.StartMessage(ctx, userID)
		case "transfer":
			reply = b.flow.StartTransfer(ctx, userID)
		}
	} else {
		reply = b.flow.HandleText(ctx, userID, msg.Text)
	}

	if reply != "" {
		b.send(msg.Chat.ID, reply)
	}
}

// Notify implements flow.Notifier.
func (b *Bot) Notify(_ context.Context, userID int64, text string) error {
	chatID := userID // private chats share the user's ID
	if stored, ok := b.chats.Load(userID); ok {
		chatID = stored.(int64)
	}
	return b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Sugar().Warnw("Failed to send Telegram message", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}

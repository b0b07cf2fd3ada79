package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// runner is the slice of the search engine the command surface needs.
type runner interface {
	RunCycle(ctx context.Context) bool
	Running() bool
}

// Bot is the Telegram bot that handles user commands and sends notifications.
type Bot struct {
	api    telegramAPI
	store  storage.Storage
	cache  *cache.Cache
	cfg    *config.Config
	engine runner
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, cache, and config.
func New(token string, store storage.Storage, c *cache.Cache, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		store: store,
		cache: c,
		cfg:   cfg,
		log:   log,
	}, nil
}

// SetEngine wires the search engine in after construction. The engine needs
// the bot as its notification sink, so the two are created in sequence.
func (b *Bot) SetEngine(r runner) {
	b.engine = r
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID)
	case "unwatch":
		b.handleUnwatch(ctx, chatID, args)
	case "clearcache":
		b.handleClearCache(chatID)
	case "run":
		b.handleRun(ctx, chatID)
	case "feedchannel":
		b.handleFeedChannel(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// Package botapi — транспорт Bot API поверх go-telegram-bot-api: long polling
// с allowed_updates = [message, my_chat_member], декодирование апдейтов в события
// роутера и исходящие сообщения/документы через общий токен-бакет.
package botapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"telegram-exportbot/internal/domain/router"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/support/debug"
)

const (
	// pollTimeout — таймаут long polling в секундах.
	pollTimeout = 30
	// httpClientTimeout покрывает и long polling, и загрузку CSV.
	httpClientTimeout = 2 * time.Minute
	// TestEndpoint — шаблон адреса Bot API для тестовых DC.
	TestEndpoint = "https://api.telegram.org/bot%s/test/%s"
)

// AllowedUpdates — типы апдейтов, которые запрашивает бот.
var AllowedUpdates = []string{tgbotapi.UpdateTypeMessage, tgbotapi.UpdateTypeMyChatMember}

// Логгер библиотеки глобальный, ставим его один раз.
var setLoggerOnce sync.Once

// Config — параметры подключения к Bot API.
type Config struct {
	Token string
	// Endpoint — шаблон "…/bot%s/%s"; пустой означает боевой api.telegram.org.
	Endpoint string
	// RPS — лимит исходящих запросов в секунду (0 — без ограничения).
	RPS        int
	HTTPClient tgbotapi.HTTPClient
}

// Handler принимает декодированные события.
type Handler interface {
	Handle(ctx context.Context, ev router.Event)
}

// Bot — клиент Bot API: приём апдейтов и отправка ответов.
type Bot struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// New проверяет токен (getMe) и возвращает готовый Bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("empty bot token")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: httpClientTimeout}
	}
	setLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(logger.StdLog("botapi"))
	})

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, cfg.HTTPClient)
	if err != nil {
		return nil, errors.Wrap(err, "connect bot api")
	}

	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = cfg.RPS
	}

	logger.Info("Bot API connected", zap.String("username", api.Self.UserName), zap.Int64("bot_id", api.Self.ID))
	return &Bot{api: api, limiter: rate.NewLimiter(limit, burst)}, nil
}

// Username — @username бота без "@".
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run читает апдейты до отмены ctx и передаёт события в handler.
// Нераспознанные апдейты только пишутся в debug-лог.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	cfg.AllowedUpdates = AllowedUpdates

	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	logger.Info("Polling for updates", zap.Strings("allowed_updates", AllowedUpdates))
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg := update.Message; msg != nil && msg.Chat != nil && msg.From != nil {
				debug.Message("bot", msg.Chat.ID, msg.From.ID, msg.Text)
			}
			ev, ok := DecodeUpdate(update, b.api.Self.UserName)
			if !ok {
				debug.Dump("Skipped update", update)
				continue
			}
			handler.Handle(ctx, ev)
		}
	}
}

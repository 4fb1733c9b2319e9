package auth

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/telegram/session"
	"telegram-exportbot/internal/support/version"
)

// LoginConfig — параметры входа.
type LoginConfig struct {
	APIID   int
	APIHash string
	TestDC  bool
	// Existing — уже имеющаяся строка сессии: если она авторизована, код не спрашивается.
	Existing string
}

// Login авторизует пользователя (при необходимости интерактивно) и возвращает
// строку сессии Telethon.
func Login(ctx context.Context, cfg LoginConfig, authenticator auth.UserAuthenticator) (string, error) {
	if cfg.APIID <= 0 || cfg.APIHash == "" {
		return "", errors.New("api id and api hash are required")
	}

	storage := new(tdsession.StorageMemory)
	if cfg.Existing != "" {
		existing, err := session.NewMemoryStorage(ctx, cfg.Existing)
		if err != nil {
			logger.Warn("Existing session is unreadable; starting a fresh login", zap.Error(err))
		} else {
			storage = existing
		}
	}

	waiter := floodwait.NewWaiter().WithCallback(func(_ context.Context, wait floodwait.FloodWait) {
		logger.Warn("Flood wait", zap.Duration("duration", wait.Duration))
	})
	options := telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
		Logger:         logger.Named("mtproto"),
		Middlewares:    []telegram.Middleware{waiter},
		Device: telegram.DeviceConfig{
			DeviceModel:   version.Name,
			SystemVersion: "Linux",
			AppVersion:    version.Version,
		},
	}
	if cfg.TestDC {
		options.DCList = dcs.Test()
	}
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, options)

	err := waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			flow := auth.NewFlow(authenticator, auth.SendCodeOptions{})
			if err := client.Auth().IfNecessary(ctx, flow); err != nil {
				return errors.Wrap(err, "auth")
			}
			self, err := client.Self(ctx)
			if err != nil {
				return errors.Wrap(err, "get self")
			}
			logger.Info("Logged in",
				zap.Int64("user_id", self.ID),
				zap.String("username", self.Username),
				zap.String("first_name", self.FirstName),
			)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return session.Export(ctx, storage)
}

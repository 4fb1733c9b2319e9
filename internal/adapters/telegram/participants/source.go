package participants

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/domain/scrape"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/telegram/session"
	"telegram-exportbot/internal/support/version"
)

// Config — параметры пользовательской сессии.
type Config struct {
	APIID      int
	APIHash    string
	Session    string
	TestDC     bool
	RPS        int
	Aggressive bool
}

// Source открывает отдельный MTProto-клиент на каждую выгрузку.
type Source struct {
	cfg   Config
	cache PeerCache
}

var _ scrape.Source = (*Source)(nil)

// NewSource создаёт Source. cache может быть nil.
func NewSource(cfg Config, cache PeerCache) *Source {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	return &Source{cfg: cfg, cache: cache}
}

// WithSession подключается, проверяет авторизацию и вызывает fn. Соединение
// закрывается по возврату fn на любом пути.
func (s *Source) WithSession(ctx context.Context, fn func(ctx context.Context, sess scrape.Session) error) error {
	if s.cfg.APIID == 0 || s.cfg.APIHash == "" || s.cfg.Session == "" {
		return members.ErrSessionNotConfigured
	}

	storage, err := session.NewMemoryStorage(ctx, s.cfg.Session)
	if err != nil {
		return &members.UnauthorizedSessionError{Err: err}
	}

	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		logger.Warn("Flood wait", zap.Duration("duration", wait.Duration))
	})

	options := telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
		Logger:         logger.Named("mtproto"),
		Middlewares: []telegram.Middleware{
			waiter,
			ratelimit.New(rate.Limit(s.cfg.RPS), s.cfg.RPS*2), //nolint:mnd // burst = 2*rate
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   version.Name,
			SystemVersion: "Linux",
			AppVersion:    version.Version,
		},
	}
	if s.cfg.TestDC {
		options.DCList = dcs.Test()
	}

	client := telegram.NewClient(s.cfg.APIID, s.cfg.APIHash, options)
	sess := NewSession(client.API(), s.cache, SessionOptions{
		Aggressive:    s.cfg.Aggressive,
		PageWaitMinMs: defaultPageWaitMin,
		PageWaitMaxMs: defaultPageWaitMax,
	})

	return waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				if auth.IsUnauthorized(err) {
					return &members.UnauthorizedSessionError{Err: err}
				}
				return errors.Wrap(err, "auth status")
			}
			if !status.Authorized {
				return &members.UnauthorizedSessionError{}
			}
			if status.User != nil {
				logger.Debug("User session ready", zap.Int64("user_id", status.User.ID))
			}
			return fn(ctx, sess)
		})
	})
}

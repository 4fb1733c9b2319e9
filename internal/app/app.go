// Package app — верхний уровень сборки бота выгрузки участников.
// Здесь связываются конфигурация, Bot API, пользовательская MTProto-сессия,
// выгрузка в CSV, рассылка администраторам и фоновая уборка файлов.
package app

import (
	"github.com/go-faster/errors"

	"telegram-exportbot/internal/adapters/botapi"
	"telegram-exportbot/internal/adapters/telegram/participants"
	"telegram-exportbot/internal/domain/export"
	"telegram-exportbot/internal/domain/notify"
	"telegram-exportbot/internal/domain/router"
	"telegram-exportbot/internal/domain/scrape"
	"telegram-exportbot/internal/infra/config"
	"telegram-exportbot/internal/infra/janitor"
	"telegram-exportbot/internal/infra/telegram/peercache"
)

// App агрегирует зависимости бота.
type App struct {
	cfg config.EnvConfig

	cache   *peercache.Cache
	bot     *botapi.Bot
	router  *router.Router
	janitor *janitor.Janitor
}

// New собирает приложение. Подключается к Bot API (getMe), поэтому неверный
// токен обнаруживается здесь, а не при первом апдейте.
func New(cfg *config.Config) (*App, error) {
	env := cfg.Env()

	cache, err := peercache.Open(env.PeersCacheFile)
	if err != nil {
		return nil, errors.Wrap(err, "open peer cache")
	}

	endpoint := ""
	if env.TestDC {
		endpoint = botapi.TestEndpoint
	}
	bot, err := botapi.New(botapi.Config{
		Token:    env.BotToken,
		Endpoint: endpoint,
		RPS:      env.BotRPS,
	})
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	exporter := export.New(env.ExportDir)
	source := participants.NewSource(participants.Config{
		APIID:      env.APIID,
		APIHash:    env.APIHash,
		Session:    env.TelethonSession,
		TestDC:     env.TestDC,
		RPS:        env.SessionRPS,
		Aggressive: env.Aggressive,
	}, cache)
	scraper := scrape.New(source, exporter, env.ExportKeepFiles)
	dispatcher := notify.NewDispatcher(bot, env.Admins)

	jan, err := janitor.New(exporter.Dir(), export.FilePattern, env.ExportRetention, env.ExportCleanupCron, env.Location)
	if err != nil {
		_ = cache.Close()
		return nil, &config.ConfigError{Key: "EXPORT_CLEANUP_INTERVAL", Err: err}
	}

	return &App{
		cfg:     env,
		cache:   cache,
		bot:     bot,
		router:  router.New(router.NewRoster(env.Admins), scraper, dispatcher, bot),
		janitor: jan,
	}, nil
}

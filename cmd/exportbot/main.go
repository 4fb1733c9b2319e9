package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"telegram-exportbot/internal/app"
	"telegram-exportbot/internal/infra/config"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/support/version"
)

func main() {
	// envPath определяет расположение .env с токеном бота, сессией и настройками.
	envPath := flag.String("env", "assets/.env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	env := cfg.Env()

	logger.Init(env.LogLevel)
	if env.LogFile != "" {
		logger.EnableFile(logger.FileOptions{
			Path:       env.LogFile,
			Level:      env.LogFileLevel,
			MaxSizeMB:  env.LogFileMaxSize,
			MaxBackups: env.LogFileMaxBackups,
			MaxAgeDays: env.LogFileMaxAge,
			Compress:   env.LogFileCompress,
		})
	}
	defer logger.Sync()
	for _, msg := range cfg.Warnings() {
		logger.Warn(msg)
	}

	// Часовая зона процесса: влияет на расписание уборки и время в логах.
	time.Local = env.Location //nolint:reassign // приложение работает в выбранной TZ

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting", zap.String("name", version.Name), zap.String("version", version.Version))
	a, err := app.New(cfg)
	if err != nil {
		stop()
		logger.Fatal("app init failed", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		stop()
		logger.Fatal("app run failed", zap.Error(err))
	}
	logger.Info("Graceful shutdown complete")
}

package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/lifecycle"
	"telegram-exportbot/internal/infra/logger"
)

// Имена узлов жизненного цикла.
const (
	nodePeerCache = "peer_cache"
	nodeJanitor   = "janitor"
	nodeRouter    = "router"
	nodePoller    = "bot_poller"
)

// Run поднимает узлы и блокируется до отмены ctx или остановки приёма апдейтов.
// Порядок остановки обратный: сначала прекращается приём апдейтов и отменяются
// выгрузки в работе, затем роутер дожидается обработчиков, потом уборщик и кеш.
func (a *App) Run(ctx context.Context) error {
	mgr := lifecycle.New(ctx)
	pollerDone := make(chan struct{})

	var poller sync.WaitGroup
	nodes := []struct {
		name  string
		deps  []string
		start lifecycle.StartFunc
		stop  lifecycle.StopFunc
	}{
		{
			name: nodePeerCache,
			stop: a.cache.Close,
		},
		{
			name: nodeJanitor,
			start: func(context.Context) error {
				a.janitor.Sweep()
				a.janitor.Start()
				return nil
			},
			stop: func() error {
				a.janitor.Stop()
				return nil
			},
		},
		{
			name: nodeRouter,
			deps: []string{nodePeerCache},
			stop: func() error {
				a.router.Wait()
				return nil
			},
		},
		{
			name: nodePoller,
			deps: []string{nodeRouter, nodeJanitor},
			start: func(ctx context.Context) error {
				poller.Go(func() {
					defer close(pollerDone)
					if err := a.bot.Run(ctx, a.router); err != nil {
						logger.Error("Bot polling stopped", zap.Error(err))
					}
				})
				return nil
			},
			stop: func() error {
				poller.Wait()
				return nil
			},
		},
	}
	for _, n := range nodes {
		if err := mgr.Register(n.name, n.deps, n.start, n.stop); err != nil {
			return err
		}
	}

	if err := mgr.StartAll(); err != nil {
		_ = mgr.Shutdown()
		return err
	}
	logger.Info("Export bot running",
		zap.String("bot", "@"+a.bot.Username()),
		zap.Int("admins", len(a.cfg.Admins)),
		zap.Bool("session_configured", a.cfg.SessionConfigured()),
		zap.String("export_dir", a.cfg.ExportDir),
	)

	select {
	case <-ctx.Done():
		logger.Debug("Shutdown signal received")
	case <-pollerDone:
		logger.Warn("Bot polling finished unexpectedly; shutting down")
	}

	return mgr.Shutdown()
}

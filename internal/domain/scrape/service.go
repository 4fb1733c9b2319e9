// Package scrape связывает источник участников и экспортёр в один конвейер:
// открыть пользовательскую сессию → разрешить канал → стримить участников в CSV.
// Сессия живёт ровно столько, сколько длится выгрузка, и освобождается на любом
// пути выхода.
package scrape

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/storage"
)

// Session — открытая пользовательская сессия.
type Session interface {
	// Resolve разрешает ссылку в канал. Ошибки: *members.ResolutionError, *members.NotAChannelError.
	Resolve(ctx context.Context, ref members.ChannelRef) (members.Channel, error)
	// Participants перечисляет участников, вызывая emit на каждого.
	Participants(ctx context.Context, ch members.Channel, emit members.Emit) error
}

// Source открывает сессию на время fn.
type Source interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, s Session) error) error
}

// Exporter пишет поток записей в файл.
type Exporter interface {
	Export(ctx context.Context, title string, stream members.Stream) (members.Result, error)
}

// Service — конвейер выгрузки.
type Service struct {
	source    Source
	exporter  Exporter
	keepFiles bool
}

// New создаёт Service. keepFiles=true отключает удаление файлов в Release.
func New(source Source, exporter Exporter, keepFiles bool) *Service {
	return &Service{source: source, exporter: exporter, keepFiles: keepFiles}
}

// Scrape выполняет полную выгрузку канала ref.
func (s *Service) Scrape(ctx context.Context, ref members.ChannelRef) (members.Result, error) {
	runID := uuid.NewString()
	lg := logger.Logger().With(zap.String("run_id", runID), zap.Stringer("channel", ref))
	started := time.Now()
	lg.Info("Scrape started")

	var res members.Result
	err := s.source.WithSession(ctx, func(ctx context.Context, sess Session) error {
		ch, err := sess.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		lg.Debug("Channel resolved", zap.Int64("channel_id", ch.ID), zap.String("title", ch.DisplayTitle()))

		res, err = s.exporter.Export(ctx, ch.DisplayTitle(), func(ctx context.Context, emit members.Emit) error {
			return sess.Participants(ctx, ch, emit)
		})
		return err
	})
	res.RunID = runID
	if err != nil {
		lg.Warn("Scrape failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return res, err
	}

	lg.Info("Scrape finished",
		zap.String("path", res.Path),
		zap.Int("participants", res.Total),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

// Release удаляет файл выгрузки после того, как все попытки доставки завершены.
func (s *Service) Release(res members.Result) {
	if s.keepFiles || res.Path == "" {
		return
	}
	if err := storage.RemoveFile(res.Path); err != nil {
		logger.Warn("Export file cleanup failed", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

// Package telegramruntime — вспомогательные утилиты рантайма пользовательской сессии:
// паузы псевдослучайной длительности между страницами запросов, уважающие отмену контекста.
package telegramruntime

import (
	"context"
	"time"

	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/shared"
)

// WaitRandomTimeMs блокирует горутину на случайный интервал из [minMs, maxMs] и
// возвращает ctx.Err(), если контекст отменили раньше.
//   - minMs==maxMs — ждём ровно это значение;
//   - обе границы равны нулю — не ждём вовсе;
//   - minMs<0 или maxMs<minMs — логируем ошибку и выходим без ожидания.
func WaitRandomTimeMs(ctx context.Context, minMs, maxMs int) error {
	switch {
	case minMs == 0 && maxMs == 0:
		return ctx.Err()
	case minMs < 0:
		logger.Error("WaitRandomTimeMs: wait time < 0")
		return ctx.Err()
	case maxMs < minMs:
		logger.Error("WaitRandomTimeMs: max < min")
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(shared.Random(minMs, maxMs)) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package janitor периодически удаляет старые файлы выгрузки: частично записанные
// при сбоях, оставшиеся после падения процесса или сохранённые EXPORT_KEEP_FILES.
// Расписание задаётся cron-спецификацией ("@every 1h", "0 */6 * * *").
package janitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/storage"
)

// Janitor удаляет файлы dir/pattern старше maxAge.
type Janitor struct {
	dir     string
	pattern string
	maxAge  time.Duration
	now     func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

// New создаёт Janitor и регистрирует задачу по spec. Ошибка — некорректная спецификация.
func New(dir, pattern string, maxAge time.Duration, spec string, loc *time.Location) (*Janitor, error) {
	if loc == nil {
		loc = time.Local
	}
	j := &Janitor{
		dir:     dir,
		pattern: pattern,
		maxAge:  maxAge,
		now:     time.Now,
		cron:    cron.New(cron.WithLocation(loc)),
	}
	if _, err := j.cron.AddFunc(spec, func() { j.Sweep() }); err != nil {
		return nil, errors.Wrapf(err, "janitor: schedule %q", spec)
	}
	return j, nil
}

// Start запускает планировщик в фоне.
func (j *Janitor) Start() {
	j.cron.Start()
	logger.Debug("Export janitor started", zap.String("dir", j.dir), zap.Duration("max_age", j.maxAge))
}

// Stop останавливает планировщик и дожидается выполняющейся уборки.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep выполняет одну уборку и возвращает число удалённых файлов.
// Запуски сериализуются: cron не запустит вторую уборку поверх первой.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(j.dir, j.pattern))
	if err != nil {
		logger.Error("Janitor glob failed", zap.Error(err))
		return 0
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := storage.RemoveFile(path); err != nil {
			logger.Warn("Janitor remove failed", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("Stale exports removed", zap.Int("count", removed), zap.String("dir", j.dir))
	}
	return removed
}

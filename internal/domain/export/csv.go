// Package export пишет поток участников в CSV-файл фиксированного формата.
//
// Каждый вызов Export создаёт новый уникальный файл в каталоге выгрузки, пишет
// заголовок и по строке на запись, затем flush → fsync → close. Файл полностью
// готов к чтению к моменту возврата. При ошибке частично записанный файл не
// удаляется: его подбирает уборщик по возрасту.
package export

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/infra/logger"
	"telegram-exportbot/internal/infra/storage"
)

// FilePattern — шаблон имён файлов выгрузки (для os.CreateTemp и уборщика).
const FilePattern = "members-*.csv"

// Header — фиксированный заголовок CSV.
var Header = []string{"id", "username", "first_name", "last_name", "phone", "is_bot", "lang_code"}

// Exporter пишет CSV в каталог dir.
type Exporter struct {
	dir string
}

// New создаёт Exporter. Пустой dir — системный временный каталог.
func New(dir string) *Exporter {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Exporter{dir: dir}
}

// Dir возвращает каталог выгрузки.
func (e *Exporter) Dir() string { return e.dir }

// Export прогоняет stream в новый CSV и возвращает путь и число строк данных.
// Ошибки записи оборачиваются в *members.ExportError; ошибки самого stream
// возвращаются как есть вместе с уже известным путём в Result.
func (e *Exporter) Export(ctx context.Context, title string, stream members.Stream) (members.Result, error) {
	res := members.Result{Title: title}

	if err := storage.EnsureDir(e.dir); err != nil {
		return res, &members.ExportError{Err: err}
	}
	f, err := os.CreateTemp(e.dir, FilePattern)
	if err != nil {
		return res, &members.ExportError{Err: errors.Wrap(err, "create file")}
	}
	res.Path = f.Name()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return res, &members.ExportError{Path: res.Path, Err: errors.Wrap(err, "write header")}
	}

	var writeErr error
	streamErr := stream(ctx, func(rec members.UserRecord) error {
		if err := w.Write(row(rec)); err != nil {
			writeErr = errors.Wrapf(err, "write row %d", rec.ID)
			return writeErr
		}
		res.Total++
		return nil
	})

	if writeErr != nil {
		_ = f.Close()
		return res, &members.ExportError{Path: res.Path, Err: writeErr}
	}
	if streamErr != nil {
		_ = f.Close()
		return res, streamErr
	}

	if err := finish(w, f); err != nil {
		return res, &members.ExportError{Path: res.Path, Err: err}
	}

	logger.Debug("CSV export written",
		zap.String("path", res.Path),
		zap.Int("rows", res.Total),
		zap.String("title", title),
	)
	return res, nil
}

// finish сбрасывает буфер csv, синхронизирует и закрывает файл.
func finish(w *csv.Writer, f *os.File) error {
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "flush")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "fsync")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	return nil
}

func row(rec members.UserRecord) []string {
	return []string{
		strconv.FormatInt(rec.ID, 10),
		rec.Username,
		rec.FirstName,
		rec.LastName,
		rec.Phone,
		strconv.FormatBool(rec.Bot),
		rec.LangCode,
	}
}

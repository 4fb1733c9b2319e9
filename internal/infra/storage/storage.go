// Package storage — утилиты работы с локальными файлами:
//   - EnsureDir / EnsureParent — создание каталогов выгрузки, кеша и логов;
//   - WriteSecretFile — атомарная запись чувствительных данных (строка сессии)
//     с правами 0600;
//   - RemoveFile — удаление файла выгрузки без ошибки на уже удалённом.
package storage

import (
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"telegram-exportbot/internal/infra/logger"
)

// secretFilePerm — права на файлы с секретами: только владелец процесса.
const secretFilePerm = 0o600

// EnsureDir гарантирует наличие каталога dir. "." и пустая строка — ничего не делает.
func EnsureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create dir %s", dir)
	}
	return nil
}

// EnsureParent гарантирует наличие каталога для файла path.
func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

// WriteSecretFile атомарно записывает data в path.
//
// temp в том же каталоге → write → fsync → chmod 0600 → close → rename → fsync(dir).
// Либо старый файл остаётся целым, либо новый записан полностью. rename атомарен
// только в пределах одного тома, поэтому temp создаётся рядом с целевым файлом.
func WriteSecretFile(path string, data []byte) error {
	clean := filepath.Clean(path)
	if err := EnsureParent(clean); err != nil {
		return err
	}
	dir := filepath.Dir(clean)

	tmp, err := os.CreateTemp(dir, "secret-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "fsync temp file")
	}
	if err := tmp.Chmod(secretFilePerm); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, clean); err != nil {
		return errors.Wrap(err, "rename temp file")
	}

	if dirFile, err := os.Open(dir); err == nil {
		if errSync := dirFile.Sync(); errSync != nil {
			logger.Warnf("WriteSecretFile: dir sync error: %v", errSync) // best-effort для Windows/некоторых FS
		}
		_ = dirFile.Close()
	}
	return nil
}

// RemoveFile удаляет path; отсутствие файла не считается ошибкой.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %s", path)
	}
	return nil
}

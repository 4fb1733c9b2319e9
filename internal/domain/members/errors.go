package members

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrSessionNotConfigured — не заданы TELEGRAM_API_ID/TELEGRAM_API_HASH/TELETHON_SESSION.
var ErrSessionNotConfigured = errors.New("user session is not configured")

// ResolutionError — идентификатор не удалось разрешить (сеть, не найден, нет доступа).
type ResolutionError struct {
	Identifier string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Identifier, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// NotAChannelError — идентификатор указывает на пользователя, обычную группу и т. п.
type NotAChannelError struct {
	Identifier string
	Kind       string
}

func (e *NotAChannelError) Error() string {
	return fmt.Sprintf("%s is not a channel (%s)", e.Identifier, e.Kind)
}

// UnauthorizedSessionError — сессия не авторизована или отозвана.
type UnauthorizedSessionError struct {
	Err error
}

func (e *UnauthorizedSessionError) Error() string {
	if e.Err == nil {
		return "user session is not authorized"
	}
	return fmt.Sprintf("user session is not authorized: %v", e.Err)
}

func (e *UnauthorizedSessionError) Unwrap() error { return e.Err }

// EnumerationError — сбой при постраничном получении участников.
type EnumerationError struct {
	Channel string
	Err     error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("list participants of %s: %v", e.Channel, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// ExportError — сбой записи CSV. Path указывает на частично записанный файл (если он создан).
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export csv: %v", e.Err)
	}
	return fmt.Sprintf("export csv %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// NeedsNewSession сообщает, поможет ли перегенерация сессии.
func NeedsNewSession(err error) bool {
	var unauthorized *UnauthorizedSessionError
	return errors.Is(err, ErrSessionNotConfigured) || errors.As(err, &unauthorized)
}

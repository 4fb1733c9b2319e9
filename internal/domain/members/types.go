// Package members — доменные типы выгрузки участников канала: ссылка на канал,
// разрешённый канал, запись об участнике и результат выгрузки.
package members

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// UnknownTitle подставляется, когда у канала нет названия.
const UnknownTitle = "Unknown Channel"

// ChannelRef — идентификатор канала в том виде, в каком он пришёл:
// публичное имя (с "@" или без) либо числовой id (Bot API -100… или голый id канала).
type ChannelRef struct {
	Username string
	ChatID   int64
}

// ParseRef разбирает строковый идентификатор: целое число — ChatID, иначе — Username.
func ParseRef(raw string) ChannelRef {
	s := strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChannelRef{ChatID: id}
	}
	return ChannelRef{Username: strings.TrimPrefix(s, "@")}
}

// IsNumeric сообщает, задан ли канал числовым id.
func (r ChannelRef) IsNumeric() bool { return r.Username == "" }

func (r ChannelRef) String() string {
	if r.Username != "" {
		return "@" + strings.TrimPrefix(r.Username, "@")
	}
	return strconv.FormatInt(r.ChatID, 10)
}

// Channel — разрешённый канал. Живёт в пределах одной выгрузки.
type Channel struct {
	ID         int64
	AccessHash int64
	Username   string
	Title      string
	Broadcast  bool
	Megagroup  bool
}

// DisplayTitle возвращает название или UnknownTitle.
func (c Channel) DisplayTitle() string {
	if strings.TrimSpace(c.Title) == "" {
		return UnknownTitle
	}
	return c.Title
}

// UserRecord — снимок одного участника. Пустая строка означает отсутствующее поле.
type UserRecord struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Phone     string
	Bot       bool
	LangCode  string
}

// Result — итог выгрузки: путь к CSV, число строк данных, название канала.
type Result struct {
	Path  string
	Total int
	Title string
	RunID string
}

// Caption — подпись к документу при отправке.
func (r Result) Caption() string {
	return fmt.Sprintf("Channel: %s\nParticipants: %d", r.Title, r.Total)
}

// Emit принимает очередную запись. Ошибка прерывает перечисление.
type Emit func(UserRecord) error

// Stream — источник записей: вызывает emit для каждого участника по мере получения.
type Stream func(ctx context.Context, emit Emit) error

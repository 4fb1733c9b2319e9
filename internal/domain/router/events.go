// Package router обрабатывает входящие события бота: /start, ручную команду
// выгрузки и изменение членства бота в чате. Транспорт декодирует свои апдейты
// в закрытый набор событий этого пакета, поэтому роутер не знает о форме
// сырых апдейтов Bot API.
package router

// Event — закрытый набор входящих событий.
type Event interface {
	isEvent()
}

// StartCommand — /start.
type StartCommand struct {
	ChatID    int64
	UserID    int64
	MessageID int
}

// ScrapeCommand — /scrape <arg> (или /export). Arg может быть пустым.
type ScrapeCommand struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Arg       string
}

// ChatType — тип чата по классификации Bot API.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// MemberStatus — статус участника по классификации Bot API.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Chat — чат, в котором изменилось членство бота.
type Chat struct {
	ID       int64
	Type     ChatType
	Username string
	Title    string
}

// MembershipChanged — бота добавили, повысили или удалили в чате.
type MembershipChanged struct {
	Chat      Chat
	NewStatus MemberStatus
}

func (StartCommand) isEvent()      {}
func (ScrapeCommand) isEvent()     {}
func (MembershipChanged) isEvent() {}

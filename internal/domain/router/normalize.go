package router

import (
	"regexp"
	"strings"

	"telegram-exportbot/internal/domain/members"
)

var (
	// публичная ссылка: t.me/name, telegram.me/name, со схемой или без, с хвостом /123 или ?x.
	publicLinkRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?(?:t|telegram)\.me/([A-Za-z0-9_]{4,})(?:[/?#].*)?$`)
	// приватная ссылка на пост: t.me/c/<channel_id>/<msg>.
	privateLinkRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?(?:t|telegram)\.me/c/(\d+)(?:[/?#].*)?$`)
)

// botAPIChannelPrefix — Bot API кодирует id канала как -100<channel_id>.
const botAPIChannelPrefix = "-100"

// Normalize приводит аргумент команды к ссылке на канал: публичные ссылки
// превращаются в "@name", t.me/c/<id> — в числовой Bot API id, остальное
// разбирается как есть.
func Normalize(arg string) members.ChannelRef {
	s := strings.TrimSpace(arg)
	if m := privateLinkRe.FindStringSubmatch(s); m != nil {
		return members.ParseRef(botAPIChannelPrefix + m[1])
	}
	if m := publicLinkRe.FindStringSubmatch(s); m != nil {
		return members.ParseRef("@" + m[1])
	}
	return members.ParseRef(s)
}

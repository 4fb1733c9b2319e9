package botapi

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-exportbot/internal/domain/router"
)

// DecodeUpdate переводит апдейт Bot API в событие роутера. botUsername нужен,
// чтобы в группах игнорировать команды вида /scrape@OtherBot.
func DecodeUpdate(update tgbotapi.Update, botUsername string) (router.Event, bool) {
	switch {
	case update.MyChatMember != nil:
		m := update.MyChatMember
		return router.MembershipChanged{
			Chat: router.Chat{
				ID:       m.Chat.ID,
				Type:     router.ChatType(m.Chat.Type),
				Username: m.Chat.UserName,
				Title:    m.Chat.Title,
			},
			NewStatus: router.MemberStatus(m.NewChatMember.Status),
		}, true
	case update.Message != nil:
		return decodeCommand(update.Message, botUsername)
	default:
		return nil, false
	}
}

func decodeCommand(msg *tgbotapi.Message, botUsername string) (router.Event, bool) {
	if msg.Chat == nil || msg.From == nil || !msg.IsCommand() {
		return nil, false
	}
	if !addressedTo(msg.CommandWithAt(), botUsername) {
		return nil, false
	}

	switch strings.ToLower(msg.Command()) {
	case "start":
		return router.StartCommand{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
		}, true
	case "scrape", "export":
		return router.ScrapeCommand{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
			Arg:       strings.TrimSpace(msg.CommandArguments()),
		}, true
	default:
		return nil, false
	}
}

// addressedTo: команда без суффикса адресована всем ботам чата.
func addressedTo(commandWithAt, botUsername string) bool {
	_, target, ok := strings.Cut(commandWithAt, "@")
	if !ok || botUsername == "" {
		return true
	}
	return strings.EqualFold(target, botUsername)
}

package botapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-exportbot/internal/domain/notify"
	"telegram-exportbot/internal/domain/router"
)

var (
	_ router.Replier        = (*Bot)(nil)
	_ notify.DocumentSender = (*Bot)(nil)
	_ notify.Failure        = (*SendError)(nil)
)

// SendError — отказ Bot API при отправке. Повторов нет: вызывающий решает сам.
type SendError struct {
	Method     string
	ChatID     int64
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("%s to %d: bot api %d (retry after %s): %v", e.Method, e.ChatID, e.Code, e.RetryAfter, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("%s to %d: bot api %d: %v", e.Method, e.ChatID, e.Code, e.Err)
	default:
		return fmt.Sprintf("%s to %d: %v", e.Method, e.ChatID, e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// Permanent сообщает, что повтор не поможет: 4xx, кроме 429.
func (e *SendError) Permanent() bool {
	if e.Code == http.StatusTooManyRequests {
		return false
	}
	return e.Code >= http.StatusBadRequest && e.Code < http.StatusInternalServerError
}

// RetryDelay возвращает паузу из retry_after ответа 429.
func (e *SendError) RetryDelay() time.Duration { return e.RetryAfter }

// ReplyText отправляет текст в чат ответом на сообщение replyTo (0 — без ответа).
func (b *Bot) ReplyText(ctx context.Context, chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.AllowSendingWithoutReply = true
	msg.DisableWebPagePreview = true
	return b.send(ctx, "sendMessage", chatID, msg)
}

// ReplyDocument отправляет файл с подписью ответом на сообщение replyTo.
func (b *Bot) ReplyDocument(ctx context.Context, chatID int64, replyTo int, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	doc.ReplyToMessageID = replyTo
	doc.AllowSendingWithoutReply = true
	return b.send(ctx, "sendDocument", chatID, doc)
}

// SendDocument отправляет файл в личный чат получателя.
func (b *Bot) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	return b.ReplyDocument(ctx, chatID, 0, path, caption)
}

func (b *Bot) send(ctx context.Context, method string, chatID int64, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &SendError{Method: method, ChatID: chatID, Err: errors.Wrap(err, "rate limiter")}
	}
	if _, err := b.api.Send(c); err != nil {
		return classify(method, chatID, err)
	}
	return nil
}

func classify(method string, chatID int64, err error) error {
	out := &SendError{Method: method, ChatID: chatID, Err: err}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		out.Code = apiErr.Code
		out.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
	}
	return out
}

package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/domain/notify"
	"telegram-exportbot/internal/infra/logger"
)

// Тексты ответов.
const (
	StartText = "Bot is running. Add it to a channel as an admin: it will export the members to CSV and send the file to the admins.\n" +
		"Manual export: /scrape <@channel | t.me/channel | channel_id>"
	UsageText      = "Usage: /scrape <@channel | t.me/channel | channel_id>"
	AckText        = "Starting export, this may take a while..."
	FailurePrefix  = "Scrape failed: "
	RegenerateHint = "\nThe user session is missing or not authorized: generate a new one with gensession and update TELETHON_SESSION."
)

// Scraper — конвейер выгрузки.
type Scraper interface {
	Scrape(ctx context.Context, ref members.ChannelRef) (members.Result, error)
	Release(res members.Result)
}

// Broadcaster рассылает файл всем администраторам.
type Broadcaster interface {
	NotifyAdmins(ctx context.Context, path, caption string) notify.Report
}

// Replier отвечает в чат, из которого пришла команда.
type Replier interface {
	ReplyText(ctx context.Context, chatID int64, replyTo int, text string) error
	ReplyDocument(ctx context.Context, chatID int64, replyTo int, path, caption string) error
}

// Roster — неизменяемое множество администраторов.
type Roster map[int64]struct{}

// NewRoster строит Roster из списка id.
func NewRoster(ids []int64) Roster {
	r := make(Roster, len(ids))
	for _, id := range ids {
		r[id] = struct{}{}
	}
	return r
}

// Contains сообщает, является ли id администратором.
func (r Roster) Contains(id int64) bool {
	_, ok := r[id]
	return ok
}

// Router обрабатывает события, каждое — в своей горутине.
type Router struct {
	roster      Roster
	scraper     Scraper
	broadcaster Broadcaster
	replier     Replier

	wg sync.WaitGroup
}

// New создаёт Router.
func New(roster Roster, scraper Scraper, broadcaster Broadcaster, replier Replier) *Router {
	return &Router{
		roster:      roster,
		scraper:     scraper,
		broadcaster: broadcaster,
		replier:     replier,
	}
}

// Handle запускает обработку события и сразу возвращает управление.
func (r *Router) Handle(ctx context.Context, ev Event) {
	r.wg.Go(func() {
		r.dispatch(ctx, ev)
	})
}

// Wait дожидается завершения всех запущенных обработчиков.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) dispatch(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case StartCommand:
		r.onStart(ctx, e)
	case ScrapeCommand:
		r.onScrape(ctx, e)
	case MembershipChanged:
		r.onMembership(ctx, e)
	default:
		logger.Debugf("Router: unhandled event %T", ev)
	}
}

func (r *Router) onStart(ctx context.Context, e StartCommand) {
	text := fmt.Sprintf("%s\nYour ID: %d", StartText, e.UserID)
	if err := r.replier.ReplyText(ctx, e.ChatID, e.MessageID, text); err != nil {
		logger.Warn("Start reply failed", zap.Int64("chat_id", e.ChatID), zap.Error(err))
	}
}

func (r *Router) onScrape(ctx context.Context, e ScrapeCommand) {
	if !r.roster.Contains(e.UserID) {
		logger.Debug("Scrape command from non-admin ignored", zap.Int64("user_id", e.UserID))
		return
	}

	arg := strings.TrimSpace(e.Arg)
	if arg == "" {
		r.reply(ctx, e, UsageText)
		return
	}

	ref := Normalize(arg)
	r.reply(ctx, e, AckText)

	res, err := r.scraper.Scrape(ctx, ref)
	if err != nil {
		r.reply(ctx, e, failureText(err))
		return
	}
	defer r.scraper.Release(res)

	if err := r.replier.ReplyDocument(ctx, e.ChatID, e.MessageID, res.Path, res.Caption()); err != nil {
		fields := []zap.Field{zap.Int64("chat_id", e.ChatID), zap.String("run_id", res.RunID)}
		logger.Warn("Direct export reply failed; broadcasting to admins", append(fields, notify.FailureFields(err)...)...)
		r.broadcaster.NotifyAdmins(ctx, res.Path, res.Caption())
	}
}

// onMembership: ошибки автоматического пути только логируются, администраторы
// ничего не получают.
func (r *Router) onMembership(ctx context.Context, e MembershipChanged) {
	if e.Chat.Type != ChatChannel {
		return
	}
	if e.NewStatus != StatusAdministrator && e.NewStatus != StatusMember {
		logger.Debug("Membership change ignored",
			zap.Int64("chat_id", e.Chat.ID),
			zap.String("status", string(e.NewStatus)),
		)
		return
	}

	ref := members.ChannelRef{ChatID: e.Chat.ID}
	if u := strings.TrimSpace(e.Chat.Username); u != "" {
		ref = members.ChannelRef{Username: strings.TrimPrefix(u, "@")}
	}
	logger.Info("Bot added to channel; scraping participants", zap.Stringer("channel", ref))

	res, err := r.scraper.Scrape(ctx, ref)
	if err != nil {
		logger.Error("Automatic scrape failed", zap.Stringer("channel", ref), zap.Error(err))
		return
	}
	defer r.scraper.Release(res)

	r.broadcaster.NotifyAdmins(ctx, res.Path, res.Caption())
}

func (r *Router) reply(ctx context.Context, e ScrapeCommand, text string) {
	if err := r.replier.ReplyText(ctx, e.ChatID, e.MessageID, text); err != nil {
		logger.Warn("Reply failed", append([]zap.Field{zap.Int64("chat_id", e.ChatID)}, notify.FailureFields(err)...)...)
	}
}

func failureText(err error) string {
	text := FailurePrefix + err.Error()
	if members.NeedsNewSession(err) {
		text += RegenerateHint
	}
	return text
}

// Package participants — источник участников канала поверх пользовательской
// MTProto-сессии (gotd). Боты не могут читать списки участников, поэтому каждая
// выгрузка открывает короткоживущий клиент с сессией из TELETHON_SESSION.
package participants

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/infra/logger"
	tgruntime "telegram-exportbot/internal/telegram/runtime"
)

const (
	participantsPageLimit = 200
	// botAPIChannelShift — Bot API кодирует канал как -(1e12 + channel_id).
	botAPIChannelShift int64 = 1_000_000_000_000
	defaultPageWaitMin       = 300
	defaultPageWaitMax       = 800
)

// searchAlphabet — запросы дополнительных проходов: сервер отдаёт по "recent"
// ограниченное число участников, поиск по первым символам добирает остальных.
const searchAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// API — подмножество tg.Client, которое использует источник.
type API interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	ChannelsGetParticipants(ctx context.Context, request *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
	MessagesGetDialogs(ctx context.Context, request *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
}

// PeerCache запоминает access_hash каналов между выгрузками.
type PeerCache interface {
	Lookup(ctx context.Context, channelID int64) (*tg.Channel, bool, error)
	Remember(ctx context.Context, ch *tg.Channel) error
}

// SessionOptions управляет перечислением.
type SessionOptions struct {
	// Aggressive включает поисковые проходы, если "recent" не вернул всех.
	Aggressive bool
	// Пауза между страницами, мс. Нули отключают паузу.
	PageWaitMinMs int
	PageWaitMaxMs int
}

// Session разрешает каналы и перечисляет участников через API.
type Session struct {
	api   API
	cache PeerCache
	opts  SessionOptions
}

// NewSession создаёт Session. cache может быть nil.
func NewSession(api API, cache PeerCache, opts SessionOptions) *Session {
	return &Session{api: api, cache: cache, opts: opts}
}

// Resolve разрешает ссылку в канал.
func (s *Session) Resolve(ctx context.Context, ref members.ChannelRef) (members.Channel, error) {
	if !ref.IsNumeric() {
		return s.resolveUsername(ctx, ref)
	}
	return s.resolveID(ctx, ref)
}

func (s *Session) resolveUsername(ctx context.Context, ref members.ChannelRef) (members.Channel, error) {
	ident := ref.String()
	resp, err := s.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: ref.Username})
	if err != nil {
		return members.Channel{}, &members.ResolutionError{Identifier: ident, Err: err}
	}

	switch peer := resp.Peer.(type) {
	case *tg.PeerChannel:
		for _, chat := range resp.Chats {
			if chat.GetID() == peer.ChannelID {
				return s.acceptChat(ctx, ident, chat)
			}
		}
		return members.Channel{}, &members.ResolutionError{Identifier: ident, Err: errors.New("channel missing from response")}
	case *tg.PeerUser:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "user"}
	case *tg.PeerChat:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "basic group"}
	default:
		return members.Channel{}, &members.ResolutionError{Identifier: ident, Err: errors.Errorf("unexpected peer %T", resp.Peer)}
	}
}

// resolveID: кеш → обход диалогов. Отрицательный id вне диапазона -100… — обычная группа.
func (s *Session) resolveID(ctx context.Context, ref members.ChannelRef) (members.Channel, error) {
	ident := ref.String()
	id := ref.ChatID
	switch {
	case id <= -botAPIChannelShift:
		id = -id - botAPIChannelShift
	case id < 0:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "basic group"}
	case id == 0:
		return members.Channel{}, &members.ResolutionError{Identifier: ident, Err: errors.New("empty channel id")}
	}

	if s.cache != nil {
		ch, ok, err := s.cache.Lookup(ctx, id)
		if err != nil {
			logger.Warn("Peer cache lookup failed", zap.Int64("channel_id", id), zap.Error(err))
		}
		if ok {
			return toChannel(ch), nil
		}
	}

	var (
		found    tg.ChatClass
		userSeen bool
	)
	err := s.walkDialogs(ctx, func(batch *tg.MessagesDialogs) bool {
		for _, chat := range batch.Chats {
			if ch, ok := chat.(*tg.Channel); ok {
				s.remember(ctx, ch)
			}
			if chat.GetID() == id {
				found = chat
			}
		}
		for _, u := range batch.Users {
			if u.GetID() == id {
				userSeen = true
			}
		}
		return found != nil
	})
	if err != nil {
		return members.Channel{}, &members.ResolutionError{Identifier: ident, Err: err}
	}
	if found != nil {
		return s.acceptChat(ctx, ident, found)
	}
	if userSeen {
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "user"}
	}
	return members.Channel{}, &members.ResolutionError{
		Identifier: ident,
		Err:        errors.New("channel not found among the session's dialogs; the user account must be a member"),
	}
}

// acceptChat пропускает только *tg.Channel (канал или супергруппа).
func (s *Session) acceptChat(ctx context.Context, ident string, chat tg.ChatClass) (members.Channel, error) {
	switch c := chat.(type) {
	case *tg.Channel:
		s.remember(ctx, c)
		return toChannel(c), nil
	case *tg.ChannelForbidden:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "forbidden channel"}
	case *tg.Chat, *tg.ChatForbidden:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: "basic group"}
	default:
		return members.Channel{}, &members.NotAChannelError{Identifier: ident, Kind: chat.TypeName()}
	}
}

func (s *Session) remember(ctx context.Context, ch *tg.Channel) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, ch); err != nil {
		logger.Warn("Peer cache update failed", zap.Int64("channel_id", ch.ID), zap.Error(err))
	}
}

func toChannel(c *tg.Channel) members.Channel {
	return members.Channel{
		ID:         c.ID,
		AccessHash: c.AccessHash,
		Username:   c.Username,
		Title:      c.Title,
		Broadcast:  c.Broadcast,
		Megagroup:  c.Megagroup,
	}
}

// Participants перечисляет участников: проход "recent", затем (в агрессивном
// режиме) поисковые проходы, пока не набрано серверное число участников.
// Каждый пользователь отдаётся в emit один раз.
func (s *Session) Participants(ctx context.Context, ch members.Channel, emit members.Emit) error {
	it := &iterator{
		session: s,
		channel: ch,
		input:   &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
		seen:    make(map[int64]struct{}),
		emit:    emit,
	}

	if err := it.pass(ctx, &tg.ChannelParticipantsRecent{}); err != nil {
		return err
	}
	if !s.opts.Aggressive {
		return nil
	}
	for _, q := range searchAlphabet {
		if it.complete() {
			break
		}
		if err := it.pass(ctx, &tg.ChannelParticipantsSearch{Q: string(q)}); err != nil {
			return err
		}
	}

	logger.Debug("Participants enumerated",
		zap.Int64("channel_id", ch.ID),
		zap.Int("emitted", len(it.seen)),
		zap.Int("server_count", it.count),
	)
	return nil
}

type iterator struct {
	session *Session
	channel members.Channel
	input   tg.InputChannelClass
	seen    map[int64]struct{}
	count   int
	emit    members.Emit
}

func (it *iterator) complete() bool {
	return it.count > 0 && len(it.seen) >= it.count
}

func (it *iterator) pass(ctx context.Context, filter tg.ChannelParticipantsFilterClass) error {
	offset := 0
	for {
		resp, err := it.session.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: it.input,
			Filter:  filter,
			Offset:  offset,
			Limit:   participantsPageLimit,
		})
		if err != nil {
			return &members.EnumerationError{Channel: channelLabel(it.channel), Err: err}
		}

		page, ok := resp.(*tg.ChannelsChannelParticipants)
		if !ok {
			return nil
		}
		if page.Count > it.count {
			it.count = page.Count
		}
		if err := it.emitParticipants(page); err != nil {
			return err
		}

		offset += len(page.Participants)
		if len(page.Participants) == 0 || offset >= page.Count {
			return nil
		}
		if err := tgruntime.WaitRandomTimeMs(ctx, it.session.opts.PageWaitMinMs, it.session.opts.PageWaitMaxMs); err != nil {
			return &members.EnumerationError{Channel: channelLabel(it.channel), Err: err}
		}
	}
}

// emitParticipants отдаёт пользователей в порядке page.Participants. В Users
// сервер кладёт и тех, на кого участники ссылаются (кто пригласил или повысил),
// такие пользователи участниками не считаются.
func (it *iterator) emitParticipants(page *tg.ChannelsChannelParticipants) error {
	byID := make(map[int64]*tg.User, len(page.Users))
	for _, u := range page.Users {
		if user, ok := u.(*tg.User); ok {
			byID[user.ID] = user
		}
	}
	for _, p := range page.Participants {
		id, ok := participantUserID(p)
		if !ok {
			continue
		}
		user, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := it.seen[id]; dup {
			continue
		}
		it.seen[id] = struct{}{}
		if err := it.emit(toRecord(user)); err != nil {
			return err
		}
	}
	return nil
}

func participantUserID(p tg.ChannelParticipantClass) (int64, bool) {
	switch v := p.(type) {
	case *tg.ChannelParticipant:
		return v.UserID, true
	case *tg.ChannelParticipantSelf:
		return v.UserID, true
	case *tg.ChannelParticipantAdmin:
		return v.UserID, true
	case *tg.ChannelParticipantCreator:
		return v.UserID, true
	case *tg.ChannelParticipantBanned:
		return peerUserID(v.Peer)
	case *tg.ChannelParticipantLeft:
		return peerUserID(v.Peer)
	default:
		return 0, false
	}
}

// peerUserID: забаненным или вышедшим может оказаться и канал, его пропускаем.
func peerUserID(peer tg.PeerClass) (int64, bool) {
	if u, ok := peer.(*tg.PeerUser); ok {
		return u.UserID, true
	}
	return 0, false
}

func toRecord(u *tg.User) members.UserRecord {
	return members.UserRecord{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Bot:       u.Bot,
		LangCode:  u.LangCode,
	}
}

func channelLabel(ch members.Channel) string {
	if ch.Username != "" {
		return "@" + ch.Username
	}
	return strconv.FormatInt(ch.ID, 10)
}

package participants_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-exportbot/internal/adapters/telegram/participants"
	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/infra/telegram/peercache"
)

type fakeAPI struct {
	resolved map[string]*tg.ContactsResolvedPeer
	// участники по фильтру: "recent" или строка поиска
	byFilter  map[string][]*tg.User
	count     int
	dialogs   []*tg.MessagesDialogs
	pageLimit int
	// recentPage, если задан, целиком заменяет ответ прохода "recent"
	recentPage *tg.ChannelsChannelParticipants

	participantCalls int
	dialogCalls      int
	failParticipants error
}

func (f *fakeAPI) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if r, ok := f.resolved[req.Username]; ok {
		return r, nil
	}
	return nil, errors.New("rpc error code 400: USERNAME_NOT_OCCUPIED")
}

func (f *fakeAPI) ChannelsGetParticipants(_ context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	f.participantCalls++
	if f.failParticipants != nil {
		return nil, f.failParticipants
	}

	key := "recent"
	if s, ok := req.Filter.(*tg.ChannelParticipantsSearch); ok {
		key = s.Q
	}
	if key == "recent" && f.recentPage != nil {
		return f.recentPage, nil
	}
	all := f.byFilter[key]

	limit := req.Limit
	if f.pageLimit > 0 && f.pageLimit < limit {
		limit = f.pageLimit
	}
	start := min(req.Offset, len(all))
	end := min(start+limit, len(all))

	page := &tg.ChannelsChannelParticipants{Count: len(all)}
	if key == "recent" {
		page.Count = f.count
	}
	for _, u := range all[start:end] {
		page.Participants = append(page.Participants, &tg.ChannelParticipant{UserID: u.ID})
		page.Users = append(page.Users, u)
	}
	return page, nil
}

func (f *fakeAPI) MessagesGetDialogs(_ context.Context, _ *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error) {
	defer func() { f.dialogCalls++ }()
	if f.dialogCalls >= len(f.dialogs) {
		return &tg.MessagesDialogs{}, nil
	}
	return f.dialogs[f.dialogCalls], nil
}

func users(ids ...int64) []*tg.User {
	out := make([]*tg.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, &tg.User{ID: id, FirstName: "u"})
	}
	return out
}

func collect(t *testing.T, s *participants.Session, ch members.Channel) ([]members.UserRecord, error) {
	t.Helper()
	var recs []members.UserRecord
	err := s.Participants(context.Background(), ch, func(r members.UserRecord) error {
		recs = append(recs, r)
		return nil
	})
	return recs, err
}

func exampleChannel() *tg.Channel {
	return &tg.Channel{ID: 10, AccessHash: 77, Title: "Example", Username: "examplechannel", Broadcast: true}
}

func TestResolveUsername(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{resolved: map[string]*tg.ContactsResolvedPeer{
		"examplechannel": {
			Peer:  &tg.PeerChannel{ChannelID: 10},
			Chats: []tg.ChatClass{exampleChannel()},
		},
		"someuser": {
			Peer:  &tg.PeerUser{UserID: 5},
			Users: []tg.UserClass{&tg.User{ID: 5}},
		},
		"closed": {
			Peer:  &tg.PeerChannel{ChannelID: 11},
			Chats: []tg.ChatClass{&tg.ChannelForbidden{ID: 11, Title: "Closed"}},
		},
	}}
	s := participants.NewSession(api, nil, participants.SessionOptions{})
	ctx := context.Background()

	ch, err := s.Resolve(ctx, members.ParseRef("@examplechannel"))
	require.NoError(t, err)
	assert.Equal(t, members.Channel{ID: 10, AccessHash: 77, Username: "examplechannel", Title: "Example", Broadcast: true}, ch)

	var notChannel *members.NotAChannelError
	_, err = s.Resolve(ctx, members.ParseRef("@someuser"))
	require.True(t, errors.As(err, &notChannel), "got %v", err)
	assert.Equal(t, "user", notChannel.Kind)

	_, err = s.Resolve(ctx, members.ParseRef("closed"))
	require.True(t, errors.As(err, &notChannel), "got %v", err)

	var resErr *members.ResolutionError
	_, err = s.Resolve(ctx, members.ParseRef("@ghost"))
	require.True(t, errors.As(err, &resErr), "got %v", err)
	assert.Contains(t, err.Error(), "@ghost")
	assert.Contains(t, err.Error(), "USERNAME_NOT_OCCUPIED")
	assert.Zero(t, api.participantCalls, "failed resolution never lists participants")
}

func TestResolveNumericViaDialogsAndCache(t *testing.T) {
	t.Parallel()

	cache, err := peercache.Open(filepath.Join(t.TempDir(), "peers.bbolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	api := &fakeAPI{dialogs: []*tg.MessagesDialogs{{
		Dialogs: []tg.DialogClass{&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 10}}},
		Chats:   []tg.ChatClass{exampleChannel(), &tg.Chat{ID: 300, Title: "Basic"}},
		Users:   []tg.UserClass{&tg.User{ID: 400}},
	}}}
	s := participants.NewSession(api, cache, participants.SessionOptions{})
	ctx := context.Background()

	ch, err := s.Resolve(ctx, members.ParseRef("-1000000000010"))
	require.NoError(t, err)
	assert.Equal(t, int64(77), ch.AccessHash)
	assert.Equal(t, 1, api.dialogCalls)

	// повторное разрешение обслуживается кешем
	ch, err = s.Resolve(ctx, members.ChannelRef{ChatID: 10})
	require.NoError(t, err)
	assert.Equal(t, "Example", ch.Title)
	assert.Equal(t, 1, api.dialogCalls)

	var notChannel *members.NotAChannelError
	_, err = s.Resolve(ctx, members.ChannelRef{ChatID: -300})
	require.True(t, errors.As(err, &notChannel), "got %v", err)
	assert.Equal(t, "basic group", notChannel.Kind)

	api.dialogCalls = 0
	_, err = s.Resolve(ctx, members.ChannelRef{ChatID: 400})
	require.True(t, errors.As(err, &notChannel), "got %v", err)
	assert.Equal(t, "user", notChannel.Kind)

	api.dialogCalls = 0
	var resErr *members.ResolutionError
	_, err = s.Resolve(ctx, members.ChannelRef{ChatID: -1000000000999})
	require.True(t, errors.As(err, &resErr), "got %v", err)
}

func TestParticipantsRecentOnly(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{byFilter: map[string][]*tg.User{"recent": users(1, 2, 3)}, count: 3}
	api.byFilter["recent"][2].Bot = true
	api.byFilter["recent"][2].LangCode = "en"

	s := participants.NewSession(api, nil, participants.SessionOptions{Aggressive: true})
	recs, err := collect(t, s, members.Channel{ID: 10})
	require.NoError(t, err)

	require.Len(t, recs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{recs[0].ID, recs[1].ID, recs[2].ID})
	assert.True(t, recs[2].Bot)
	assert.Equal(t, "en", recs[2].LangCode)
	assert.Equal(t, 1, api.participantCalls, "no search passes once the server count is reached")
}

func TestParticipantsPaginatesAndSearches(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		byFilter: map[string][]*tg.User{
			"recent": users(1, 2, 3, 4, 5),
			"a":      users(4, 5, 6),
			"b":      users(7, 1),
		},
		count:     7,
		pageLimit: 2,
	}

	s := participants.NewSession(api, nil, participants.SessionOptions{Aggressive: true})
	recs, err := collect(t, s, members.Channel{ID: 10})
	require.NoError(t, err)

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ids, "each user is emitted exactly once")
	// recent: 3 страницы + пустая (сервер обещал 7), "a": 2, "b": 1, дальше набран count
	assert.Equal(t, 7, api.participantCalls)
}

func TestParticipantsSkipsReferencedUsers(t *testing.T) {
	t.Parallel()

	// Users содержит пригласившего (98) и повысившего (99): они не участники.
	api := &fakeAPI{
		recentPage: &tg.ChannelsChannelParticipants{
			Count: 4,
			Participants: []tg.ChannelParticipantClass{
				&tg.ChannelParticipant{UserID: 1},
				&tg.ChannelParticipantAdmin{UserID: 2, PromotedBy: 99, InviterID: 98},
				&tg.ChannelParticipantSelf{UserID: 3, InviterID: 98},
				&tg.ChannelParticipantBanned{Peer: &tg.PeerChannel{ChannelID: 500}},
			},
			Users: []tg.UserClass{
				&tg.User{ID: 99}, &tg.User{ID: 1}, &tg.User{ID: 98}, &tg.User{ID: 2}, &tg.User{ID: 3},
			},
		},
		byFilter: map[string][]*tg.User{"a": users(4)},
	}

	s := participants.NewSession(api, nil, participants.SessionOptions{Aggressive: true})
	recs, err := collect(t, s, members.Channel{ID: 10})
	require.NoError(t, err)

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, ids, "only participants, in participant order")
	assert.Equal(t, 2, api.participantCalls, "search pass runs until real participants reach the count")
}

func TestParticipantsNonAggressiveStopsAfterRecent(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{byFilter: map[string][]*tg.User{"recent": users(1, 2), "a": users(3)}, count: 3}
	s := participants.NewSession(api, nil, participants.SessionOptions{})

	recs, err := collect(t, s, members.Channel{ID: 10})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestParticipantsErrors(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{failParticipants: errors.New("rpc error code 400: CHAT_ADMIN_REQUIRED")}
	s := participants.NewSession(api, nil, participants.SessionOptions{})

	_, err := collect(t, s, members.Channel{ID: 10, Username: "examplechannel"})
	var enumErr *members.EnumerationError
	require.True(t, errors.As(err, &enumErr), "got %v", err)
	assert.Equal(t, "@examplechannel", enumErr.Channel)

	// ошибка emit (запись CSV) возвращается как есть
	api = &fakeAPI{byFilter: map[string][]*tg.User{"recent": users(1, 2)}, count: 2}
	s = participants.NewSession(api, nil, participants.SessionOptions{})
	stop := errors.New("disk full")
	err = s.Participants(context.Background(), members.Channel{ID: 10}, func(members.UserRecord) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSourceNotConfigured(t *testing.T) {
	t.Parallel()

	src := participants.NewSource(participants.Config{APIID: 1, APIHash: "h"}, nil)
	err := src.WithSession(context.Background(), nil)
	assert.ErrorIs(t, err, members.ErrSessionNotConfigured)

	src = participants.NewSource(participants.Config{APIID: 1, APIHash: "h", Session: "not-a-session"}, nil)
	err = src.WithSession(context.Background(), nil)
	assert.True(t, members.NeedsNewSession(err), "got %v", err)
}

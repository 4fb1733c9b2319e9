package router_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-exportbot/internal/domain/members"
	"telegram-exportbot/internal/domain/notify"
	"telegram-exportbot/internal/domain/router"
)

type fakeScraper struct {
	mu       sync.Mutex
	refs     []members.ChannelRef
	released []members.Result
	err      error
}

func (f *fakeScraper) Scrape(_ context.Context, ref members.ChannelRef) (members.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	if f.err != nil {
		return members.Result{}, f.err
	}
	return members.Result{Path: "/tmp/members-" + ref.String() + ".csv", Total: 3, Title: "Example"}, nil
}

func (f *fakeScraper) Release(res members.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, res)
}

type broadcast struct{ path, caption string }

type fakeBroadcaster struct {
	mu    sync.Mutex
	sends []broadcast
}

func (f *fakeBroadcaster) NotifyAdmins(_ context.Context, path, caption string) notify.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, broadcast{path: path, caption: caption})
	return notify.Report{}
}

type reply struct {
	chatID  int64
	replyTo int
	text    string
	path    string
}

type fakeReplier struct {
	mu      sync.Mutex
	texts   []reply
	docs    []reply
	docFail error
}

func (f *fakeReplier) ReplyText(_ context.Context, chatID int64, replyTo int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, reply{chatID: chatID, replyTo: replyTo, text: text})
	return nil
}

func (f *fakeReplier) ReplyDocument(_ context.Context, chatID int64, replyTo int, path, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, reply{chatID: chatID, replyTo: replyTo, text: caption, path: path})
	return f.docFail
}

type fixture struct {
	router      *router.Router
	scraper     *fakeScraper
	broadcaster *fakeBroadcaster
	replier     *fakeReplier
}

func newFixture() *fixture {
	f := &fixture{
		scraper:     &fakeScraper{},
		broadcaster: &fakeBroadcaster{},
		replier:     &fakeReplier{},
	}
	f.router = router.New(router.NewRoster([]int64{100, 200}), f.scraper, f.broadcaster, f.replier)
	return f
}

func (f *fixture) handle(ev router.Event) {
	f.router.Handle(context.Background(), ev)
	f.router.Wait()
}

func TestStartRepliesWithUserID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.handle(router.StartCommand{ChatID: 5, UserID: 555, MessageID: 9})

	require.Len(t, f.replier.texts, 1)
	assert.Contains(t, f.replier.texts[0].text, router.StartText)
	assert.Contains(t, f.replier.texts[0].text, "Your ID: 555")
	assert.Equal(t, 9, f.replier.texts[0].replyTo)
}

func TestScrapeFromNonAdminIsSilent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.handle(router.ScrapeCommand{ChatID: 1, UserID: 999, Arg: "@examplechannel"})

	assert.Empty(t, f.replier.texts)
	assert.Empty(t, f.replier.docs)
	assert.Empty(t, f.scraper.refs)
	assert.Empty(t, f.broadcaster.sends)
}

func TestScrapeWithoutArgShowsUsage(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.handle(router.ScrapeCommand{ChatID: 1, UserID: 100, Arg: "   "})

	require.Len(t, f.replier.texts, 1)
	assert.Equal(t, router.UsageText, f.replier.texts[0].text)
	assert.Empty(t, f.scraper.refs)
}

func TestScrapeSuccessRepliesDirectly(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.handle(router.ScrapeCommand{ChatID: 1, UserID: 100, MessageID: 3, Arg: "@examplechannel"})

	require.Len(t, f.replier.texts, 1)
	assert.Equal(t, router.AckText, f.replier.texts[0].text)
	require.Len(t, f.replier.docs, 1)
	assert.Equal(t, "Channel: Example\nParticipants: 3", f.replier.docs[0].text)
	assert.Equal(t, 3, f.replier.docs[0].replyTo)
	assert.Empty(t, f.broadcaster.sends)
	assert.Len(t, f.scraper.released, 1)
}

func TestScrapeURLEqualsUsername(t *testing.T) {
	t.Parallel()

	byName := newFixture()
	byName.handle(router.ScrapeCommand{ChatID: 1, UserID: 100, Arg: "@examplechannel"})
	byURL := newFixture()
	byURL.handle(router.ScrapeCommand{ChatID: 1, UserID: 100, Arg: "https://t.me/examplechannel"})

	assert.Equal(t, byName.scraper.refs, byURL.scraper.refs)
	assert.Equal(t, byName.replier.docs, byURL.replier.docs)
}

func TestScrapeReplyFailureFallsBackToBroadcast(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.replier.docFail = errors.New("Bad Request: message to reply not found")
	f.handle(router.ScrapeCommand{ChatID: 1, UserID: 200, Arg: "t.me/examplechannel"})

	require.Len(t, f.broadcaster.sends, 1)
	assert.Equal(t, "Channel: Example\nParticipants: 3", f.broadcaster.sends[0].caption)
	assert.Len(t, f.scraper.released, 1, "file is released after the fallback broadcast")
}

func TestScrapeFailureRepliesWithCause(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{
			name: "resolution",
			err:  &members.ResolutionError{Identifier: "@ghost", Err: errors.New("USERNAME_NOT_OCCUPIED")},
		},
		{
			name: "notChannel",
			err:  &members.NotAChannelError{Identifier: "@ghost", Kind: "user"},
		},
		{
			name:     "unauthorized",
			err:      &members.UnauthorizedSessionError{Err: errors.New("AUTH_KEY_UNREGISTERED")},
			wantHint: true,
		},
		{
			name:     "notConfigured",
			err:      members.ErrSessionNotConfigured,
			wantHint: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			f.scraper.err = tc.err
			f.handle(router.ScrapeCommand{ChatID: 1, UserID: 100, Arg: "@ghost"})

			require.Len(t, f.replier.texts, 2)
			msg := f.replier.texts[1].text
			assert.Contains(t, msg, router.FailurePrefix+tc.err.Error())
			assert.Equal(t, tc.wantHint, strings.HasSuffix(msg, router.RegenerateHint))
			assert.Empty(t, f.broadcaster.sends, "failures are never broadcast")
			assert.Empty(t, f.scraper.released)
		})
	}
}

func TestMembershipChanged(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		ev        router.MembershipChanged
		wantRef   *members.ChannelRef
		broadcast bool
	}{
		{
			name:      "adminWithUsername",
			ev:        router.MembershipChanged{Chat: router.Chat{ID: -1001, Type: router.ChatChannel, Username: "examplechannel"}, NewStatus: router.StatusAdministrator},
			wantRef:   &members.ChannelRef{Username: "examplechannel"},
			broadcast: true,
		},
		{
			name:      "memberPrivate",
			ev:        router.MembershipChanged{Chat: router.Chat{ID: -1002, Type: router.ChatChannel}, NewStatus: router.StatusMember},
			wantRef:   &members.ChannelRef{ChatID: -1002},
			broadcast: true,
		},
		{
			name: "left",
			ev:   router.MembershipChanged{Chat: router.Chat{ID: -1003, Type: router.ChatChannel}, NewStatus: router.StatusLeft},
		},
		{
			name: "kicked",
			ev:   router.MembershipChanged{Chat: router.Chat{ID: -1004, Type: router.ChatChannel}, NewStatus: router.StatusKicked},
		},
		{
			name: "supergroup",
			ev:   router.MembershipChanged{Chat: router.Chat{ID: -1005, Type: router.ChatSupergroup}, NewStatus: router.StatusAdministrator},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			f.handle(tc.ev)

			if tc.wantRef == nil {
				assert.Empty(t, f.scraper.refs)
				assert.Empty(t, f.broadcaster.sends)
				return
			}
			require.Equal(t, []members.ChannelRef{*tc.wantRef}, f.scraper.refs)
			assert.Equal(t, tc.broadcast, len(f.broadcaster.sends) == 1)
			assert.Empty(t, f.replier.texts)
		})
	}
}

func TestMembershipFailureIsSilent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.scraper.err = &members.ResolutionError{Identifier: "-1001", Err: errors.New("CHANNEL_PRIVATE")}
	f.handle(router.MembershipChanged{Chat: router.Chat{ID: -1001, Type: router.ChatChannel}, NewStatus: router.StatusAdministrator})

	assert.Len(t, f.scraper.refs, 1)
	assert.Empty(t, f.broadcaster.sends)
	assert.Empty(t, f.replier.texts)
}

func TestEventsRunConcurrently(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for i := 0; i < 20; i++ {
		f.router.Handle(context.Background(), router.MembershipChanged{
			Chat:      router.Chat{ID: int64(-1000 - i), Type: router.ChatChannel},
			NewStatus: router.StatusAdministrator,
		})
	}
	f.router.Wait()

	assert.Len(t, f.scraper.refs, 20)
	assert.Len(t, f.broadcaster.sends, 20)
}

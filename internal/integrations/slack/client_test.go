package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	slackgo "github.com/slack-go/slack"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type postedMessage struct {
	channel string
	text    string
}

type fakeAPI struct {
	mu sync.Mutex

	authResp  *slackgo.AuthTestResponse
	authErr   error
	authCalls int

	posts   []postedMessage
	postErr error

	pages      map[string]memberPage
	membersErr error
	cursors    []string

	users     map[string]slackgo.User
	usersErr  error
	infoCalls [][]string
}

type memberPage struct {
	ids  []string
	next string
}

func (f *fakeAPI) AuthTestContext(context.Context) (*slackgo.AuthTestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return f.authResp, f.authErr
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", "", f.postErr
	}
	_, values, err := slackgo.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", "", err
	}
	f.posts = append(f.posts, postedMessage{channel: channelID, text: values.Get("text")})
	return channelID, "1700000000.000100", nil
}

func (f *fakeAPI) GetUsersInConversationContext(_ context.Context, params *slackgo.GetUsersInConversationParameters) ([]string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, params.Cursor)
	if f.membersErr != nil {
		return nil, "", f.membersErr
	}
	p := f.pages[params.Cursor]
	return p.ids, p.next, nil
}

func (f *fakeAPI) GetUsersInfoContext(_ context.Context, users ...string) (*[]slackgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls = append(f.infoCalls, append([]string(nil), users...))
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	out := make([]slackgo.User, 0, len(users))
	for _, id := range users {
		u, ok := f.users[id]
		if !ok {
			u = slackgo.User{ID: id}
		}
		out = append(out, u)
	}
	return &out, nil
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	c, err := New(api, WithRateLimit(0, 0))
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestSendDirect_PostsToUser(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	require.NoError(t, c.SendDirect(context.Background(), "U1", "Q0?"))
	require.Equal(t, []postedMessage{{channel: "U1", text: "Q0?"}}, api.posts)
}

func TestPostToChannel(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	require.NoError(t, c.PostToChannel(context.Background(), "C1", "report"))
	require.Equal(t, []postedMessage{{channel: "C1", text: "report"}}, api.posts)
}

func TestPost_Errors(t *testing.T) {
	api := &fakeAPI{postErr: errors.New("channel_not_found")}
	c := newTestClient(t, api)

	err := c.SendDirect(context.Background(), "U1", "hi")
	require.ErrorContains(t, err, "send direct message to U1")
	require.ErrorContains(t, err, "channel_not_found")

	err = c.PostToChannel(context.Background(), "C1", "hi")
	require.ErrorContains(t, err, "post to channel C1")

	require.Error(t, c.SendDirect(context.Background(), " ", "hi"))
	require.Error(t, c.PostToChannel(context.Background(), "", "hi"))
}

func TestPost_RateLimiterHonorsContext(t *testing.T) {
	api := &fakeAPI{}
	c, err := New(api, WithRateLimit(rate.Limit(0.001), 1))
	require.NoError(t, err)

	require.NoError(t, c.SendDirect(context.Background(), "U1", "first"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.SendDirect(ctx, "U1", "second")
	require.ErrorContains(t, err, "rate limiter")
	require.Len(t, api.posts, 1)
}

func TestListMembers_PagesAndFilters(t *testing.T) {
	api := &fakeAPI{
		authResp: &slackgo.AuthTestResponse{UserID: "UBOT"},
		pages: map[string]memberPage{
			"":   {ids: []string{"U1", SlackbotID, "UBOT"}, next: "c2"},
			"c2": {ids: []string{"U2", "B1", "U3", "U1"}},
		},
		users: map[string]slackgo.User{
			"B1": {ID: "B1", IsBot: true},
			"U3": {ID: "U3", Deleted: true},
		},
	}
	c := newTestClient(t, api)

	members, err := c.ListMembers(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, []string{"U1", "U2"}, members)
	require.Equal(t, []string{"", "c2"}, api.cursors)
}

func TestListMembers_ChunksUsersInfo(t *testing.T) {
	ids := make([]string, 0, 65)
	for i := 0; i < 65; i++ {
		ids = append(ids, fmt.Sprintf("U%03d", i))
	}
	api := &fakeAPI{
		authResp: &slackgo.AuthTestResponse{UserID: "UBOT"},
		pages:    map[string]memberPage{"": {ids: ids}},
	}
	c := newTestClient(t, api)

	members, err := c.ListMembers(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, ids, members)
	require.Len(t, api.infoCalls, 3)
	require.Len(t, api.infoCalls[0], usersInfoChunk)
	require.Len(t, api.infoCalls[2], 5)
}

func TestListMembers_DirectoryError(t *testing.T) {
	api := &fakeAPI{membersErr: errors.New("not_in_channel")}
	c := newTestClient(t, api)

	_, err := c.ListMembers(context.Background(), "C1")
	require.ErrorContains(t, err, "list members of C1")

	_, err = c.ListMembers(context.Background(), " ")
	require.Error(t, err)
}

func TestListMembers_DegradesWhenLookupsFail(t *testing.T) {
	api := &fakeAPI{
		authErr:  errors.New("invalid_auth"),
		usersErr: errors.New("ratelimited"),
		pages:    map[string]memberPage{"": {ids: []string{"U1", SlackbotID, "B1"}}},
	}
	c := newTestClient(t, api)

	members, err := c.ListMembers(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, []string{"U1", "B1"}, members)
}

func TestSelfUserID_CachesSuccessOnly(t *testing.T) {
	api := &fakeAPI{authErr: errors.New("timeout")}
	c := newTestClient(t, api)

	_, err := c.SelfUserID(context.Background())
	require.Error(t, err)

	api.authErr = nil
	api.authResp = &slackgo.AuthTestResponse{UserID: "UBOT"}
	id, err := c.SelfUserID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "UBOT", id)

	_, _ = c.SelfUserID(context.Background())
	require.Equal(t, 2, api.authCalls)
}

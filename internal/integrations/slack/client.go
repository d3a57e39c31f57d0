package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	slackgo "github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	// SlackbotID is the built-in Slackbot account present in every channel.
	SlackbotID = "USLACKBOT"

	defaultPageSize  = 200
	usersInfoChunk   = 30
	defaultRate      = rate.Limit(5)
	defaultRateBurst = 10
)

// slackAPI is the minimal Slack Web API surface required by Client.
// *slackgo.Client satisfies this interface.
type slackAPI interface {
	AuthTestContext(ctx context.Context) (*slackgo.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error)
	GetUsersInConversationContext(ctx context.Context, params *slackgo.GetUsersInConversationParameters) ([]string, string, error)
	GetUsersInfoContext(ctx context.Context, users ...string) (*[]slackgo.User, error)
}

// Client delivers standup messages over the Slack Web API and resolves
// channel membership.
type Client struct {
	api      slackAPI
	limiter  *rate.Limiter
	pageSize int
	log      zerolog.Logger

	selfMu sync.Mutex
	selfID string
}

type Option func(*Client)

// WithRateLimit caps outbound message calls. A zero limit disables limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a Client over api.
func New(api slackAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("slack: api must not be nil")
	}
	c := &Client{
		api:      api,
		limiter:  rate.NewLimiter(defaultRate, defaultRateBurst),
		pageSize: defaultPageSize,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendDirect sends text as a direct message. Posting to a user id opens the
// bot's DM with that user.
func (c *Client) SendDirect(ctx context.Context, userID, text string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("slack: user id is required")
	}
	if err := c.post(ctx, userID, text); err != nil {
		return fmt.Errorf("slack: send direct message to %s: %w", userID, err)
	}
	return nil
}

// PostToChannel posts text to a shared channel.
func (c *Client) PostToChannel(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("slack: channel id is required")
	}
	if err := c.post(ctx, channelID, text); err != nil {
		return fmt.Errorf("slack: post to channel %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, channel, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err := c.api.PostMessageContext(ctx, channel, slackgo.MsgOptionText(text, false))
	return err
}

// SelfUserID returns the bot's own user id, resolved once via auth.test.
// Failures are not cached.
func (c *Client) SelfUserID(ctx context.Context) (string, error) {
	c.selfMu.Lock()
	defer c.selfMu.Unlock()
	if c.selfID != "" {
		return c.selfID, nil
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack: auth test: %w", err)
	}
	if resp == nil || resp.UserID == "" {
		return "", errors.New("slack: auth test returned no user id")
	}
	c.selfID = resp.UserID
	return c.selfID, nil
}

// ListMembers returns the human members of channelID, in directory order.
// Slackbot, the bot itself, other bots and deactivated users are excluded.
func (c *Client) ListMembers(ctx context.Context, channelID string) ([]string, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, errors.New("slack: channel id is required")
	}

	var all []string
	cursor := ""
	for {
		ids, next, err := c.api.GetUsersInConversationContext(ctx, &slackgo.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     c.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("slack: list members of %s: %w", channelID, err)
		}
		all = append(all, ids...)
		if next == "" {
			break
		}
		cursor = next
	}

	exclude := map[string]bool{SlackbotID: true}
	if self, err := c.SelfUserID(ctx); err != nil {
		c.log.Warn().Err(err).Msg("could not resolve bot user id, not excluding it from members")
	} else {
		exclude[self] = true
	}

	members := make([]string, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, id := range all {
		if exclude[id] || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	return c.dropBots(ctx, members), nil
}

// dropBots removes bot and deleted accounts using users.info. Lookup errors
// leave the chunk unfiltered.
func (c *Client) dropBots(ctx context.Context, ids []string) []string {
	skip := make(map[string]bool)
	for start := 0; start < len(ids); start += usersInfoChunk {
		end := min(start+usersInfoChunk, len(ids))
		users, err := c.api.GetUsersInfoContext(ctx, ids[start:end]...)
		if err != nil {
			c.log.Warn().Err(err).Int("users", end-start).Msg("users.info failed, keeping members unfiltered")
			continue
		}
		if users == nil {
			continue
		}
		for _, u := range *users {
			if u.IsBot || u.Deleted {
				skip[u.ID] = true
			}
		}
	}
	if len(skip) == 0 {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

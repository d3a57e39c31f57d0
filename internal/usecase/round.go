package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultFanOut = 16

type roundIDKey struct{}

// WithRoundID tags ctx with the id of the scheduled round it belongs to.
func WithRoundID(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, roundIDKey{}, roundID)
}

// RoundIDFromContext returns the round id set by WithRoundID, or "".
func RoundIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(roundIDKey{}).(string)
	return id
}

// MemberLister resolves the users in a channel.
type MemberLister interface {
	ListMembers(ctx context.Context, channelID string) ([]string, error)
}

// Starter opens a conversation with one user.
type Starter interface {
	Start(ctx context.Context, userID string) error
}

// RoundResult summarizes one fan-out.
type RoundResult struct {
	RoundID string
	Members int
	Started int
	Failed  int
}

// RoundRunner is the scheduled action: it resolves the channel members and
// starts a conversation with each of them concurrently.
type RoundRunner struct {
	members   MemberLister
	starter   Starter
	channelID string
	fanOut    int
	log       zerolog.Logger
}

func NewRoundRunner(m MemberLister, s Starter, channelID string, fanOut int, log zerolog.Logger) (*RoundRunner, error) {
	if m == nil {
		return nil, errors.New("usecase: member lister must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: starter must not be nil")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, errors.New("usecase: channel id must not be empty")
	}
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	return &RoundRunner{members: m, starter: s, channelID: channelID, fanOut: fanOut, log: log}, nil
}

// Run executes one round. Failures are logged and counted, never returned.
func (r *RoundRunner) Run(ctx context.Context) RoundResult {
	res := RoundResult{RoundID: newRoundID()}
	ctx = WithRoundID(ctx, res.RoundID)
	log := r.log.With().Str("round_id", res.RoundID).Str("channel_id", r.channelID).Logger()

	members, err := r.members.ListMembers(ctx, r.channelID)
	if err != nil {
		merr := newError(ErrorMembership, "list_members_failed", err)
		log.Error().Err(merr).Str("code", string(merr.Code)).Msg("resolve members, skipping round")
		return res
	}
	res.Members = len(members)
	if len(members) == 0 {
		log.Info().Msg("no members to message")
		return res
	}

	var started, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.fanOut)
	for _, userID := range members {
		userID := userID
		g.Go(func() error {
			if err := r.starter.Start(ctx, userID); err != nil {
				failed.Add(1)
				log.Error().Err(err).Str("user_id", userID).Str("code", string(CodeOf(err))).Msg("start conversation")
				return nil
			}
			started.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Started = int(started.Load())
	res.Failed = int(failed.Load())
	log.Info().Int("members", res.Members).Int("started", res.Started).Int("failed", res.Failed).Msg("standup round dispatched")
	return res
}

var newRoundID = func() string {
	return uuid.NewString()
}

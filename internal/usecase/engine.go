package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"standup-bot/internal/domain"
)

// RestartPolicy decides what Start does for a user who is already mid-flow.
type RestartPolicy string

const (
	// RestartReset discards the in-flight answers and asks question 0 again.
	RestartReset RestartPolicy = "reset"
	// RestartReject leaves the in-flight conversation untouched and fails Start.
	RestartReject RestartPolicy = "reject"
)

// DefaultQuestions is the standup question set used when none is configured.
var DefaultQuestions = []string{
	"1️⃣ What did you do yesterday?",
	"2️⃣ What do you plan to do today?",
	"3️⃣ Are you blocked by anything?",
}

// DefaultGreeting opens every conversation before question 0.
const DefaultGreeting = "🌅 Good morning! It's standup time, please share your update for today."

// Gateway delivers messages to users and to the shared channel.
type Gateway interface {
	SendDirect(ctx context.Context, userID, text string) error
	PostToChannel(ctx context.Context, channelID, text string) error
}

// ConversationStore holds the active conversations.
type ConversationStore interface {
	Get(userID string) (domain.Conversation, bool)
	Put(c domain.Conversation)
	Delete(userID string)
}

// ReportArchiver keeps a durable copy of finished reports.
type ReportArchiver interface {
	SaveReport(ctx context.Context, r domain.Report, status string) error
}

// Engine drives each user through the question sequence. All work for one
// user runs under that user's lock, so a Start and an answer for the same
// user never interleave while different users proceed in parallel.
type Engine struct {
	gateway   Gateway
	store     ConversationStore
	archive   ReportArchiver
	locks     *keyedMutex
	channelID string
	questions []string
	greeting  string
	policy    RestartPolicy
	log       zerolog.Logger
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithQuestions replaces DefaultQuestions. The slice is copied.
func WithQuestions(questions []string) EngineOption {
	return func(e *Engine) {
		e.questions = append([]string(nil), questions...)
	}
}

// WithGreeting sets the message sent ahead of question 0. Empty disables it.
func WithGreeting(greeting string) EngineOption {
	return func(e *Engine) {
		e.greeting = greeting
	}
}

func WithRestartPolicy(p RestartPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

func WithArchive(a ReportArchiver) EngineOption {
	return func(e *Engine) {
		e.archive = a
	}
}

func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

func NewEngine(g Gateway, s ConversationStore, channelID string, opts ...EngineOption) (*Engine, error) {
	if g == nil {
		return nil, errors.New("usecase: gateway must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, errors.New("usecase: channel id must not be empty")
	}
	e := &Engine{
		gateway:   g,
		store:     s,
		locks:     newKeyedMutex(),
		channelID: channelID,
		questions: append([]string(nil), DefaultQuestions...),
		greeting:  DefaultGreeting,
		policy:    RestartReset,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.questions) == 0 {
		return nil, errors.New("usecase: at least one question is required")
	}
	for i, q := range e.questions {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("usecase: question %d is empty", i)
		}
	}
	switch e.policy {
	case RestartReset, RestartReject:
	default:
		return nil, fmt.Errorf("usecase: unknown restart policy %q", e.policy)
	}
	return e, nil
}

// Questions returns a copy of the question sequence.
func (e *Engine) Questions() []string {
	return append([]string(nil), e.questions...)
}

// Start opens a conversation for userID and sends question 0. When delivery
// fails the store is left as it was before the call.
func (e *Engine) Start(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return newError(ErrorInvalidInput, "empty_user_id", nil)
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	roundID := RoundIDFromContext(ctx)
	log := e.log.With().Str("user_id", userID).Str("round_id", roundID).Logger()

	existing, active := e.store.Get(userID)
	if active && e.policy == RestartReject {
		log.Info().Int("step", existing.Step).Msg("conversation already active, start rejected")
		return newError(ErrorConversationActive, "conversation_active", nil)
	}

	if e.greeting != "" {
		if err := e.gateway.SendDirect(ctx, userID, e.greeting); err != nil {
			return newError(ErrorDelivery, "greeting_send_failed", err)
		}
	}
	if err := e.gateway.SendDirect(ctx, userID, e.questions[0]); err != nil {
		return newError(ErrorDelivery, "question_send_failed", err)
	}

	if active {
		log.Warn().
			Int("discarded_answers", len(existing.Answers)).
			Str("previous_round_id", existing.RoundID).
			Msg("restarting in-flight conversation")
	}
	e.store.Put(domain.Conversation{
		UserID:    userID,
		RoundID:   roundID,
		Step:      0,
		Answers:   []string{},
		StartedAt: e.now(),
	})
	log.Debug().Msg("conversation started")
	return nil
}

// SubmitAnswer records text as the answer to the user's current question.
// Messages from users without an active conversation are ignored.
func (e *Engine) SubmitAnswer(ctx context.Context, userID, text string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	conv, ok := e.store.Get(userID)
	if !ok {
		return nil
	}

	conv.Answers = append(conv.Answers, text)
	conv.Step++
	log := e.log.With().Str("user_id", userID).Str("round_id", conv.RoundID).Int("step", conv.Step).Logger()

	if conv.Step < len(e.questions) {
		e.store.Put(conv)
		if err := e.gateway.SendDirect(ctx, userID, e.questions[conv.Step]); err != nil {
			return newError(ErrorDelivery, "question_send_failed", err)
		}
		return nil
	}

	defer e.store.Delete(userID)

	report := buildReport(conv, e.questions, e.channelID, e.now())
	postErr := e.gateway.PostToChannel(ctx, e.channelID, report.Text)
	status := domain.ReportPosted
	if postErr != nil {
		status = domain.ReportPostFailed
	}
	if e.archive != nil {
		if err := e.archive.SaveReport(ctx, report, status); err != nil {
			log.Error().Err(err).Str("status", status).Msg("archive report")
		}
	}
	if postErr != nil {
		return newError(ErrorDelivery, "summary_post_failed", postErr)
	}
	log.Info().Str("channel_id", e.channelID).Msg("standup report posted")
	return nil
}

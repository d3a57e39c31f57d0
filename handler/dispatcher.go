package handler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"standup-bot/internal/domain"
	"standup-bot/internal/usecase"
)

// Answerer consumes one inbound message for a user.
type Answerer interface {
	SubmitAnswer(ctx context.Context, userID, text string) error
}

// Dispatcher feeds inbound messages to an Answerer. Messages from the same
// user are processed one at a time in arrival order; different users are
// processed concurrently. A user's worker goroutine exits once its queue is
// empty.
type Dispatcher struct {
	answerer Answerer
	log      zerolog.Logger

	mu      sync.Mutex
	queues  map[string]*userQueue
	closed  bool
	workers sync.WaitGroup
}

type userQueue struct {
	pending []domain.Inbound
}

func NewDispatcher(a Answerer, log zerolog.Logger) (*Dispatcher, error) {
	if a == nil {
		return nil, errors.New("handler: answerer must not be nil")
	}
	return &Dispatcher{
		answerer: a,
		log:      log,
		queues:   make(map[string]*userQueue),
	}, nil
}

// Dispatch queues in for processing. It never blocks on the Answerer and
// returns false once the dispatcher is closed. Workers keep ctx values but not
// its cancellation, so answers queued before shutdown are still delivered
// while Close drains.
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.Inbound) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}

	q, running := d.queues[in.UserID]
	if !running {
		q = &userQueue{}
		d.queues[in.UserID] = q
	}
	q.pending = append(q.pending, in)
	if !running {
		d.workers.Add(1)
		go d.drain(context.WithoutCancel(ctx), in.UserID, q)
	}
	return true
}

// Close stops accepting messages and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) drain(ctx context.Context, userID string, q *userQueue) {
	defer d.workers.Done()
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		in := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		if err := d.answerer.SubmitAnswer(ctx, in.UserID, in.Text); err != nil {
			d.log.Error().
				Err(err).
				Str("user_id", in.UserID).
				Str("code", string(usecase.CodeOf(err))).
				Msg("handle answer")
		}
	}
}

func (d *Dispatcher) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

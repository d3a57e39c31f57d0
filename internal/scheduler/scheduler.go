package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is how often the clock is polled. It is shorter than a
// minute so a late tick cannot skip a whole minute; each minute fires once.
const DefaultInterval = 30 * time.Second

// Action is the work fired at each occurrence.
type Action func(ctx context.Context)

type Scheduler struct {
	occurrences []Occurrence
	action      Action
	clock       Clock
	loc         *time.Location
	interval    time.Duration
	log         zerolog.Logger

	mu        sync.Mutex
	lastFired time.Time
	inflight  sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLocation sets the timezone occurrences are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

func New(occurrences []Occurrence, action Action, opts ...Option) (*Scheduler, error) {
	if len(occurrences) == 0 {
		return nil, errors.New("scheduler: at least one occurrence is required")
	}
	if action == nil {
		return nil, errors.New("scheduler: action must not be nil")
	}
	s := &Scheduler{
		occurrences: append([]Occurrence(nil), occurrences...),
		action:      action,
		clock:       SystemClock{},
		loc:         time.Local,
		interval:    DefaultInterval,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		return nil, errors.New("scheduler: clock must not be nil")
	}
	if s.loc == nil {
		return nil, errors.New("scheduler: location must not be nil")
	}
	if s.interval <= 0 || s.interval > time.Minute {
		return nil, errors.New("scheduler: interval must be in (0, 1m]")
	}
	return s, nil
}

// Due reports whether t falls inside one of the configured minutes.
func (s *Scheduler) Due(t time.Time) bool {
	local := t.In(s.loc)
	for _, o := range s.occurrences {
		if o.matches(local) {
			return true
		}
	}
	return false
}

// Next returns the first occurrence strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	local := t.In(s.loc)
	var best time.Time
	for days := 0; days <= 7; days++ {
		day := local.AddDate(0, 0, days)
		for _, o := range s.occurrences {
			if day.Weekday() != o.Weekday {
				continue
			}
			cand := time.Date(day.Year(), day.Month(), day.Day(), o.Hour, o.Minute, 0, 0, s.loc)
			if cand.After(local) && (best.IsZero() || cand.Before(best)) {
				best = cand
			}
		}
	}
	return best
}

// Run polls the clock until ctx is canceled. Actions run on their own
// goroutines; use Wait to join them after Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().
		Int("occurrences", len(s.occurrences)).
		Str("timezone", s.loc.String()).
		Time("next_run", s.Next(s.clock.Now())).
		Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return nil
		case now := <-ticker.C():
			s.tick(ctx, now)
		}
	}
}

// Wait blocks until every launched action has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if !s.Due(now) {
		return
	}
	minute := now.In(s.loc).Truncate(time.Minute)

	s.mu.Lock()
	if minute.Equal(s.lastFired) {
		s.mu.Unlock()
		return
	}
	s.lastFired = minute
	s.mu.Unlock()

	s.log.Info().Time("slot", minute).Msg("firing scheduled action")
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.action(ctx)
	}()
}

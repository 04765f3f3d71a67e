// Package scheduler decides whether a collection session may start right
// now. The rules keep the account's activity looking like a person: random
// skips, night blackout, one long daytime break, a daily session cap and a
// minimum gap between sessions.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"ignetwork/pkg/config"
	"ignetwork/pkg/logger"
	"ignetwork/pkg/store"
)

// Decision is the scheduler's verdict for this instant.
type Decision struct {
	// Proceed permits a session to start now.
	Proceed bool
	// SleepHint is how long the caller should wait before asking again.
	// Zero when Proceed is true.
	SleepHint time.Duration
	// Reason names the rule that decided.
	Reason string
}

// Rule reasons surfaced in Decision and logs.
const (
	ReasonOK             = "ok"
	ReasonStochasticSkip = "stochastic_skip"
	ReasonBlackout       = "blackout"
	ReasonDailyCap       = "daily_cap"
	ReasonMinGap         = "min_gap"
	ReasonCancelled      = "cancelled"
)

// Scheduler evaluates the session rules against the persisted run status.
// The clock, randomness and sleeping are injectable so tests control them.
type Scheduler struct {
	cfg    config.ScheduleConfig
	status *store.StatusStore

	now       func() time.Time
	randFloat func() float64
	randInt   func(n int) int
	sleep     func(context.Context, time.Duration) error

	logger logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRand replaces the random sources.
func WithRand(randFloat func() float64, randInt func(n int) int) Option {
	return func(s *Scheduler) {
		s.randFloat = randFloat
		s.randInt = randInt
	}
}

// WithSleep replaces the blocking sleep used for the daily rest window.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// New creates a Scheduler over the given status store.
func New(cfg config.ScheduleConfig, status *store.StatusStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		status:    status,
		now:       time.Now,
		randFloat: rand.Float64,
		randInt:   rand.Intn,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MayRun evaluates the rules in order and returns the verdict. The daily
// rest window is special: when it is due, MayRun blocks through it before
// evaluating the remaining rules. Missing or corrupt status reads as
// "never ran" and is permissive.
func (s *Scheduler) MayRun(ctx context.Context) Decision {
	now := s.now()
	status := s.status.Load()

	if status.RolloverIfNewDay(now) {
		s.logger.WithField("date", status.Date).Info("New day, session counters reset")
		s.saveStatus(status)
	}

	// Rule 1: stochastic skip. The wait is a doubled session gap, the way
	// a person who wandered off stays away a while.
	if s.randFloat() < s.cfg.SkipChance {
		hint := 2 * s.cfg.MinInterval
		if span := s.cfg.MaxInterval - s.cfg.MinInterval; span > 0 {
			hint += 2 * time.Duration(s.randFloat()*float64(span))
		}
		return s.refuse(ReasonStochasticSkip, hint)
	}

	// Rule 2: blackout hours.
	if hour := now.Hour(); hour >= s.cfg.BlackoutStartHour && hour < s.cfg.BlackoutEndHour {
		end := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.BlackoutEndHour, 0, 0, 0, now.Location())
		return s.refuse(ReasonBlackout, end.Sub(now))
	}

	// Rule 3: once-daily rest window, blocking.
	if done := s.maybeRest(ctx, now, status); !done {
		return Decision{Proceed: false, SleepHint: s.cfg.MinInterval, Reason: ReasonCancelled}
	}
	now = s.now()

	// Rule 4: daily session cap.
	if status.Sessions >= s.cfg.MaxSessionsPerDay {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
		return s.refuse(ReasonDailyCap, midnight.Sub(now))
	}

	// Rule 5: minimum gap between sessions.
	if !status.LastRun.IsZero() {
		if gap := now.Sub(status.LastRun); gap < s.cfg.MinInterval {
			return s.refuse(ReasonMinGap, s.cfg.MinInterval-gap)
		}
	}

	return Decision{Proceed: true, Reason: ReasonOK}
}

// Ran records a session start: bumps the day counter and the last-run
// timestamp.
func (s *Scheduler) Ran() error {
	now := s.now()
	status := s.status.Load()
	status.RolloverIfNewDay(now)
	status.Sessions++
	status.LastRun = now
	return s.status.Save(status)
}

// SessionGap draws the randomized wait between sessions; one in five waits
// is drawn from a doubled range to break up the rhythm.
func (s *Scheduler) SessionGap() time.Duration {
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	gap := s.cfg.MinInterval
	if span > 0 {
		gap += time.Duration(s.randFloat() * float64(span))
	}
	if s.randFloat() < 0.2 {
		gap *= 2
	}
	return gap
}

// maybeRest takes the daily rest window when the current time falls into
// it. The window's start hour is drawn once per day and persisted, so a
// restart does not redraw it. Returns false only when the sleep was
// interrupted.
func (s *Scheduler) maybeRest(ctx context.Context, now time.Time, status *store.RunStatus) bool {
	if status.NaturalBreakTaken || s.cfg.BreakLength <= 0 {
		return true
	}

	if status.BreakHourMin == 0 && status.BreakHourMax == 0 {
		span := s.cfg.BreakLatestHour - s.cfg.BreakEarliestHour
		start := s.cfg.BreakEarliestHour
		if span > 0 {
			start += s.randInt(span + 1)
		}
		status.BreakHourMin = start
		status.BreakHourMax = start + s.cfg.BreakWindowHours
		s.saveStatus(status)
	}

	hour := now.Hour()
	if hour < status.BreakHourMin || hour >= status.BreakHourMax {
		return true
	}

	length := s.cfg.BreakLength
	if s.cfg.BreakJitter > 0 {
		length += time.Duration(s.randFloat() * float64(s.cfg.BreakJitter))
	}

	// Mark the break before sleeping so a crash mid-break does not repeat it.
	status.NaturalBreakTaken = true
	s.saveStatus(status)

	s.logger.WithField("length", length).Info("Taking the daily rest window")
	if err := s.sleep(ctx, length); err != nil {
		return false
	}
	return true
}

func (s *Scheduler) refuse(reason string, hint time.Duration) Decision {
	s.logger.WithFields(map[string]interface{}{
		"reason": reason,
		"wait":   hint,
	}).Info("Session refused")
	return Decision{Proceed: false, SleepHint: hint, Reason: reason}
}

func (s *Scheduler) saveStatus(status *store.RunStatus) {
	if err := s.status.Save(status); err != nil {
		s.logger.WithError(err).Warn("Could not persist run status")
	}
}

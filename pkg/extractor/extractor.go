// Package extractor walks a relationship list to exhaustion. It decides
// when the list is genuinely finished versus wedged or throttled, backing
// off and refreshing the page in the latter cases.
package extractor

import (
	"context"
	"time"

	"ignetwork/pkg/browser"
	"ignetwork/pkg/logger"
	"ignetwork/pkg/ratelimit"
	"ignetwork/pkg/retry"
)

// StopReason explains why an extraction ended.
type StopReason string

const (
	// StopComplete: the recovered set reached the advertised total.
	StopComplete StopReason = "complete"
	// StopCloseEnough: the list wedged but close enough to the advertised
	// total to accept.
	StopCloseEnough StopReason = "close_enough"
	// StopEndOfList: the list stopped producing new identifiers and
	// patience ran out.
	StopEndOfList StopReason = "end_of_list"
	// StopStuck: the list wedged well short of the total even after a
	// refresh.
	StopStuck StopReason = "stuck"
	// StopPageBudget: the per-session page budget was exhausted.
	StopPageBudget StopReason = "page_budget"
	// StopEmptyList: the profile advertises zero entries.
	StopEmptyList StopReason = "empty_list"
)

// Config holds the extraction thresholds. Zero values are replaced with
// the defaults below.
type Config struct {
	// MaxPages bounds FetchMore rounds per extraction.
	MaxPages int
	// DefaultListTotal stands in for the advertised total when the page
	// did not expose one.
	DefaultListTotal int
	// StuckWindow is how many recent recovered-set sizes to remember.
	StuckWindow int
	// StuckRepeats: a size seen more than this many times inside the
	// window means the list is wedged.
	StuckRepeats int
	// PerRequestCap: a fetch yielding exactly this many new identifiers
	// twice in a row is read as throttling.
	PerRequestCap int
	// Patience is how many consecutive no-new rounds end the list. It is
	// doubled when resuming with prior identifiers, since the early rounds
	// re-serve what is already known.
	Patience int
	// CloseEnoughRatio and CloseEnoughSlack define when a wedged list is
	// accepted as complete.
	CloseEnoughRatio float64
	CloseEnoughSlack int
	// BackoffBase and BackoffMax bound the throttle backoff.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.DefaultListTotal <= 0 {
		c.DefaultListTotal = 100
	}
	if c.StuckWindow <= 0 {
		c.StuckWindow = 20
	}
	if c.StuckRepeats <= 0 {
		c.StuckRepeats = 8
	}
	if c.PerRequestCap <= 0 {
		c.PerRequestCap = 12
	}
	if c.Patience <= 0 {
		c.Patience = 6
	}
	if c.CloseEnoughRatio <= 0 {
		c.CloseEnoughRatio = 0.8
	}
	if c.CloseEnoughSlack <= 0 {
		c.CloseEnoughSlack = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 30 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Minute
	}
}

// Result is what one extraction call produced.
type Result struct {
	// Identifiers is the full recovered set, prior identifiers included,
	// in first-seen order.
	Identifiers []string
	// Cursor is the handle's final position, informational only.
	Cursor string
	// Pages is how many FetchMore rounds ran.
	Pages int
	// Backoffs is how many throttle backoffs were taken.
	Backoffs int
	// Stopped explains why extraction ended.
	Stopped StopReason
}

// State carries throttle attempt counters across extractions of the same
// account, so repeated throttling within one visit keeps escalating the
// backoff instead of starting over per list.
type State struct {
	attempts map[browser.ListKind]int
}

// NewState returns an empty extraction state.
func NewState() *State {
	return &State{attempts: make(map[browser.ListKind]int)}
}

func (s *State) bump(kind browser.ListKind) int {
	if s.attempts == nil {
		s.attempts = make(map[browser.ListKind]int)
	}
	s.attempts[kind]++
	return s.attempts[kind]
}

func (s *State) reset(kind browser.ListKind) {
	delete(s.attempts, kind)
}

// Extractor runs the list-walking algorithm.
type Extractor struct {
	cfg     Config
	limiter ratelimit.Limiter
	backoff retry.BackoffStrategy
	sleep   func(context.Context, time.Duration) error
	logger  logger.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLimiter paces FetchMore calls through the given limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Extractor) { e.limiter = l }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Extractor) { e.sleep = fn }
}

// New creates an Extractor.
func New(cfg Config, opts ...Option) *Extractor {
	cfg.defaults()
	e := &Extractor{
		cfg: cfg,
		backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.BackoffBase,
			MaxDelay:     cfg.BackoffMax,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		sleep:  retry.Wait,
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract walks the list behind handle until it is complete, exhausted or
// wedged. alreadyKnown seeds the recovered set when resuming a previous
// visit. A non-nil error still carries the partial result.
func (e *Extractor) Extract(ctx context.Context, handle browser.ListHandle, kind browser.ListKind, alreadyKnown []string, state *State) (Result, error) {
	if state == nil {
		state = NewState()
	}

	log := e.logger.WithField("list", string(kind))

	total := handle.AdvertisedTotal()
	target := total
	if total == browser.UnknownTotal {
		target = e.cfg.DefaultListTotal
		log.Debug("Advertised total unknown, using conservative target")
	}
	if total == 0 {
		return Result{Stopped: StopEmptyList}, nil
	}

	recovered := make([]string, 0, len(alreadyKnown)+target)
	known := make(map[string]struct{}, len(alreadyKnown))
	for _, id := range alreadyKnown {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		recovered = append(recovered, id)
	}

	patience := e.cfg.Patience
	if len(alreadyKnown) > 0 {
		// Resumed lists re-serve known identifiers for a while before
		// reaching new territory.
		patience *= 2
	}

	result := Result{}
	var sizes []int
	noNew := 0
	capStreak := 0
	refreshed := false

	for result.Pages < e.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			result.Identifiers = recovered
			result.Cursor = handle.Cursor()
			return result, err
		}

		if e.limiter != nil {
			e.limiter.Wait()
		}

		batch, err := handle.FetchMore(ctx)
		result.Pages++

		newCount := 0
		for _, id := range batch {
			if id == "" {
				continue
			}
			if _, ok := known[id]; ok {
				continue
			}
			known[id] = struct{}{}
			recovered = append(recovered, id)
			newCount++
		}

		if err != nil {
			result.Identifiers = recovered
			result.Cursor = handle.Cursor()
			return result, err
		}

		sizes = append(sizes, len(recovered))
		if len(sizes) > e.cfg.StuckWindow {
			sizes = sizes[1:]
		}

		if newCount > 0 {
			noNew = 0
		} else {
			noNew++
		}

		// Exactly the cap twice in a row reads as throttling, not a
		// naturally short page.
		if newCount == e.cfg.PerRequestCap {
			capStreak++
		} else {
			capStreak = 0
		}
		if capStreak >= 2 {
			attempt := state.bump(kind)
			delay := e.backoff.NextDelay(attempt)
			log.WarnWithFields("Throttling suspected, backing off", map[string]interface{}{
				"attempt": attempt,
				"wait":    delay,
			})
			result.Backoffs++
			if err := e.sleep(ctx, delay); err != nil {
				result.Identifiers = recovered
				result.Cursor = handle.Cursor()
				return result, err
			}
			if err := handle.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Refresh after throttle backoff failed")
			}
			capStreak = 0
			continue
		}

		if total > 0 && len(recovered) >= total {
			state.reset(kind)
			result.Stopped = StopComplete
			break
		}

		if e.isStuck(sizes) {
			if e.closeEnough(len(recovered), total) {
				state.reset(kind)
				result.Stopped = StopCloseEnough
				break
			}
			if !refreshed {
				log.WithField("recovered", len(recovered)).Info("List wedged, refreshing once")
				if err := handle.Refresh(ctx); err != nil {
					log.WithError(err).Warn("Refresh of wedged list failed")
				}
				refreshed = true
				sizes = nil
				noNew = 0
				continue
			}
			result.Stopped = StopStuck
			break
		}

		if noNew > patience {
			state.reset(kind)
			result.Stopped = StopEndOfList
			break
		}
	}

	if result.Stopped == "" {
		result.Stopped = StopPageBudget
	}

	result.Identifiers = recovered
	result.Cursor = handle.Cursor()

	log.InfoWithFields("Extraction finished", map[string]interface{}{
		"recovered":  len(recovered),
		"advertised": total,
		"pages":      result.Pages,
		"stopped":    string(result.Stopped),
	})

	return result, nil
}

// isStuck reports whether any recovered-set size repeats more than
// StuckRepeats times inside the sliding window.
func (e *Extractor) isStuck(sizes []int) bool {
	counts := make(map[int]int, len(sizes))
	for _, n := range sizes {
		counts[n]++
		if counts[n] > e.cfg.StuckRepeats {
			return true
		}
	}
	return false
}

// closeEnough accepts a wedged list when it holds at least the configured
// share of the advertised total, or falls within the absolute slack.
func (e *Extractor) closeEnough(got, total int) bool {
	if total <= 0 {
		return false
	}
	if got >= int(float64(total)*e.cfg.CloseEnoughRatio) {
		return true
	}
	return total-got <= e.cfg.CloseEnoughSlack
}

// Package collector processes one account end to end: progress check, size
// gate, list extraction, edge merge and progress record.
package collector

import (
	"context"
	"time"

	"ignetwork/pkg/browser"
	"ignetwork/pkg/extractor"
	"ignetwork/pkg/logger"
	"ignetwork/pkg/queue"
	"ignetwork/pkg/store"
)

// Outcome classifies what a Process call did with the account.
type Outcome string

const (
	// OutcomeDone: lists extracted and persisted, or the account already
	// had a complete record.
	OutcomeDone Outcome = "done"
	// OutcomeSkipped: over the size ceiling, recorded without extraction.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRateLimited: persisted, but the retrieved counts look
	// throttled; the account stays eligible for a later revisit.
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeFailed: a transient failure, nothing recorded as processed.
	OutcomeFailed Outcome = "failed"
)

// Hook observes extraction without changing it. Either callback may be nil.
type Hook struct {
	BeforeExtract func(username string, kind browser.ListKind)
	AfterExtract  func(username string, kind browser.ListKind, result extractor.Result, err error)
}

// Config holds collector tunables.
type Config struct {
	// FollowerCeiling and FollowingCeiling gate out oversized accounts.
	// An account over either ceiling is recorded as skipped without a
	// single list fetch.
	FollowerCeiling  int
	FollowingCeiling int

	// FetchFollowers and FetchFollowing select which lists to walk.
	FetchFollowers bool
	FetchFollowing bool

	// PerRequestCap feeds the throttle inference: retrieving no more than
	// the cap from a list advertising more than twice the cap means the
	// session stopped being served.
	PerRequestCap int
}

func (c *Config) defaults() {
	if c.FollowerCeiling <= 0 {
		c.FollowerCeiling = 2000
	}
	if c.FollowingCeiling <= 0 {
		c.FollowingCeiling = 2000
	}
	if c.PerRequestCap <= 0 {
		c.PerRequestCap = 12
	}
}

// Collector runs accounts through extraction and persistence.
type Collector struct {
	cfg      Config
	session  browser.Session
	ext      *extractor.Extractor
	progress *store.ProgressStore
	edges    *store.EdgeStore
	pending  *queue.Queue
	hook     *Hook
	logger   logger.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithHook installs instrumentation callbacks around extraction.
func WithHook(h *Hook) Option {
	return func(c *Collector) { c.hook = h }
}

// WithQueue makes the collector enqueue each extracted following as a new
// pending account, growing the frontier.
func WithQueue(q *queue.Queue) Option {
	return func(c *Collector) { c.pending = q }
}

// New creates a Collector bound to a live session.
func New(cfg Config, session browser.Session, ext *extractor.Extractor, progress *store.ProgressStore, edges *store.EdgeStore, opts ...Option) *Collector {
	cfg.defaults()
	c := &Collector{
		cfg:      cfg,
		session:  session,
		ext:      ext,
		progress: progress,
		edges:    edges,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process visits one account. Transient failures return OutcomeFailed
// without touching the progress record, so the account can be retried.
func (c *Collector) Process(ctx context.Context, username string) (Outcome, error) {
	log := c.logger.WithField("account", username)

	if rec, ok := c.progress.Get(username); ok && rec.Complete() {
		log.Debug("Already processed, nothing to do")
		return OutcomeDone, nil
	}

	// Counts are best effort: an unreadable header falls back to zero,
	// which keeps a list whose size is unknown from being walked.
	counts, err := c.session.SummaryCounts(ctx, username)
	if err != nil {
		log.WithError(err).Warn("Could not read profile counts")
		counts = browser.Counts{}
	}

	if counts.Followers > c.cfg.FollowerCeiling || counts.Following > c.cfg.FollowingCeiling {
		rec := store.AccountRecord{
			Processed:      true,
			Skipped:        true,
			FollowersCount: counts.Followers,
			FollowingCount: counts.Following,
			Timestamp:      time.Now(),
		}
		if err := c.progress.Record(username, rec); err != nil {
			return OutcomeFailed, err
		}
		logger.LogAccount(username, string(OutcomeSkipped), counts.Followers, counts.Following)
		return OutcomeSkipped, nil
	}

	state := extractor.NewState()
	rec := store.AccountRecord{
		Processed:      true,
		FollowersCount: counts.Followers,
		FollowingCount: counts.Following,
		Timestamp:      time.Now(),
	}

	var edges []store.Edge
	var discovered []string

	// Lists are walked one after the other, never interleaved. A kind
	// whose count is zero or unreadable is not walked at all.
	for _, kind := range c.wantedKinds() {
		if counts.Count(kind) <= 0 {
			continue
		}
		result, err := c.extractList(ctx, username, kind, state)
		if err != nil {
			log.WithError(err).WithField("list", string(kind)).Error("List extraction failed")
			return OutcomeFailed, err
		}

		if kind == browser.ListFollowers {
			rec.FollowersRetrieved = len(result.Identifiers)
			for _, follower := range result.Identifiers {
				edges = append(edges, store.Edge{Source: follower, Target: username})
			}
		} else {
			rec.FollowingRetrieved = len(result.Identifiers)
			for _, followed := range result.Identifiers {
				edges = append(edges, store.Edge{Source: username, Target: followed})
				discovered = append(discovered, followed)
			}
		}

		if c.throttled(len(result.Identifiers), counts.Count(kind)) {
			rec.RateLimited = true
		}
	}

	if err := c.progress.Record(username, rec); err != nil {
		return OutcomeFailed, err
	}

	added, err := c.edges.Merge(ctx, edges)
	if err != nil {
		return OutcomeFailed, err
	}
	logger.LogStorage(store.EdgeFileName, added, len(edges))

	if c.pending != nil && len(discovered) > 0 {
		links := make([]string, 0, len(discovered))
		for _, name := range discovered {
			links = append(links, queue.ProfileURL(name))
		}
		if _, err := c.pending.Append(ctx, links); err != nil {
			log.WithError(err).Warn("Could not enqueue discovered accounts")
		}
	}

	outcome := OutcomeDone
	if rec.RateLimited {
		outcome = OutcomeRateLimited
	}
	logger.LogAccount(username, string(outcome), rec.FollowersRetrieved, rec.FollowingRetrieved)
	return outcome, nil
}

func (c *Collector) wantedKinds() []browser.ListKind {
	var kinds []browser.ListKind
	if c.cfg.FetchFollowers {
		kinds = append(kinds, browser.ListFollowers)
	}
	if c.cfg.FetchFollowing {
		kinds = append(kinds, browser.ListFollowing)
	}
	return kinds
}

func (c *Collector) extractList(ctx context.Context, username string, kind browser.ListKind, state *extractor.State) (extractor.Result, error) {
	if c.hook != nil && c.hook.BeforeExtract != nil {
		c.hook.BeforeExtract(username, kind)
	}

	handle, err := c.session.OpenList(ctx, username, kind)
	if err != nil {
		if c.hook != nil && c.hook.AfterExtract != nil {
			c.hook.AfterExtract(username, kind, extractor.Result{}, err)
		}
		return extractor.Result{}, err
	}
	defer handle.Close()

	result, err := c.ext.Extract(ctx, handle, kind, nil, state)

	if c.hook != nil && c.hook.AfterExtract != nil {
		c.hook.AfterExtract(username, kind, result, err)
	}
	return result, err
}

// throttled reads a suspiciously small harvest from a large list as the
// session having been cut off rather than the list ending.
func (c *Collector) throttled(retrieved, advertised int) bool {
	return advertised > 2*c.cfg.PerRequestCap && retrieved <= c.cfg.PerRequestCap
}

// Package driver runs the long-lived collection loop: gate on the
// scheduler, authenticate, refresh the root account, then push a batch of
// queued accounts through the collector.
package driver

import (
	"context"
	"math/rand"
	"time"

	"ignetwork/pkg/auth"
	"ignetwork/pkg/browser"
	"ignetwork/pkg/collector"
	"ignetwork/pkg/config"
	errs "ignetwork/pkg/errors"
	"ignetwork/pkg/extractor"
	"ignetwork/pkg/logger"
	"ignetwork/pkg/queue"
	"ignetwork/pkg/ratelimit"
	"ignetwork/pkg/scheduler"
	"ignetwork/pkg/store"
)

// Driver owns one collection deployment: a browser, the stores and the
// scheduler, bound to a single root account.
type Driver struct {
	cfg     *config.Config
	browser browser.Browser
	account *auth.Account

	sched     *scheduler.Scheduler
	ext       *extractor.Extractor
	progress  *store.ProgressStore
	edges     *store.EdgeStore
	status    *store.StatusStore
	rootLists *store.RootListStore
	pending   *queue.Queue

	hook    *collector.Hook
	randInt func(n int) int
	sleep   func(context.Context, time.Duration) error

	logger logger.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithHook forwards instrumentation callbacks to every collector.
func WithHook(h *collector.Hook) Option {
	return func(d *Driver) { d.hook = h }
}

// WithRand replaces the batch-size randomness, for tests.
func WithRand(randInt func(n int) int) Option {
	return func(d *Driver) { d.randInt = randInt }
}

// WithSleep replaces every wait the driver takes, for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(d *Driver) { d.sleep = fn }
}

// WithScheduler replaces the scheduler built from config, for tests.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(d *Driver) { d.sched = s }
}

// New wires a Driver from config. The browser and account come from the
// caller so the CLI can choose between the real browser and the fake.
func New(cfg *config.Config, b browser.Browser, account *auth.Account, opts ...Option) *Driver {
	dataDir := cfg.Storage.DataDir
	status := store.NewStatusStore(dataDir)

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)

	d := &Driver{
		cfg:     cfg,
		browser: b,
		account: account,
		sched:   scheduler.New(cfg.Schedule, status),
		ext: extractor.New(extractor.Config{
			MaxPages:         cfg.Extract.MaxPages,
			DefaultListTotal: cfg.Extract.DefaultListTotal,
			StuckWindow:      cfg.Extract.StuckWindow,
			StuckRepeats:     cfg.Extract.StuckRepeats,
			PerRequestCap:    cfg.Extract.PerRequestCap,
			Patience:         cfg.Extract.Patience,
			CloseEnoughRatio: cfg.Extract.CloseEnoughRatio,
			CloseEnoughSlack: cfg.Extract.CloseEnoughSlack,
			BackoffBase:      cfg.Extract.BackoffBase,
			BackoffMax:       cfg.Extract.BackoffMax,
		}, extractor.WithLimiter(limiter)),
		progress:  store.NewProgressStore(dataDir),
		edges:     store.NewEdgeStore(dataDir),
		status:    status,
		rootLists: store.NewRootListStore(dataDir),
		pending:   queue.New(dataDir),
		randInt:   rand.Intn,
		sleep: func(ctx context.Context, wait time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				return nil
			}
		},
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run loops until the context is cancelled or authentication fails.
// Everything else is logged and survived.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.WithField("account", d.account.Username).Info("Collection loop starting")

	for {
		if err := ctx.Err(); err != nil {
			d.logger.Info("Shutting down cleanly")
			return nil
		}

		decision := d.sched.MayRun(ctx)
		if !decision.Proceed {
			if err := d.sleep(ctx, decision.SleepHint); err != nil {
				d.logger.Info("Shutting down cleanly")
				return nil
			}
			continue
		}

		if err := d.RunSession(ctx); err != nil {
			if errs.IsAuth(err) {
				d.logger.WithError(err).Error("Authentication failed, stopping")
				return err
			}
			if ctx.Err() != nil {
				d.logger.Info("Shutting down cleanly")
				return nil
			}
			d.logger.WithError(err).Error("Session failed, will retry after the usual gap")
		}

		if err := d.sleep(ctx, d.sched.SessionGap()); err != nil {
			d.logger.Info("Shutting down cleanly")
			return nil
		}
	}
}

// RunSession executes exactly one session: authenticate, refresh the root
// account, reconcile the queue and work through one batch.
func (d *Driver) RunSession(ctx context.Context) error {
	session, err := d.browser.Authenticate(ctx, d.account)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := d.sched.Ran(); err != nil {
		d.logger.WithError(err).Warn("Could not record session start")
	}

	status := d.status.Load()
	batchSize := d.batchSize()
	logger.LogSessionStart(status.Sessions, batchSize)
	start := time.Now()

	if err := d.refreshRoot(ctx, session); err != nil {
		if errs.IsAuth(err) {
			return err
		}
		d.logger.WithError(err).Warn("Root refresh failed, continuing with the queue")
	}

	if _, err := d.pending.Reconcile(ctx, d.progress.CompletedSet()); err != nil {
		d.logger.WithError(err).Warn("Queue reconciliation failed")
	}

	processed, failed, err := d.runBatch(ctx, session, batchSize)
	logger.LogSessionEnd(d.status.Load().Sessions, processed, failed, time.Since(start))
	return err
}

func (d *Driver) batchSize() int {
	lo, hi := d.cfg.Collector.BatchMin, d.cfg.Collector.BatchMax
	if hi <= lo {
		return lo
	}
	return lo + d.randInt(hi-lo+1)
}

// refreshRoot updates the root account's advertised totals and, when its
// own lists are incomplete, extracts them: followers and following land in
// their JSON lists, edges go to the edge file and every account the root
// follows is queued for a visit.
func (d *Driver) refreshRoot(ctx context.Context, session browser.Session) error {
	root := d.account.Username

	counts, err := session.SummaryCounts(ctx, root)
	if err != nil {
		return err
	}

	status := d.status.Load()
	if counts.Followers != browser.UnknownTotal {
		status.TotalFollowers = counts.Followers
	}
	if counts.Following != browser.UnknownTotal {
		status.TotalFollowing = counts.Following
	}
	if err := d.status.Save(status); err != nil {
		d.logger.WithError(err).Warn("Could not persist run status")
	}

	state := extractor.NewState()
	for _, kind := range []browser.ListKind{browser.ListFollowers, browser.ListFollowing} {
		existing := d.rootLists.Load(kind)
		if d.rootListComplete(len(existing), counts.Count(kind)) {
			continue
		}

		handle, err := session.OpenList(ctx, root, kind)
		if err != nil {
			return err
		}
		result, err := d.ext.Extract(ctx, handle, kind, existing, state)
		handle.Close()
		if err != nil {
			return err
		}

		if _, err := d.rootLists.Merge(kind, result.Identifiers); err != nil {
			return err
		}

		var edges []store.Edge
		var links []string
		for _, name := range result.Identifiers {
			if kind == browser.ListFollowers {
				edges = append(edges, store.Edge{Source: name, Target: root})
			} else {
				edges = append(edges, store.Edge{Source: root, Target: name})
				links = append(links, queue.ProfileURL(name))
			}
		}
		if _, err := d.edges.Merge(ctx, edges); err != nil {
			return err
		}
		if len(links) > 0 {
			if _, err := d.pending.Append(ctx, links); err != nil {
				return err
			}
		}
	}

	return nil
}

// rootListComplete decides whether the stored root list still needs work.
// With an unknown advertised total, a non-empty stored list is trusted.
func (d *Driver) rootListComplete(stored, advertised int) bool {
	if advertised == browser.UnknownTotal {
		return stored > 0
	}
	if advertised == 0 {
		return true
	}
	return stored >= int(float64(advertised)*d.cfg.Extract.CloseEnoughRatio)
}

// runBatch pulls up to batchSize accounts off the queue head. Transient
// failures go back to the tail; auth failures abort the session.
func (d *Driver) runBatch(ctx context.Context, session browser.Session, batchSize int) (processed, failed int, err error) {
	col := collector.New(collector.Config{
		FollowerCeiling:  d.cfg.Collector.FollowerCeiling,
		FollowingCeiling: d.cfg.Collector.FollowingCeiling,
		FetchFollowers:   d.cfg.Collector.FetchFollowers,
		FetchFollowing:   d.cfg.Collector.FetchFollowing,
		PerRequestCap:    d.cfg.Extract.PerRequestCap,
	}, session, d.ext, d.progress, d.edges,
		collector.WithQueue(d.pending),
		collector.WithHook(d.hook))

	for i := 0; i < batchSize; i++ {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}

		link, ok, err := d.pending.Pop(ctx)
		if err != nil {
			return processed, failed, err
		}
		if !ok {
			d.logger.Info("Queue empty, ending batch early")
			return processed, failed, nil
		}

		username := queue.Username(link)
		outcome, err := col.Process(ctx, username)
		if err != nil {
			if errs.IsAuth(err) {
				return processed, failed, err
			}
			failed++
			if qerr := d.pending.PushTail(ctx, link); qerr != nil {
				d.logger.WithError(qerr).WithField("link", link).Warn("Could not requeue failed account")
			}
		} else if outcome != collector.OutcomeSkipped {
			processed++
		}

		if i < batchSize-1 {
			if err := d.sleep(ctx, d.cfg.Collector.AccountDelay); err != nil {
				return processed, failed, err
			}
		}
	}

	return processed, failed, nil
}

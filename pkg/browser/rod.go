package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"ignetwork/pkg/auth"
	errs "ignetwork/pkg/errors"
	"ignetwork/pkg/logger"
	"ignetwork/pkg/retry"
)

const (
	baseURL  = "https://www.instagram.com"
	loginURL = baseURL + "/accounts/login/"
)

// Config configures the rod-backed browser.
type Config struct {
	// Headless runs Chrome without a visible window. Default true.
	Headless bool

	// NavTimeout bounds every navigation and dialog interaction.
	NavTimeout time.Duration

	// ScrollPause is the wait after each list scroll, giving the page time
	// to render the next chunk.
	ScrollPause time.Duration

	Logger logger.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}
}

// navRetryConfig is the policy for page navigations: a few attempts with
// a short exponential backoff, and only transient failures retried.
func navRetryConfig(ctx context.Context, log logger.Logger) *retry.Config {
	return &retry.Config{
		MaxAttempts: 3,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  log,
	}
}

// dialogRetryConfig is the policy for dialog interactions, which fail
// transiently while the page is still rendering. A flat pause is enough.
func dialogRetryConfig(ctx context.Context, log logger.Logger) *retry.Config {
	return &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      log,
	}
}

// Rod drives a local Chrome via go-rod with stealth patches applied.
type Rod struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRod launches Chrome and connects to it.
func NewRod(cfg Config) (*Rod, error) {
	cfg.defaults()

	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "chrome launch failed", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, errs.Wrap(errs.ErrorTypeNavigation, "chrome connect failed", err)
	}

	cfg.Logger.WithField("headless", cfg.Headless).Info("Browser launched")

	return &Rod{cfg: cfg, browser: b, lnch: l}, nil
}

// Authenticate opens a stealth page, submits the login form and verifies
// the session landed past the login wall.
func (r *Rod) Authenticate(ctx context.Context, account *auth.Account) (Session, error) {
	page, err := retry.DoWithResult(func() (*rod.Page, error) {
		p, err := stealth.Page(r.browser)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNavigation, "failed to open page", err)
		}
		return p, nil
	}, navRetryConfig(ctx, r.cfg.Logger))
	if err != nil {
		return nil, err
	}

	if account.UserAgent != "" {
		override := proto.NetworkSetUserAgentOverride{UserAgent: account.UserAgent}
		if err := page.SetUserAgent(&override); err != nil {
			r.cfg.Logger.WithError(err).Warn("User agent override failed")
		}
	}

	if err := r.navigate(ctx, page, loginURL); err != nil {
		page.Close()
		return nil, err
	}

	userField, ok := locateFirst(ctx, page, loginSelectors.username)
	if !ok {
		page.Close()
		return nil, errs.New(errs.ErrorTypeTransientUI, "login form not found")
	}
	passField, ok := locateFirst(ctx, page, loginSelectors.password)
	if !ok {
		page.Close()
		return nil, errs.New(errs.ErrorTypeTransientUI, "password field not found")
	}

	if err := rod.Try(func() {
		userField.MustInput(account.Username)
		passField.MustInput(account.Password)
	}); err != nil {
		page.Close()
		return nil, errs.Wrap(errs.ErrorTypeTransientUI, "failed to fill login form", err)
	}

	submit, ok := locateFirst(ctx, page, loginSelectors.submit)
	if !ok {
		page.Close()
		return nil, errs.New(errs.ErrorTypeTransientUI, "login submit button not found")
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		page.Close()
		return nil, errs.Wrap(errs.ErrorTypeTransientUI, "login submit failed", err)
	}

	if err := r.settle(ctx, page); err != nil {
		page.Close()
		return nil, err
	}

	if info, err := page.Info(); err == nil && strings.Contains(info.URL, "/accounts/login") {
		page.Close()
		return nil, errs.New(errs.ErrorTypeAuth, fmt.Sprintf("login rejected for %s", account.Username))
	}

	r.cfg.Logger.WithField("username", account.Username).Info("Authenticated")

	return &rodSession{page: page, cfg: r.cfg}, nil
}

// Close tears down Chrome.
func (r *Rod) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}

func (r *Rod) navigate(ctx context.Context, page *rod.Page, url string) error {
	return retry.Do(func() error {
		navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
		defer cancel()

		if err := page.Context(navCtx).Navigate(url); err != nil {
			return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("navigate %s failed", url), err)
		}
		if err := page.Context(navCtx).WaitLoad(); err != nil {
			r.cfg.Logger.WithError(err).WithField("url", url).Warn("Page load wait timed out")
		}
		return nil
	}, navRetryConfig(ctx, r.cfg.Logger))
}

func (r *Rod) settle(ctx context.Context, page *rod.Page) error {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
	defer cancel()
	if err := page.Context(waitCtx).WaitLoad(); err != nil && waitCtx.Err() == nil {
		return errs.Wrap(errs.ErrorTypeNavigation, "page did not settle", err)
	}
	return nil
}

type rodSession struct {
	page *rod.Page
	cfg  Config
}

func (s *rodSession) SummaryCounts(ctx context.Context, username string) (Counts, error) {
	if err := s.gotoProfile(ctx, username); err != nil {
		return Counts{}, err
	}

	counts := Counts{Followers: UnknownTotal, Following: UnknownTotal}
	for _, kind := range []ListKind{ListFollowers, ListFollowing} {
		text, ok := textByChain(ctx, s.page, countSelectors[kind])
		if !ok {
			continue
		}
		n, ok := parseCount(text)
		if !ok {
			continue
		}
		if kind == ListFollowers {
			counts.Followers = n
		} else {
			counts.Following = n
		}
	}

	return counts, nil
}

func (s *rodSession) OpenList(ctx context.Context, username string, kind ListKind) (ListHandle, error) {
	counts, err := s.SummaryCounts(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := s.openDialog(ctx, kind); err != nil {
		return nil, err
	}

	return &rodList{
		session:  s,
		username: username,
		kind:     kind,
		total:    counts.Count(kind),
		returned: make(map[string]struct{}),
	}, nil
}

func (s *rodSession) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

func (s *rodSession) gotoProfile(ctx context.Context, username string) error {
	url := fmt.Sprintf("%s/%s/", baseURL, username)

	return retry.Do(func() error {
		navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
		defer cancel()

		if err := s.page.Context(navCtx).Navigate(url); err != nil {
			return errs.Wrap(errs.ErrorTypeNavigation, fmt.Sprintf("navigate profile %s failed", username), err)
		}
		if err := s.page.Context(navCtx).WaitLoad(); err != nil {
			s.cfg.Logger.WithError(err).WithField("username", username).Warn("Profile load wait timed out")
		}
		return nil
	}, navRetryConfig(ctx, s.cfg.Logger))
}

func (s *rodSession) openDialog(ctx context.Context, kind ListKind) error {
	return retry.Do(func() error {
		link, ok := locateFirst(ctx, s.page, listLinkSelectors[kind])
		if !ok {
			return errs.New(errs.ErrorTypeTransientUI, fmt.Sprintf("%s link not found", kind))
		}
		if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return errs.Wrap(errs.ErrorTypeTransientUI, fmt.Sprintf("failed to open %s list", kind), err)
		}
		if _, ok := locateFirst(ctx, s.page, dialogSelectors); !ok {
			return errs.New(errs.ErrorTypeTransientUI, fmt.Sprintf("%s dialog did not appear", kind))
		}
		return nil
	}, dialogRetryConfig(ctx, s.cfg.Logger))
}

// collectDialogUsernames scrolls the open dialog to its current bottom and
// returns every profile username rendered in it, in document order.
const collectDialogUsernames = `() => {
	const dlg = document.querySelector('div[role="dialog"]');
	if (!dlg) return [];
	const names = [];
	const seen = new Set();
	const anchors = dlg.querySelectorAll('a[href^="/"]');
	for (const a of anchors) {
		const parts = a.pathname.split('/').filter(Boolean);
		if (parts.length !== 1) continue;
		if (seen.has(parts[0])) continue;
		seen.add(parts[0]);
		names.push(parts[0]);
	}
	if (anchors.length > 0) {
		anchors[anchors.length - 1].scrollIntoView();
	}
	return names;
}`

type rodList struct {
	session  *rodSession
	username string
	kind     ListKind
	total    int
	returned map[string]struct{}
}

func (l *rodList) FetchMore(ctx context.Context) ([]string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.session.cfg.NavTimeout)
	defer cancel()

	res, err := l.session.page.Context(fetchCtx).Eval(collectDialogUsernames)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransientUI, "list scroll failed", err)
	}

	var fresh []string
	for _, v := range res.Value.Arr() {
		name := v.Str()
		if name == "" {
			continue
		}
		if _, ok := l.returned[name]; ok {
			continue
		}
		l.returned[name] = struct{}{}
		fresh = append(fresh, name)
	}

	// Let the dialog render the next chunk before the caller asks again.
	select {
	case <-ctx.Done():
		return fresh, ctx.Err()
	case <-time.After(l.session.cfg.ScrollPause):
	}

	return fresh, nil
}

func (l *rodList) AdvertisedTotal() int {
	return l.total
}

func (l *rodList) Cursor() string {
	return fmt.Sprintf("seen:%d", len(l.returned))
}

func (l *rodList) Refresh(ctx context.Context) error {
	if err := l.session.gotoProfile(ctx, l.username); err != nil {
		return err
	}
	if err := l.session.openDialog(ctx, l.kind); err != nil {
		return err
	}
	l.returned = make(map[string]struct{})
	return nil
}

func (l *rodList) Close() error {
	// Dismiss the dialog by returning to the profile page. Navigating is
	// more reliable than hunting for the close button across layouts.
	err := rod.Try(func() {
		l.session.page.Timeout(probeTimeout).MustEval(`() => {
			const btn = document.querySelector('div[role="dialog"] button');
			if (btn) btn.click();
		}`)
	})
	return err
}

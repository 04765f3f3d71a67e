package browser

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// Instagram reshuffles its markup often, so every lookup runs a ranked
// chain of selectors and the first one that resolves wins.

var loginSelectors = struct {
	username []string
	password []string
	submit   []string
}{
	username: []string{
		`input[name="username"]`,
		`input[aria-label="Phone number, username, or email"]`,
	},
	password: []string{
		`input[name="password"]`,
		`input[type="password"]`,
	},
	submit: []string{
		`button[type="submit"]`,
		`form button`,
	},
}

var listLinkSelectors = map[ListKind][]string{
	ListFollowers: {
		`a[href$="/followers/"]`,
		`a[href*="/followers"]`,
	},
	ListFollowing: {
		`a[href$="/following/"]`,
		`a[href*="/following"]`,
	},
}

var dialogSelectors = []string{
	`div[role="dialog"]`,
	`div[aria-modal="true"]`,
}

var countSelectors = map[ListKind][]string{
	ListFollowers: {
		`a[href$="/followers/"] span[title]`,
		`a[href$="/followers/"] span`,
		`li:nth-child(2) span`,
	},
	ListFollowing: {
		`a[href$="/following/"] span[title]`,
		`a[href$="/following/"] span`,
		`li:nth-child(3) span`,
	},
}

const probeTimeout = 3 * time.Second

// locateFirst tries each selector in order and returns the first element
// that resolves within the probe timeout.
func locateFirst(ctx context.Context, page *rod.Page, selectors []string) (*rod.Element, bool) {
	for _, sel := range selectors {
		el, err := probe(ctx, page, sel)
		if err == nil && el != nil {
			return el, true
		}
	}
	return nil, false
}

func probe(ctx context.Context, page *rod.Page, sel string) (el *rod.Element, err error) {
	err = rod.Try(func() {
		el = page.Context(ctx).Timeout(probeTimeout).MustElement(sel)
	})
	return el, err
}

// textByChain resolves the first selector that yields non-empty text.
// Elements with a title attribute prefer it over the rendered text, since
// Instagram abbreviates large counts in the visible span.
func textByChain(ctx context.Context, page *rod.Page, selectors []string) (string, bool) {
	for _, sel := range selectors {
		el, err := probe(ctx, page, sel)
		if err != nil || el == nil {
			continue
		}
		if title, err := el.Attribute("title"); err == nil && title != nil && *title != "" {
			return *title, true
		}
		text, err := el.Text()
		if err == nil && strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

// parseCount turns a rendered count like "1,234", "12.5K" or "3M" into an
// integer. Abbreviated forms lose precision, which is fine: advertised
// totals are only used as a stopping heuristic.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		mult = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = s[:len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(n * mult), true
}

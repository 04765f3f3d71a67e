// Package browser drives an automated Instagram web session. The rest of
// the pipeline only sees the Browser, Session and ListHandle interfaces so
// tests and dry runs can swap in the scripted Fake.
package browser

import (
	"context"

	"ignetwork/pkg/auth"
)

// ListKind selects which relationship list of a profile to walk.
type ListKind string

const (
	ListFollowers ListKind = "followers"
	ListFollowing ListKind = "following"
)

// UnknownTotal is returned by AdvertisedTotal when the profile page did
// not expose a usable count.
const UnknownTotal = -1

// Counts holds the totals advertised on a profile header. A value of
// UnknownTotal means the number could not be read.
type Counts struct {
	Followers int
	Following int
}

// Count returns the advertised total for the given list kind.
func (c Counts) Count(kind ListKind) int {
	if kind == ListFollowing {
		return c.Following
	}
	return c.Followers
}

// Browser owns the underlying automation process and hands out
// authenticated sessions.
type Browser interface {
	// Authenticate logs in with the given account and returns a live
	// session. Login failures carry the auth error type so callers can
	// distinguish them from transient page trouble.
	Authenticate(ctx context.Context, account *auth.Account) (Session, error)

	// Close tears down the automation process.
	Close() error
}

// Session is a logged-in browsing session.
type Session interface {
	// SummaryCounts navigates to a profile and reads the advertised
	// follower and following totals from its header.
	SummaryCounts(ctx context.Context, username string) (Counts, error)

	// OpenList opens the followers or following dialog of a profile and
	// returns a handle for paging through it.
	OpenList(ctx context.Context, username string, kind ListKind) (ListHandle, error)

	// Close ends the session without tearing down the browser.
	Close() error
}

// ListHandle pages through an open relationship list. Successive FetchMore
// calls may return overlapping or previously seen usernames; callers are
// expected to accumulate them as a set.
type ListHandle interface {
	// FetchMore loads the next chunk of the list and returns the usernames
	// it surfaced. An empty slice with a nil error means the list produced
	// nothing new this round.
	FetchMore(ctx context.Context) ([]string, error)

	// AdvertisedTotal is the total the profile claimed for this list, or
	// UnknownTotal when it could not be read.
	AdvertisedTotal() int

	// Cursor describes the current position in the list. Purely
	// informational, surfaced in logs and progress records.
	Cursor() string

	// Refresh reloads the page and reopens the list, used to shake off a
	// throttled or wedged dialog. Position is reset.
	Refresh(ctx context.Context) error

	// Close dismisses the dialog.
	Close() error
}

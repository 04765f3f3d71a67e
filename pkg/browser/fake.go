package browser

import (
	"context"
	"fmt"
	"sync"

	"ignetwork/pkg/auth"
	errs "ignetwork/pkg/errors"
)

// FakeProfile scripts one profile for the fake browser. Batches are served
// one per FetchMore call; when they run out the list returns empty slices.
type FakeProfile struct {
	// Advertised totals shown on the profile header. Use UnknownTotal to
	// simulate an unreadable count.
	Followers int
	Following int

	// FollowerBatches and FollowingBatches are the chunks FetchMore yields
	// for the respective list.
	FollowerBatches  [][]string
	FollowingBatches [][]string
}

// Fake is a scripted Browser for tests and dry runs. All methods are safe
// for concurrent use.
type Fake struct {
	mu       sync.Mutex
	profiles map[string]*FakeProfile

	// Error injection
	AuthErr   error
	CountsErr error
	OpenErr   error
	FetchErr  error

	// Call counters
	AuthCalls  int
	OpenCalls  int
	FetchCalls int
}

// NewFake creates a fake browser with no profiles. Add them with AddProfile.
func NewFake() *Fake {
	return &Fake{profiles: make(map[string]*FakeProfile)}
}

// AddProfile registers a scripted profile.
func (f *Fake) AddProfile(username string, p *FakeProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[username] = p
}

func (f *Fake) Authenticate(ctx context.Context, account *auth.Account) (Session, error) {
	f.mu.Lock()
	f.AuthCalls++
	authErr := f.AuthErr
	f.mu.Unlock()

	if authErr != nil {
		return nil, authErr
	}
	if account == nil || account.Username == "" || account.Password == "" {
		return nil, errs.New(errs.ErrorTypeAuth, "missing credentials")
	}
	return &fakeSession{fake: f}, nil
}

func (f *Fake) Close() error { return nil }

type fakeSession struct {
	fake   *Fake
	closed bool
}

func (s *fakeSession) SummaryCounts(ctx context.Context, username string) (Counts, error) {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()

	if s.fake.CountsErr != nil {
		return Counts{}, s.fake.CountsErr
	}
	p, ok := s.fake.profiles[username]
	if !ok {
		return Counts{}, errs.New(errs.ErrorTypeNavigation, fmt.Sprintf("profile %s not found", username))
	}
	return Counts{Followers: p.Followers, Following: p.Following}, nil
}

func (s *fakeSession) OpenList(ctx context.Context, username string, kind ListKind) (ListHandle, error) {
	s.fake.mu.Lock()
	s.fake.OpenCalls++
	openErr := s.fake.OpenErr
	p, ok := s.fake.profiles[username]
	s.fake.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}
	if !ok {
		return nil, errs.New(errs.ErrorTypeNavigation, fmt.Sprintf("profile %s not found", username))
	}

	batches := p.FollowerBatches
	total := p.Followers
	if kind == ListFollowing {
		batches = p.FollowingBatches
		total = p.Following
	}

	return &fakeList{fake: s.fake, batches: batches, total: total}, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeList struct {
	fake    *Fake
	batches [][]string
	total   int
	next    int
	served  int
}

func (l *fakeList) FetchMore(ctx context.Context) ([]string, error) {
	l.fake.mu.Lock()
	l.fake.FetchCalls++
	fetchErr := l.fake.FetchErr
	l.fake.mu.Unlock()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.next >= len(l.batches) {
		return nil, nil
	}

	batch := l.batches[l.next]
	l.next++
	l.served += len(batch)
	return batch, nil
}

func (l *fakeList) AdvertisedTotal() int { return l.total }

func (l *fakeList) Cursor() string { return fmt.Sprintf("seen:%d", l.served) }

func (l *fakeList) Refresh(ctx context.Context) error {
	l.next = 0
	l.served = 0
	return nil
}

func (l *fakeList) Close() error { return nil }

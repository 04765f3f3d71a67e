package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ignetwork/pkg/auth"
	"ignetwork/pkg/browser"
	"ignetwork/pkg/extractor"
	"ignetwork/pkg/queue"
	"ignetwork/pkg/store"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func testExtractor(perRequestCap int) *extractor.Extractor {
	return extractor.New(extractor.Config{
		MaxPages:         20,
		DefaultListTotal: 50,
		StuckWindow:      30,
		StuckRepeats:     25,
		PerRequestCap:    perRequestCap,
		Patience:         2,
		CloseEnoughRatio: 0.8,
		CloseEnoughSlack: 5,
		BackoffBase:      time.Millisecond,
		BackoffMax:       time.Millisecond,
	}, extractor.WithSleep(noSleep))
}

func openSession(t *testing.T, fake *browser.Fake) browser.Session {
	t.Helper()
	session, err := fake.Authenticate(context.Background(), &auth.Account{Username: "root", Password: "pw"})
	require.NoError(t, err)
	return session
}

func TestProcessSizeGateSkipsWithoutExtraction(t *testing.T) {
	fake := browser.NewFake()
	fake.AddProfile("whale", &browser.FakeProfile{Followers: 5000, Following: 100})

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)

	c := New(Config{
		FollowerCeiling:  2000,
		FollowingCeiling: 2000,
		FetchFollowers:   true,
		FetchFollowing:   true,
		PerRequestCap:    12,
	}, openSession(t, fake), testExtractor(12), progress, edges)

	outcome, err := c.Process(context.Background(), "whale")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, fake.OpenCalls, "size-gated account must not open any list")
	assert.Equal(t, 0, fake.FetchCalls)

	rec, ok := progress.Get("whale")
	require.True(t, ok)
	assert.True(t, rec.Skipped)
	assert.True(t, rec.Complete(), "skipped accounts are complete and not revisited")
}

func TestProcessExtractsAndMergesEdges(t *testing.T) {
	fake := browser.NewFake()
	fake.AddProfile("alice", &browser.FakeProfile{
		Followers:        2,
		Following:        2,
		FollowerBatches:  [][]string{{"f1", "f2"}},
		FollowingBatches: [][]string{{"g1", "g2"}},
	})

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)
	pending := queue.New(dir)

	c := New(Config{
		FollowerCeiling:  2000,
		FollowingCeiling: 2000,
		FetchFollowers:   true,
		FetchFollowing:   true,
		PerRequestCap:    12,
	}, openSession(t, fake), testExtractor(12), progress, edges, WithQueue(pending))

	outcome, err := c.Process(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)

	got, err := edges.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []store.Edge{
		{Source: "f1", Target: "alice"},
		{Source: "f2", Target: "alice"},
		{Source: "alice", Target: "g1"},
		{Source: "alice", Target: "g2"},
	}, got)

	rec, ok := progress.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 2, rec.FollowersRetrieved)
	assert.Equal(t, 2, rec.FollowingRetrieved)

	// Discovered followings grow the frontier
	links, err := pending.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{queue.ProfileURL("g1"), queue.ProfileURL("g2")}, links)
}

func TestProcessIdempotentRevisit(t *testing.T) {
	fake := browser.NewFake()
	fake.AddProfile("alice", &browser.FakeProfile{
		Followers:       1,
		FollowerBatches: [][]string{{"f1"}},
	})

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)

	c := New(Config{FetchFollowers: true}, openSession(t, fake), testExtractor(12), progress, edges)

	outcome, err := c.Process(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	opens := fake.OpenCalls

	outcome, err = c.Process(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome, "a complete account is already done")
	assert.Equal(t, opens, fake.OpenCalls, "revisit must not extract again")

	count, err := edges.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessUnreadableCountsSkipExtraction(t *testing.T) {
	// An unreadable profile header must not open the lists: with no count
	// there is no size gate and no throttle inference to protect the walk.
	fake := browser.NewFake()
	fake.AddProfile("alice", &browser.FakeProfile{
		Followers:       5,
		FollowerBatches: [][]string{{"f1", "f2"}},
	})
	fake.CountsErr = assert.AnError

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)

	c := New(Config{FetchFollowers: true, FetchFollowing: true},
		openSession(t, fake), testExtractor(12), progress, edges)

	outcome, err := c.Process(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, 0, fake.OpenCalls, "unknown counts must not be walked")
	assert.Equal(t, 0, fake.FetchCalls)

	rec, ok := progress.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 0, rec.FollowersCount)
	assert.Equal(t, 0, rec.FollowingCount)
	assert.Equal(t, 0, rec.FollowersRetrieved)

	count, err := edges.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProcessZeroCountListNotWalked(t *testing.T) {
	// One follower, nobody followed: only the followers list opens.
	fake := browser.NewFake()
	fake.AddProfile("loner", &browser.FakeProfile{
		Followers:       1,
		Following:       0,
		FollowerBatches: [][]string{{"f1"}},
	})

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)

	c := New(Config{FetchFollowers: true, FetchFollowing: true},
		openSession(t, fake), testExtractor(12), progress, edges)

	outcome, err := c.Process(context.Background(), "loner")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, 1, fake.OpenCalls, "the empty following list must stay closed")

	rec, ok := progress.Get("loner")
	require.True(t, ok)
	assert.Equal(t, 1, rec.FollowersRetrieved)
	assert.Equal(t, 0, rec.FollowingRetrieved)
}

func TestProcessFlagsRateLimit(t *testing.T) {
	// 500 advertised, only 10 retrieved with a cap of 10: throttled.
	fake := browser.NewFake()
	fake.AddProfile("popular", &browser.FakeProfile{
		Followers: 500,
		FollowerBatches: [][]string{
			{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10"},
		},
	})

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)
	edges := store.NewEdgeStore(dir)

	c := New(Config{
		FetchFollowers: true,
		PerRequestCap:  10,
	}, openSession(t, fake), testExtractor(10), progress, edges)

	outcome, err := c.Process(context.Background(), "popular")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, outcome)

	rec, ok := progress.Get("popular")
	require.True(t, ok)
	assert.True(t, rec.RateLimited)
	assert.False(t, rec.Complete(), "rate limited accounts stay eligible")
	assert.NotContains(t, progress.CompletedSet(), "popular")
}

func TestProcessHookObservesExtraction(t *testing.T) {
	fake := browser.NewFake()
	fake.AddProfile("alice", &browser.FakeProfile{
		Followers:       1,
		FollowerBatches: [][]string{{"f1"}},
	})

	dir := t.TempDir()

	var before, after []string
	hook := &Hook{
		BeforeExtract: func(username string, kind browser.ListKind) {
			before = append(before, username+"/"+string(kind))
		},
		AfterExtract: func(username string, kind browser.ListKind, result extractor.Result, err error) {
			require.NoError(t, err)
			after = append(after, username+"/"+string(kind))
		},
	}

	c := New(Config{FetchFollowers: true},
		openSession(t, fake), testExtractor(12),
		store.NewProgressStore(dir), store.NewEdgeStore(dir),
		WithHook(hook))

	_, err := c.Process(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/followers"}, before)
	assert.Equal(t, []string{"alice/followers"}, after)
}

func TestProcessTransientFailureLeavesNoRecord(t *testing.T) {
	fake := browser.NewFake()
	fake.AddProfile("alice", &browser.FakeProfile{Followers: 1, FollowerBatches: [][]string{{"f1"}}})
	fake.OpenErr = assert.AnError

	dir := t.TempDir()
	progress := store.NewProgressStore(dir)

	c := New(Config{FetchFollowers: true}, openSession(t, fake), testExtractor(12), progress, store.NewEdgeStore(dir))

	outcome, err := c.Process(context.Background(), "alice")
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	_, ok := progress.Get("alice")
	assert.False(t, ok, "failed visits record nothing")
}

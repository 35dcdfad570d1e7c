package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
)

// fakeFetcher implements domain.EventFetcher for tests.
type fakeFetcher struct {
	mu      sync.Mutex
	events  []domain.Event
	err     error
	calls   int32
	release chan struct{} // when set, FetchAll blocks until closed
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]domain.Event, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	release := f.release
	events, err := f.events, f.err
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (f *fakeFetcher) FetchByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func ev(id, name, category string, live bool) domain.Event {
	return domain.Event{ID: id, Name: name, Category: category, IsLive: live}
}

var catalogEpoch = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func newTestCache(events ...domain.Event) (*CatalogCache, *fakeFetcher, *clock.Fake) {
	fetcher := &fakeFetcher{events: events}
	clk := clock.NewFake(catalogEpoch)
	return NewCatalogCache(fetcher, clk, testLogger), fetcher, clk
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	cache, fetcher, clk := newTestCache(ev("e1", "Indie Night", "Music", true))

	first, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.callCount())

	clk.Advance(299 * time.Second)
	second, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount(), "no network call inside TTL")
	assert.Equal(t, first.FetchedAt, second.FetchedAt, "same snapshot returned")

	clk.Advance(2 * time.Second)
	third, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount(), "expired snapshot triggers a refetch")
	assert.NotEqual(t, first.FetchedAt, third.FetchedAt)
}

func TestFetch_ForceRefreshBypassesCache(t *testing.T) {
	cache, fetcher, _ := newTestCache(ev("e1", "Indie Night", "Music", true))

	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetch_KeepsStaleSnapshotOnError(t *testing.T) {
	cache, fetcher, clk := newTestCache(ev("e1", "Indie Night", "Music", true))

	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.err = errors.New("backend down")
	fetcher.mu.Unlock()
	clk.Advance(10 * time.Minute)

	snap, err := cache.Fetch(context.Background(), false)
	require.Error(t, err)
	assert.Len(t, snap.Events, 1, "stale snapshot still served")
	assert.Equal(t, "e1", snap.Events[0].ID)

	// Derived views still work off the stale snapshot.
	assert.Len(t, cache.Live(), 1)
}

func TestFetch_ErrorWithNoSnapshot(t *testing.T) {
	cache, fetcher, _ := newTestCache()
	fetcher.mu.Lock()
	fetcher.err = errors.New("backend down")
	fetcher.mu.Unlock()

	snap, err := cache.Fetch(context.Background(), false)
	require.Error(t, err)
	assert.Empty(t, snap.Events)
}

func TestInvalidate_ForcesNextFetch(t *testing.T) {
	cache, fetcher, _ := newTestCache(ev("e1", "Indie Night", "Music", true))

	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	cache.Invalidate()

	_, err = cache.Fetch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestFetch_CoalescesConcurrentRefreshes(t *testing.T) {
	cache, fetcher, _ := newTestCache(ev("e1", "Indie Night", "Music", true))
	release := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.release = release
	fetcher.mu.Unlock()

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Fetch(context.Background(), true)
			assert.NoError(t, err)
			assert.Len(t, snap.Events, 1)
		}()
	}

	// Let all workers pile in, then release the single in-flight call.
	require.Eventually(t, func() bool { return fetcher.callCount() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, fetcher.callCount(), "concurrent refreshes share one round-trip")
}

func TestLiveAndPast_PartitionSnapshot(t *testing.T) {
	cache, _, _ := newTestCache(
		ev("e1", "Indie Night", "Music", true),
		ev("e2", "Retro Expo", "Art", false),
		ev("e3", "Hack Sprint", "Tech", true),
	)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	live := cache.Live()
	past := cache.Past()
	assert.Len(t, live, 2)
	assert.Len(t, past, 1)
	assert.Len(t, append(live, past...), 3, "partition covers the snapshot")
}

func TestByCategory_CaseInsensitive(t *testing.T) {
	cache, _, _ := newTestCache(
		ev("e1", "Indie Night", "Music", true),
		ev("e2", "Jazz Evening", "music", true),
		ev("e3", "Hack Sprint", "Tech", true),
	)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	got := cache.ByCategory("MUSIC")
	assert.Len(t, got, 2)
}

func TestSearch_MatchesAcrossFields(t *testing.T) {
	events := []domain.Event{
		{ID: "e1", Name: "Indie Night", Category: "Music", Location: "Chandigarh"},
		{ID: "e2", Name: "Hack Sprint", Category: "Tech", Description: "48h build marathon"},
		{ID: "e3", Name: "Open Mic", Category: "Comedy", OrganizerName: "Talkeys Collective"},
	}
	cache, _, _ := newTestCache(events...)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	assert.Len(t, cache.Search("chandigarh"), 1)
	assert.Len(t, cache.Search("marathon"), 1)
	assert.Len(t, cache.Search("collective"), 1)
	assert.Len(t, cache.Search("tech"), 1)
	assert.Empty(t, cache.Search("opera"))
}

func TestSearch_EmptyQueryReturnsFullSet(t *testing.T) {
	cache, _, _ := newTestCache(
		ev("e1", "Indie Night", "Music", true),
		ev("e2", "Hack Sprint", "Tech", false),
	)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	full := cache.Search("")
	assert.Len(t, full, 2)

	// Every non-empty query narrows the full set, never extends it.
	for _, q := range []string{"indie", "tech", "zzz"} {
		assert.Subset(t, full, cache.Search(q))
	}
}

func TestGroupedByCategory_CollapsesBlankIntoUncategorized(t *testing.T) {
	cache, _, _ := newTestCache(
		ev("e1", "Indie Night", "Music", true),
		ev("e2", "Mystery Meetup", "   ", true),
		ev("e3", "Jazz Evening", "Music", true),
	)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	groups := cache.GroupedByCategory()
	require.Len(t, groups, 2)

	assert.Equal(t, "Music", groups[0].Name)
	assert.Len(t, groups[0].Events, 2)
	assert.Equal(t, Uncategorized, groups[1].Name)
	assert.Equal(t, "e2", groups[1].Events[0].ID)
}

func TestGroupedByCategory_UnionEqualsSnapshot(t *testing.T) {
	events := []domain.Event{
		ev("e1", "A", "Music", true),
		ev("e2", "B", "", true),
		ev("e3", "C", "Tech", false),
		ev("e4", "D", "Tech", true),
	}
	cache, _, _ := newTestCache(events...)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	groups := cache.GroupedByCategory()
	var union []domain.Event
	for _, g := range groups {
		require.NotEmpty(t, g.Events, "no empty groups")
		union = append(union, g.Events...)
	}
	assert.ElementsMatch(t, events, union, "each event appears exactly once")
}

func TestGroupedByCategory_SortedWithUncategorizedLast(t *testing.T) {
	cache, _, _ := newTestCache(
		ev("e1", "A", "Tech", true),
		ev("e2", "B", "", true),
		ev("e3", "C", "Art", true),
		ev("e4", "D", "Music", true),
	)
	_, err := cache.Fetch(context.Background(), false)
	require.NoError(t, err)

	groups := cache.GroupedByCategory()
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Art", "Music", "Tech", Uncategorized}, names)
}

func TestEventByID_PassesThrough(t *testing.T) {
	cache, _, _ := newTestCache(ev("e1", "Indie Night", "Music", true))

	event, err := cache.EventByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Indie Night", event.Name)

	_, err = cache.EventByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
)

// CacheTTL is how long a fetched catalog snapshot stays fresh.
const CacheTTL = 5 * time.Minute

// Uncategorized is the group assigned to events with a blank category.
const Uncategorized = "Uncategorized"

// CategoryGroup is one group in the grouped-by-category view.
type CategoryGroup struct {
	Name   string
	Events []domain.Event
}

// CatalogCache is the single point of truth for the current event catalog.
// It keeps one immutable snapshot, refetches when the snapshot outlives
// CacheTTL or a refresh is forced, and serves derived views computed from the
// snapshot without touching the network.
//
// A failed fetch never discards an existing snapshot: stale data beats a
// blank screen.
type CatalogCache struct {
	fetcher domain.EventFetcher
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	snapshot *domain.CatalogSnapshot
	inflight chan struct{} // non-nil while a fetch is on the wire
	lastErr  error
}

// NewCatalogCache wires the cache. clk defaults to the system clock, logger
// to slog.Default().
func NewCatalogCache(fetcher domain.EventFetcher, clk clock.Clock, logger *slog.Logger) *CatalogCache {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{
		fetcher: fetcher,
		clock:   clk,
		logger:  logger,
	}
}

// Fetch returns the current snapshot, refetching when it is absent, older
// than CacheTTL, or forceRefresh is set. Concurrent refreshes coalesce onto a
// single network call; followers share the leader's result.
func (c *CatalogCache) Fetch(ctx context.Context, forceRefresh bool) (domain.CatalogSnapshot, error) {
	for {
		c.mu.Lock()
		if !forceRefresh && c.fresh() {
			snap := *c.snapshot
			c.mu.Unlock()
			return snap, nil
		}
		if c.inflight != nil {
			wait := c.inflight
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return domain.CatalogSnapshot{}, ctx.Err()
			case <-wait:
			}
			c.mu.Lock()
			snap, err := c.snapshot, c.lastErr
			c.mu.Unlock()
			if err != nil {
				if snap != nil {
					return *snap, err
				}
				return domain.CatalogSnapshot{}, err
			}
			if snap != nil {
				return *snap, nil
			}
			// Leader was invalidated under us; try again.
			continue
		}
		done := make(chan struct{})
		c.inflight = done
		c.mu.Unlock()

		events, err := c.fetcher.FetchAll(ctx)

		c.mu.Lock()
		c.inflight = nil
		c.lastErr = err
		close(done)
		if err != nil {
			c.logger.Warn("catalog fetch failed", "err", err)
			if c.snapshot != nil {
				snap := *c.snapshot
				c.mu.Unlock()
				return snap, err
			}
			c.mu.Unlock()
			return domain.CatalogSnapshot{}, err
		}
		snap := domain.CatalogSnapshot{Events: events, FetchedAt: c.clock.Now()}
		c.snapshot = &snap
		c.mu.Unlock()
		c.logger.Debug("catalog refreshed", "events", len(events))
		return snap, nil
	}
}

// Invalidate drops the snapshot unconditionally; the next Fetch hits the
// network regardless of forceRefresh.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	c.lastErr = nil
}

// EventByID fetches a single event directly from the backend.
func (c *CatalogCache) EventByID(ctx context.Context, id string) (*domain.Event, error) {
	return c.fetcher.FetchByID(ctx, id)
}

// fresh reports whether the held snapshot is inside its TTL. Callers hold mu.
func (c *CatalogCache) fresh() bool {
	return c.snapshot != nil && c.clock.Now().Sub(c.snapshot.FetchedAt) <= CacheTTL
}

// events returns the events of the current snapshot, or nil when empty.
func (c *CatalogCache) events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil
	}
	return c.snapshot.Events
}

// Live returns the events flagged as current or upcoming.
func (c *CatalogCache) Live() []domain.Event {
	return filter(c.events(), func(e domain.Event) bool { return e.IsLive })
}

// Past returns the events no longer live.
func (c *CatalogCache) Past() []domain.Event {
	return filter(c.events(), func(e domain.Event) bool { return !e.IsLive })
}

// ByCategory returns events whose category matches name, case-insensitively.
func (c *CatalogCache) ByCategory(name string) []domain.Event {
	return filter(c.events(), func(e domain.Event) bool {
		return strings.EqualFold(e.Category, name)
	})
}

// Search returns events with text as a case-insensitive substring of name,
// location, category, description, or organizer name. An empty query returns
// the full set.
func (c *CatalogCache) Search(text string) []domain.Event {
	events := c.events()
	if text == "" {
		return events
	}
	needle := strings.ToLower(text)
	contains := func(haystack string) bool {
		return strings.Contains(strings.ToLower(haystack), needle)
	}
	return filter(events, func(e domain.Event) bool {
		return contains(e.Name) ||
			contains(e.Location) ||
			contains(e.Category) ||
			contains(e.Description) ||
			contains(e.OrganizerName)
	})
}

// GroupedByCategory partitions the snapshot by category. Blank or
// whitespace-only categories collapse into Uncategorized. Groups are sorted
// alphabetically with Uncategorized last; no group is empty.
func (c *CatalogCache) GroupedByCategory() []CategoryGroup {
	byName := make(map[string][]domain.Event)
	for _, e := range c.events() {
		name := strings.TrimSpace(e.Category)
		if name == "" {
			name = Uncategorized
		}
		byName[name] = append(byName[name], e)
	}
	groups := make([]CategoryGroup, 0, len(byName))
	for name, events := range byName {
		groups = append(groups, CategoryGroup{Name: name, Events: events})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name == Uncategorized {
			return false
		}
		if groups[j].Name == Uncategorized {
			return true
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

func filter(events []domain.Event, keep func(domain.Event) bool) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

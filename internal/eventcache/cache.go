// Package eventcache memoizes filtered event sets per display range so that
// repeated range queries do not refetch from the calendar sources.
//
// The cache holds one loaded window snapshot at a time. A request whose
// padded interval escapes that window is a miss: the loader runs for the new
// padded window and the snapshot is replaced, never merged. Loader failures
// propagate untouched and leave the previous snapshot in place.
package eventcache

import (
	"fmt"
	"sync"
	"time"

	"plancal/internal/model"
	"plancal/internal/timeline"
)

// Buffer widths applied around a requested interval before the coverage
// check. Wide ranges get a wider safety margin.
const (
	bufferWide   = 14 * 24 * time.Hour // month / year requests
	bufferNarrow = 2 * 24 * time.Hour  // day / week requests
)

// FilterOptions are the display filters whose fingerprint is part of the
// cache key. HideRecurring is applied at grouping time, not here, but still
// keys the cache: toggling it must never hit a stale entry.
type FilterOptions struct {
	HideRecurring bool
	IncludeAllDay bool
	IncludeTimed  bool

	// HourStart / HourEnd bound the visible hours of timed events,
	// half-open [HourStart, HourEnd). 0 / 24 means unrestricted.
	HourStart int
	HourEnd   int
}

// DefaultFilter shows everything.
func DefaultFilter() FilterOptions {
	return FilterOptions{
		IncludeAllDay: true,
		IncludeTimed:  true,
		HourStart:     0,
		HourEnd:       24,
	}
}

// Fingerprint returns a stable string encoding of the options.
func (o FilterOptions) Fingerprint() string {
	return fmt.Sprintf("hr=%t,ad=%t,td=%t,h=%d-%d",
		o.HideRecurring, o.IncludeAllDay, o.IncludeTimed, o.HourStart, o.HourEnd)
}

// Key identifies one cached query result.
type Key struct {
	Kind   timeline.RangeKind
	Anchor time.Time
	Filter FilterOptions
}

// String renders the key as kind|anchor-day|filter-fingerprint.
func (k Key) String() string {
	return string(k.Kind) + "|" + k.Anchor.Format("2006-01-02") + "|" + k.Filter.Fingerprint()
}

// LoaderFunc fetches all events intersecting [start, end) from the
// underlying calendar sources.
type LoaderFunc func(start, end time.Time) ([]model.Event, error)

// Cache is safe for concurrent use. One instance per planner service.
type Cache struct {
	mu sync.RWMutex

	// window is the interval the current snapshot covers; nil until the
	// first successful load.
	window *timeline.Interval
	// raw is the unfiltered snapshot for window.
	raw []model.Event
	// entries memoizes filtered results per key string.
	entries map[string][]model.Event
}

func New() *Cache {
	return &Cache{entries: make(map[string][]model.Event)}
}

// BufferFor returns the coverage padding for a range kind.
func BufferFor(kind timeline.RangeKind) time.Duration {
	switch kind {
	case timeline.RangeMonth, timeline.RangeYear:
		return bufferWide
	default:
		return bufferNarrow
	}
}

// GetOrLoad returns the filtered event list for key, loading through the
// supplied loader when the requested interval (padded by the kind's buffer)
// is not covered by the current snapshot. A reload replaces the snapshot
// wholesale and drops all memoized entries.
func (c *Cache) GetOrLoad(key Key, want timeline.Interval, load LoaderFunc) ([]model.Event, error) {
	padded := timeline.Interval{
		Start: want.Start.Add(-BufferFor(key.Kind)),
		End:   want.End.Add(BufferFor(key.Kind)),
	}
	ks := key.String()

	c.mu.RLock()
	covered := c.window != nil && c.window.Covers(padded)
	if covered {
		if cached, ok := c.entries[ks]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the write lock; another goroutine may have loaded.
	if c.window != nil && c.window.Covers(padded) {
		if cached, ok := c.entries[ks]; ok {
			return cached, nil
		}
		filtered := applyFilter(c.raw, key.Filter)
		c.entries[ks] = filtered
		return filtered, nil
	}

	events, err := load(padded.Start, padded.End)
	if err != nil {
		// Previous snapshot stays as-is; no retry, no stale entry for key.
		return nil, err
	}

	c.window = &padded
	c.raw = events
	c.entries = make(map[string][]model.Event)

	filtered := applyFilter(events, key.Filter)
	c.entries[ks] = filtered
	return filtered, nil
}

// Invalidate drops cached state. With no arguments the whole cache is
// cleared, including the loaded window, forcing the next query to reload.
// With keys, only those memoized entries are dropped; the snapshot stays.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(keys) == 0 {
		c.window = nil
		c.raw = nil
		c.entries = make(map[string][]model.Event)
		return
	}
	for _, k := range keys {
		delete(c.entries, k.String())
	}
}

// applyFilter applies the inclusion and hour-bound filters. The recurring
// filter is deliberately not applied here; grouping owns it so that
// heuristic detection sees the widest corpus.
func applyFilter(events []model.Event, opts FilterOptions) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.AllDay {
			if !opts.IncludeAllDay {
				continue
			}
			out = append(out, e)
			continue
		}
		if !opts.IncludeTimed {
			continue
		}
		if !withinHours(e, opts.HourStart, opts.HourEnd) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// withinHours reports whether a timed event's wall-clock span touches the
// half-open hour window [startHour, endHour). Events missing an instant are
// kept; list views still show them.
func withinHours(e model.Event, startHour, endHour int) bool {
	if startHour <= 0 && endHour >= 24 {
		return true
	}
	if !e.HasStart() || !e.HasEnd() {
		return true
	}
	startMin := e.Start.Hour()*60 + e.Start.Minute()
	endMin := e.End.Hour()*60 + e.End.Minute()
	if endMin <= startMin {
		// Crosses midnight (or zero span); always visible somewhere.
		return true
	}
	return startMin < endHour*60 && endMin > startHour*60
}

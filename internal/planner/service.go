// Package planner wires the timeline engine together: it owns the
// per-account event snapshots, loads them through injected loader callbacks,
// and answers grouped and laid-out range queries through the event cache.
//
// There is deliberately no package-level singleton. One Service is
// constructed at startup and passed to its consumers.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"plancal/internal/eventcache"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/timeline"
)

// Loader fetches all of one account's events intersecting [start, end).
// Loads are idempotent full-window fetches; the service never retries and
// imposes no timeout of its own.
type Loader func(ctx context.Context, start, end time.Time) ([]model.Event, error)

// Grouped is the result of a range query: the resolved interval and one
// bucket per day within it.
type Grouped struct {
	Kind     timeline.RangeKind
	Interval timeline.Interval
	Days     map[time.Time][]model.Event
}

// Service coordinates loading, caching, grouping, and layout. Safe for
// concurrent use: engine computations are pure reads over snapshots, and
// snapshot replacement is a single assignment per account under the lock.
type Service struct {
	loc    *time.Location
	filter eventcache.FilterOptions
	cache  *eventcache.Cache

	mu        sync.RWMutex
	loaders   map[model.Account]Loader
	snapshots map[model.Account][]model.Event
}

// New constructs a Service displaying times in loc with the given default
// filter options.
func New(loc *time.Location, filter eventcache.FilterOptions) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		loc:       loc,
		filter:    filter,
		cache:     eventcache.New(),
		loaders:   make(map[model.Account]Loader),
		snapshots: make(map[model.Account][]model.Event),
	}
}

// Location returns the display timezone.
func (s *Service) Location() *time.Location { return s.loc }

// DefaultFilter returns the configured default filter options.
func (s *Service) DefaultFilter() eventcache.FilterOptions { return s.filter }

// LinkAccount attaches a loader for an account. Linking (or re-linking)
// wipes all cached state so the next query reloads everything.
func (s *Service) LinkAccount(account model.Account, loader Loader) error {
	if !account.Valid() {
		return errors.New("planner: unknown account " + string(account))
	}
	if loader == nil {
		return errors.New("planner: nil loader")
	}

	s.mu.Lock()
	s.loaders[account] = loader
	delete(s.snapshots, account)
	s.mu.Unlock()

	s.cache.Invalidate()
	appLog.Info("account linked", "account", account)
	return nil
}

// UnlinkAccount detaches an account's loader and drops its events.
func (s *Service) UnlinkAccount(account model.Account) {
	s.mu.Lock()
	delete(s.loaders, account)
	delete(s.snapshots, account)
	s.mu.Unlock()

	s.cache.Invalidate()
	appLog.Info("account unlinked", "account", account)
}

// LinkedAccounts lists accounts with an attached loader, in display order.
func (s *Service) LinkedAccounts() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Account
	for _, a := range model.Accounts() {
		if _, ok := s.loaders[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Events resolves the requested range and returns its day-bucketed events,
// loading through the cache as needed. The recurring-event filter applies
// at grouping time over the whole cached window, so heuristic detection
// sees repetition beyond the visible interval.
func (s *Service) Events(ctx context.Context, kind timeline.RangeKind, anchor time.Time, filter eventcache.FilterOptions) (Grouped, error) {
	iv, err := timeline.Resolve(kind, anchor, s.loc)
	if err != nil {
		return Grouped{}, err
	}

	key := eventcache.Key{
		Kind:   kind,
		Anchor: timeline.StartOfDay(anchor, s.loc),
		Filter: filter,
	}

	events, err := s.cache.GetOrLoad(key, iv, func(start, end time.Time) ([]model.Event, error) {
		return s.loadWindow(ctx, start, end)
	})
	if err != nil {
		return Grouped{}, err
	}

	days := timeline.Group(events, iv, timeline.GroupOptions{HideRecurring: filter.HideRecurring})
	return Grouped{Kind: kind, Interval: iv, Days: days}, nil
}

// Timeline returns the slot geometry for a single day's timed events.
func (s *Service) Timeline(ctx context.Context, date time.Time, filter eventcache.FilterOptions) ([]timeline.LaidOutEvent, error) {
	grouped, err := s.Events(ctx, timeline.RangeDay, date, filter)
	if err != nil {
		return nil, err
	}

	day := timeline.StartOfDay(date, s.loc)
	return timeline.Layout(day, grouped.Days[day]), nil
}

// Refresh drops all cached state and reloads the current week's window so
// the next queries see fresh data. Loader failures propagate; the previous
// snapshots stay visible in that case.
func (s *Service) Refresh(ctx context.Context) error {
	s.cache.Invalidate()

	now := time.Now().In(s.loc)
	if _, err := s.Events(ctx, timeline.RangeWeek, now, s.filter); err != nil {
		return err
	}
	appLog.Info("refresh completed")
	return nil
}

// loadWindow runs every linked account's loader concurrently and combines
// the results. Each account's snapshot is replaced in a single assignment
// at its loader's completion; concurrent readers keep seeing the previous
// snapshot until then. Any account failure fails the load as a whole, but
// accounts that did succeed still commit their snapshots.
func (s *Service) loadWindow(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	s.mu.RLock()
	type job struct {
		account model.Account
		loader  Loader
	}
	jobs := make([]job, 0, len(s.loaders))
	for _, a := range model.Accounts() {
		if l, ok := s.loaders[a]; ok {
			jobs = append(jobs, job{account: a, loader: l})
		}
	}
	s.mu.RUnlock()

	type outcome struct {
		account model.Account
		events  []model.Event
		err     error
	}

	results := make([]outcome, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			events, err := j.loader(ctx, start, end)
			results[i] = outcome{account: j.account, events: events, err: err}
		}(i, j)
	}
	wg.Wait()

	var errs []error
	combined := make([]model.Event, 0)
	for _, r := range results {
		if r.err != nil {
			appLog.Error("account load failed", r.err, "account", r.account)
			errs = append(errs, r.err)
			continue
		}
		s.mu.Lock()
		s.snapshots[r.account] = r.events
		s.mu.Unlock()
		combined = append(combined, r.events...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return combined, nil
}

// Snapshot returns the last committed event array for an account. The
// returned slice must be treated as read-only.
func (s *Service) Snapshot(account model.Account) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[account]
}

package ics

import (
	"context"
	"errors"
	"strings"
	"time"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// AccountLoader loads one account's events from its subscribed ICS sources.
// It satisfies the planner's loader contract: a full-window fetch returning
// every event intersecting [start, end), idempotent and retry-free.
type AccountLoader struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
}

// NewAccountLoader builds a loader over the given sources. All sources must
// belong to the same account; mixed tags are a configuration bug and are
// rejected here rather than producing mislabeled events later.
func NewAccountLoader(fetcher *Fetcher, sources []Source, loc *time.Location) (*AccountLoader, error) {
	if fetcher == nil {
		return nil, errors.New("ics: fetcher is nil")
	}
	if len(sources) == 0 {
		return nil, errors.New("ics: no sources for account loader")
	}
	account := sources[0].Account
	for _, src := range sources {
		if src.Account != account {
			return nil, errors.New("ics: account loader sources span multiple accounts")
		}
	}
	if loc == nil {
		loc = time.Local
	}
	return &AccountLoader{fetcher: fetcher, sources: sources, loc: loc}, nil
}

// Account returns the account the loader serves.
func (l *AccountLoader) Account() model.Account {
	return l.sources[0].Account
}

// Load fetches and parses all sources, returning the events whose span
// intersects [start, end). A fetch or parse failure on any source fails the
// whole load; partial results would look like deleted events downstream.
func (l *AccountLoader) Load(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	results, errs := l.fetcher.FetchAll(ctx, l.sources)
	if len(errs) > 0 {
		return nil, errors.New("ics load: " + joinErrors(errs))
	}

	events := make([]model.Event, 0)
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body, l.loc)
		if err != nil {
			return nil, err
		}
		for _, e := range parsed {
			if intersectsWindow(e, start, end) {
				events = append(events, e)
			}
		}
	}

	appLog.Info("ics load completed",
		"account", l.Account(),
		"event_count", len(events),
		"window_start", start.Format(time.RFC3339),
		"window_end", end.Format(time.RFC3339),
	)
	return events, nil
}

// intersectsWindow reports whether an event belongs in a loaded window.
// Events missing one instant are kept when the other falls inside; events
// missing both are kept so list views can still surface them.
func intersectsWindow(e model.Event, start, end time.Time) bool {
	switch {
	case e.HasStart() && e.HasEnd():
		return e.Start.Before(end) && e.End.After(start)
	case e.HasStart():
		return e.Start.Before(end) && !e.Start.Before(start)
	case e.HasEnd():
		return e.End.After(start) && !e.End.After(end)
	default:
		return true
	}
}

func joinErrors(errs []error) string {
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

package schedule

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MultiSource merges the busy intervals of several sources, queried
// concurrently. A failing member is skipped; the fetch fails only when every
// member fails.
type MultiSource struct {
	sources []BusyIntervalSource
}

// NewMultiSource creates a composite source. Nil members are dropped.
func NewMultiSource(sources ...BusyIntervalSource) *MultiSource {
	kept := make([]BusyIntervalSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiSource{sources: kept}
}

// Len returns the number of member sources.
func (m *MultiSource) Len() int {
	return len(m.sources)
}

// FetchBusy implements BusyIntervalSource.
func (m *MultiSource) FetchBusy(ctx context.Context, calendarID string, start, end time.Time) ([]BusyInterval, error) {
	if len(m.sources) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		merged []BusyInterval
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		i, src := i, src
		g.Go(func() error {
			busy, err := src.FetchBusy(gctx, calendarID, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("busy source failed, skipping",
					"source_index", i,
					"calendar_id", calendarID,
					"error", err,
				)
				errs = append(errs, err)
				return nil
			}
			merged = append(merged, busy...)
			return nil
		})
	}
	// Members never return errors to the group, so Wait only synchronises.
	_ = g.Wait()

	if len(errs) == len(m.sources) {
		return nil, &ExternalFetchError{CalendarID: calendarID, Cause: errors.Join(errs...)}
	}
	slices.SortStableFunc(merged, func(a, b BusyInterval) int {
		return a.Start.Compare(b.Start)
	})
	return merged, nil
}

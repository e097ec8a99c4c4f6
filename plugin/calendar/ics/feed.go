package ics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hrygo/selfcare/plugin/ai/timeout"
	"github.com/hrygo/selfcare/plugin/cache"
	"github.com/hrygo/selfcare/server/service/schedule"
)

const (
	// maxFeedBytes bounds a single feed download.
	maxFeedBytes = 10 << 20
	// feedFreshFor is how long a downloaded body is reused without a request.
	feedFreshFor = 30 * time.Second
	// feedStaleFor is how long a body may stand in for a failed download.
	feedStaleFor = 24 * time.Hour

	// feedCacheSize bounds the bodies shared by one merged source.
	feedCacheSize = 64
)

// Body is a cached feed download.
type Body struct {
	Data         []byte
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// Feed is a read-only BusyIntervalSource over one iCalendar URL.
// The calendar id passed to FetchBusy is ignored; a feed is its own calendar.
type Feed struct {
	url    string
	client *http.Client
	home   *time.Location
	cache  *cache.LRU[Body]
	now    func() time.Time
}

// NewFeed creates a feed source. A nil client uses a client with the
// default outbound timeout.
func NewFeed(feedURL string, client *http.Client, home *time.Location) *Feed {
	if client == nil {
		client = &http.Client{Timeout: timeout.HTTPClientTimeout}
	}
	if home == nil {
		home = time.UTC
	}
	return &Feed{url: feedURL, client: client, home: home, cache: cache.NewLRU[Body](1), now: time.Now}
}

// WithCache shares c between feeds.
func (f *Feed) WithCache(c *cache.LRU[Body]) *Feed {
	f.cache = c
	return f
}

// NewSource returns a source that merges every feed in urls.
func NewSource(urls []string, client *http.Client, home *time.Location) *schedule.MultiSource {
	bodies := cache.NewLRU[Body](feedCacheSize)
	sources := make([]schedule.BusyIntervalSource, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		sources = append(sources, NewFeed(u, client, home).WithCache(bodies))
	}
	return schedule.NewMultiSource(sources...)
}

// FetchBusy downloads the feed and returns its busy intervals within [start, end).
// A recent download is reused. When the download fails, the last good body
// is used if one is cached.
func (f *Feed) FetchBusy(ctx context.Context, calendarID string, start, end time.Time) ([]schedule.BusyInterval, error) {
	body, err := f.fetch(ctx)
	if err != nil {
		return nil, &schedule.ExternalFetchError{CalendarID: redactURL(f.url), Cause: err}
	}
	busy, err := ParseBusy(bytes.NewReader(body), schedule.Interval{Start: start, End: end}, f.home)
	if err != nil {
		f.cache.Invalidate(f.url)
		return nil, &schedule.ExternalFetchError{CalendarID: redactURL(f.url), Cause: err}
	}
	slog.Debug("ics feed parsed", "feed", redactURL(f.url), "busy_count", len(busy))
	return busy, nil
}

func (f *Feed) fetch(ctx context.Context) ([]byte, error) {
	cached, hasCached := f.cache.Get(f.url)
	if hasCached && f.now().Sub(cached.FetchedAt) < feedFreshFor {
		return cached.Data, nil
	}
	fallback := func(err error) ([]byte, error) {
		if !hasCached {
			return nil, err
		}
		slog.Warn("ics feed fetch failed, using cached body",
			"feed", redactURL(f.url),
			"age", f.now().Sub(cached.FetchedAt).String(),
			"error", err,
		)
		return cached.Data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")
	if hasCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return fallback(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && hasCached:
		cached.FetchedAt = f.now()
		f.cache.Set(f.url, cached, feedStaleFor)
		return cached.Data, nil
	case resp.StatusCode != http.StatusOK:
		return fallback(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return fallback(err)
	}
	f.cache.Set(f.url, Body{
		Data:         data,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    f.now(),
	}, feedStaleFor)
	return data, nil
}

// redactURL keeps scheme and host; private feed URLs carry secrets in the path.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics"
	}
	return u.Scheme + "://" + u.Host
}

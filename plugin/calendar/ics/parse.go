// Package ics reads busy intervals from iCalendar feeds and renders bookings
// as an iCalendar document.
package ics

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/hrygo/selfcare/server/service/schedule"
)

// maxOccurrencesPerEvent caps the expansion of a single recurring event.
const maxOccurrencesPerEvent = 5000

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"
)

// event is a VEVENT reduced to what busy-interval expansion needs.
type event struct {
	uid        string
	summary    string
	start      time.Time
	end        time.Time
	allDay     bool
	rrule      string
	exDates    []time.Time
	recurrence *time.Time
}

// ParseBusy parses an iCalendar payload and returns the busy intervals that
// overlap window. Recurring events are expanded; cancelled and transparent
// events are skipped. Times without a zone are read in home.
func ParseBusy(r io.Reader, window schedule.Interval, home *time.Location) ([]schedule.BusyInterval, error) {
	if home == nil {
		home = time.UTC
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var (
		bases     []event
		overrides = map[string][]event{}
	)
	for _, ve := range cal.Events() {
		ev, ok, err := parseEvent(ve, home)
		if err != nil {
			slog.Warn("skipping unreadable vevent", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		bases = append(bases, ev)
	}

	busy := make([]schedule.BusyInterval, 0)
	for _, ev := range bases {
		for _, ov := range overrides[ev.uid] {
			ev.exDates = append(ev.exDates, *ov.recurrence)
		}
		busy = append(busy, expand(ev, window)...)
	}
	for _, list := range overrides {
		for _, ov := range list {
			busy = append(busy, expand(ov, window)...)
		}
	}
	slices.SortStableFunc(busy, func(a, b schedule.BusyInterval) int {
		return a.Start.Compare(b.Start)
	})
	return busy, nil
}

// parseEvent reads a VEVENT. ok is false for events that never block time.
func parseEvent(ve *ical.VEvent, home *time.Location) (event, bool, error) {
	var ev event

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return ev, false, nil
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return ev, false, nil
	}
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, false, errors.New("missing DTSTART")
	}
	start, allDay, err := propertyTime(startProp.Value, startProp.ICalParameters, home)
	if err != nil {
		return ev, false, fmt.Errorf("DTSTART: %w", err)
	}
	ev.start, ev.allDay = start, allDay

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := propertyTime(endProp.Value, endProp.ICalParameters, home)
		if err != nil {
			return ev, false, fmt.Errorf("DTEND: %w", err)
		}
		ev.end = end
	} else if allDay {
		ev.end = start.AddDate(0, 0, 1)
	} else {
		ev.end = start
	}
	if !ev.end.After(ev.start) {
		return ev, false, nil
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, v := range strings.Split(p.Value, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if t, _, err := propertyTime(v, p.ICalParameters, home); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		t, _, err := propertyTime(p.Value, p.ICalParameters, home)
		if err != nil {
			return ev, false, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		ev.recurrence = &t
	}
	return ev, true, nil
}

// propertyTime parses a DATE or DATE-TIME value. UTC values end in Z, zoned
// values carry a TZID parameter and floating values are read in home.
func propertyTime(value string, params map[string][]string, home *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	loc := home
	if tz := params["TZID"]; len(tz) > 0 {
		loc = zoneLocation(tz[0], home)
	}
	dateOnly := !strings.Contains(value, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}

	switch {
	case dateOnly:
		t, err := time.ParseInLocation(layoutDate, value, loc)
		return t, true, err
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse(layoutUTC, value)
		return t, false, err
	default:
		t, err := time.ParseInLocation(layoutLocal, value, loc)
		return t, false, err
	}
}

// expand returns the occurrences of ev that overlap window.
func expand(ev event, window schedule.Interval) []schedule.BusyInterval {
	if ev.rrule == "" {
		occ := schedule.Interval{Start: ev.start, End: ev.end}
		if !occ.Overlaps(window) {
			return nil
		}
		return []schedule.BusyInterval{{Interval: occ, Title: ev.summary, AllDay: ev.allDay}}
	}

	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		slog.Debug("skipping unreadable rrule", "uid", ev.uid, "rrule", ev.rrule, "error", err)
		return nil
	}
	r.DTStart(ev.start)
	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	duration := ev.end.Sub(ev.start)
	days := int(duration / (24 * time.Hour))
	starts := set.Between(window.Start.Add(-duration).In(ev.start.Location()), window.End.In(ev.start.Location()), true)
	if len(starts) > maxOccurrencesPerEvent {
		slog.Warn("recurring event truncated", "uid", ev.uid, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]schedule.BusyInterval, 0, len(starts))
	for _, s := range starts {
		end := s.Add(duration)
		if ev.allDay {
			end = s.AddDate(0, 0, max(days, 1))
		}
		occ := schedule.Interval{Start: s, End: end}
		if !occ.Overlaps(window) {
			continue
		}
		out = append(out, schedule.BusyInterval{Interval: occ, Title: ev.summary, AllDay: ev.allDay})
	}
	return out
}

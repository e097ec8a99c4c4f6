// Package local implements a calendar backed by the bookings table.
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/selfcare/server/service/schedule"
	"github.com/hrygo/selfcare/store"
)

// Calendar serves busy intervals and bookings from the local store.
type Calendar struct {
	store    *store.Store
	detector *schedule.ConflictDetector
	home     *time.Location
}

// NewCalendar creates a local calendar. Conflict messages are formatted in home.
func NewCalendar(s *store.Store, home *time.Location) *Calendar {
	if home == nil {
		home = time.UTC
	}
	return &Calendar{
		store:    s,
		detector: schedule.NewConflictDetector(home),
		home:     home,
	}
}

// FetchBusy returns the stored bookings of calendarID that overlap [start, end).
func (c *Calendar) FetchBusy(ctx context.Context, calendarID string, start, end time.Time) ([]schedule.BusyInterval, error) {
	startTs, endTs := start.Unix(), end.Unix()
	bookings, err := c.store.ListBookings(ctx, &store.FindBooking{
		CalendarID: &calendarID,
		StartTs:    &startTs,
		EndTs:      &endTs,
	})
	if err != nil {
		return nil, &schedule.ExternalFetchError{CalendarID: calendarID, Cause: err}
	}

	busy := make([]schedule.BusyInterval, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, c.busyInterval(b))
	}
	return busy, nil
}

// CreateEvent inserts a booking if nothing on the calendar overlaps it.
// The overlap check and insert share one transaction.
func (c *Calendar) CreateEvent(ctx context.Context, req *schedule.CreateEventRequest) (*schedule.CreatedEvent, error) {
	if req == nil {
		return nil, errors.New("create event: nil request")
	}
	tz := req.Timezone
	if tz == "" {
		tz = c.home.String()
	}

	booking, err := c.store.CreateBookingIfFree(ctx, &store.Booking{
		UID:         shortuuid.New(),
		CalendarID:  req.CalendarID,
		Title:       req.Title,
		Description: req.Description,
		StartTs:     req.Interval.Start.Unix(),
		EndTs:       req.Interval.End.Unix(),
		Timezone:    tz,
	})
	if err != nil {
		var overlap *store.BookingOverlapError
		if errors.As(err, &overlap) {
			existing := c.busyInterval(overlap.Existing)
			return nil, &schedule.ConflictError{
				Message: c.detector.Message(existing),
				Event:   &existing,
			}
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return &schedule.CreatedEvent{
		ID:       booking.UID,
		Link:     Link(booking.UID),
		Interval: c.busyInterval(booking).Interval,
	}, nil
}

// Link returns the API path of a booking.
func Link(uid string) string {
	return "/bookings/" + uid
}

func (c *Calendar) busyInterval(b *store.Booking) schedule.BusyInterval {
	return schedule.BusyInterval{
		Interval: schedule.Interval{
			Start: b.StartTime().In(c.home),
			End:   b.EndTime().In(c.home),
		},
		Title: b.Title,
	}
}

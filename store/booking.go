package store

import (
	"context"
	"fmt"
	"time"
)

// Booking is a self-care block written to the local calendar.
type Booking struct {
	ID          int32
	UID         string
	CalendarID  string
	Title       string
	Description string
	StartTs     int64
	EndTs       int64
	Timezone    string
	CreatedTs   int64
}

// FindBooking is the find condition for bookings.
type FindBooking struct {
	UID        *string
	CalendarID *string

	// Overlap filter: bookings with start_ts < EndTs and end_ts > StartTs.
	StartTs *int64
	EndTs   *int64

	Limit *int
}

// DeleteBooking is the delete request for a booking.
type DeleteBooking struct {
	UID string
}

// BookingOverlapError is returned by CreateBookingIfFree when an existing
// booking overlaps the new one.
type BookingOverlapError struct {
	Existing *Booking
}

func (e *BookingOverlapError) Error() string {
	return fmt.Sprintf("booking overlaps existing booking %q (%s)", e.Existing.Title, e.Existing.UID)
}

// StartTime returns the booking start.
func (b *Booking) StartTime() time.Time {
	return time.Unix(b.StartTs, 0)
}

// EndTime returns the booking end.
func (b *Booking) EndTime() time.Time {
	return time.Unix(b.EndTs, 0)
}

// CreateBooking creates a booking without an overlap check.
func (s *Store) CreateBooking(ctx context.Context, create *Booking) (*Booking, error) {
	return s.driver.CreateBooking(ctx, create)
}

// CreateBookingIfFree creates a booking unless it overlaps an existing one.
func (s *Store) CreateBookingIfFree(ctx context.Context, create *Booking) (*Booking, error) {
	return s.driver.CreateBookingIfFree(ctx, create)
}

// ListBookings lists bookings ordered by start time.
func (s *Store) ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error) {
	return s.driver.ListBookings(ctx, find)
}

// GetBooking gets a booking by uid. It returns nil when none matches.
func (s *Store) GetBooking(ctx context.Context, uid string) (*Booking, error) {
	list, err := s.driver.ListBookings(ctx, &FindBooking{UID: &uid})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteBooking deletes a booking.
func (s *Store) DeleteBooking(ctx context.Context, delete *DeleteBooking) error {
	return s.driver.DeleteBooking(ctx, delete)
}

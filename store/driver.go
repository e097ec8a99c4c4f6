package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Booking model related methods.
	CreateBooking(ctx context.Context, create *Booking) (*Booking, error)
	// CreateBookingIfFree inserts create only when no booking on the same
	// calendar overlaps it, checked and written in one transaction.
	// An overlap returns *BookingOverlapError.
	CreateBookingIfFree(ctx context.Context, create *Booking) (*Booking, error)
	ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error)
	DeleteBooking(ctx context.Context, delete *DeleteBooking) error

	// ActionRecord model related methods.
	CreateActionRecord(ctx context.Context, create *ActionRecord) (*ActionRecord, error)
	ListActionRecords(ctx context.Context, find *FindActionRecord) ([]*ActionRecord, error)
}

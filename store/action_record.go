package store

import (
	"context"
)

// ActionRecord is a suggested action and the user's response to it.
type ActionRecord struct {
	ID         int32
	UserID     int32
	ActionType string
	Outcome    string
	// Params is the validated action parameters as JSON.
	Params string
	// ScheduledTs is the booked start, when the action produced a booking.
	ScheduledTs *int64
	CreatedTs   int64
}

// FindActionRecord is the find condition for action records.
// Results are ordered newest first.
type FindActionRecord struct {
	UserID     *int32
	ActionType *string
	Limit      *int
}

// CreateActionRecord stores an action record.
func (s *Store) CreateActionRecord(ctx context.Context, create *ActionRecord) (*ActionRecord, error) {
	return s.driver.CreateActionRecord(ctx, create)
}

// ListActionRecords lists action records, newest first.
func (s *Store) ListActionRecords(ctx context.Context, find *FindActionRecord) ([]*ActionRecord, error) {
	return s.driver.ListActionRecords(ctx, find)
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/selfcare/store"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *DB) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	return insertBooking(ctx, d.db, create)
}

func (d *DB) CreateBookingIfFree(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	limit := 1
	overlapping, err := listBookings(ctx, tx, &store.FindBooking{
		CalendarID: &create.CalendarID,
		StartTs:    &create.StartTs,
		EndTs:      &create.EndTs,
		Limit:      &limit,
	})
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, &store.BookingOverlapError{Existing: overlapping[0]}
	}

	booking, err := insertBooking(ctx, tx, create)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}
	return booking, nil
}

func insertBooking(ctx context.Context, q querier, create *store.Booking) (*store.Booking, error) {
	fields := []string{"uid", "calendar_id", "title", "description", "start_ts", "end_ts", "timezone"}
	args := []any{create.UID, create.CalendarID, create.Title, create.Description, create.StartTs, create.EndTs, create.Timezone}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}

	stmt := `INSERT INTO booking (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`
	if err := q.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return create, nil
}

func (d *DB) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	return listBookings(ctx, d.db, find)
}

func listBookings(ctx context.Context, q querier, find *store.FindBooking) ([]*store.Booking, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UID; v != nil {
		where, args = append(where, "booking.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CalendarID; v != nil {
		where, args = append(where, "booking.calendar_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StartTs; v != nil {
		where, args = append(where, "booking.end_ts > "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.EndTs; v != nil {
		where, args = append(where, "booking.start_ts < "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, uid, calendar_id, title, description, start_ts, end_ts, timezone, created_ts
		FROM booking
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY booking.start_ts ASC, booking.id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Booking, 0)
	for rows.Next() {
		var b store.Booking
		if err := rows.Scan(
			&b.ID,
			&b.UID,
			&b.CalendarID,
			&b.Title,
			&b.Description,
			&b.StartTs,
			&b.EndTs,
			&b.Timezone,
			&b.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteBooking(ctx context.Context, delete *store.DeleteBooking) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM booking WHERE uid = "+placeholder(1), delete.UID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/selfcare/store"
)

func (d *DB) CreateActionRecord(ctx context.Context, create *store.ActionRecord) (*store.ActionRecord, error) {
	if create.Params == "" {
		create.Params = "{}"
	}
	fields := []string{"user_id", "action_type", "outcome", "params", "scheduled_ts"}
	args := []any{create.UserID, create.ActionType, create.Outcome, create.Params, create.ScheduledTs}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}

	stmt := `INSERT INTO action_record (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create action record: %w", err)
	}
	return create, nil
}

func (d *DB) ListActionRecords(ctx context.Context, find *store.FindActionRecord) ([]*store.ActionRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "action_record.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ActionType; v != nil {
		where, args = append(where, "action_record.action_type = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, user_id, action_type, outcome, params::text, scheduled_ts, created_ts
		FROM action_record
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY action_record.created_ts DESC, action_record.id DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action records: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ActionRecord, 0)
	for rows.Next() {
		var r store.ActionRecord
		var scheduledTs sql.NullInt64
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.ActionType,
			&r.Outcome,
			&r.Params,
			&scheduledTs,
			&r.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}
		if scheduledTs.Valid {
			r.ScheduledTs = &scheduledTs.Int64
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

package rank

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// SQLiteTier is the fast device-local tier.
type SQLiteTier struct {
	db *sql.DB
}

func NewSQLiteTier(db *sql.DB) *SQLiteTier {
	return &SQLiteTier{db: db}
}

func (t *SQLiteTier) Get(ctx context.Context, scope Scope) (Entry, bool, error) {
	var idsJSON string
	var e Entry
	err := t.db.QueryRowContext(ctx, `
		SELECT ids, updated_at_ms FROM manual_ranks
		WHERE user_id = ? AND truck_id = ? AND group_key = ?`,
		scope.UserID, scope.TruckID, scope.GroupKey,
	).Scan(&idsJSON, &e.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal([]byte(idsJSON), &e.Order); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (t *SQLiteTier) Put(ctx context.Context, scope Scope, e Entry) error {
	ids, err := json.Marshal(e.Order)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO manual_ranks (user_id, truck_id, group_key, ids, updated_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, truck_id, group_key) DO UPDATE SET
			ids           = excluded.ids,
			updated_at_ms = excluded.updated_at_ms`,
		scope.UserID, scope.TruckID, scope.GroupKey, string(ids), e.UpdatedAtMs)
	return err
}

package rank

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"foodtruck-kds/internal/common/db"
)

// PGTier is the shared, eventually consistent tier. Other devices write
// the same rows; last write by updated_at_ms wins at read time.
type PGTier struct {
	conn *db.Conn
}

func NewPGTier(conn *db.Conn) *PGTier {
	return &PGTier{conn: conn}
}

// EnsureSchema creates the shared table idempotently.
func (t *PGTier) EnsureSchema(ctx context.Context) error {
	_, err := t.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS manual_ranks (
			user_id       text   NOT NULL,
			truck_id      text   NOT NULL,
			group_key     text   NOT NULL,
			ids           jsonb  NOT NULL,
			updated_at_ms bigint NOT NULL,
			PRIMARY KEY (user_id, truck_id, group_key)
		)`)
	return err
}

func (t *PGTier) Get(ctx context.Context, scope Scope) (Entry, bool, error) {
	var idsJSON []byte
	var e Entry
	err := t.conn.QueryRow(ctx, `
		SELECT ids, updated_at_ms FROM manual_ranks
		WHERE user_id = $1 AND truck_id = $2 AND group_key = $3`,
		scope.UserID, scope.TruckID, scope.GroupKey,
	).Scan(&idsJSON, &e.UpdatedAtMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal(idsJSON, &e.Order); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (t *PGTier) Put(ctx context.Context, scope Scope, e Entry) error {
	ids, err := json.Marshal(e.Order)
	if err != nil {
		return err
	}
	_, err = t.conn.Exec(ctx, `
		INSERT INTO manual_ranks (user_id, truck_id, group_key, ids, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, truck_id, group_key) DO UPDATE SET
			ids           = excluded.ids,
			updated_at_ms = excluded.updated_at_ms`,
		scope.UserID, scope.TruckID, scope.GroupKey, ids, e.UpdatedAtMs)
	return err
}

package optimistic

import (
	"context"
	"database/sql"

	"foodtruck-kds/internal/domain"
)

// SQLiteStore persists patches in the device database so an unconfirmed
// action survives a reload.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Patch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, expected_status, milestone, milestone_at_ms, ts FROM optimistic_patches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patches []Patch
	for rows.Next() {
		var p Patch
		var status, milestone string
		if err := rows.Scan(&p.OrderID, &status, &milestone, &p.MilestoneAtMs, &p.TS); err != nil {
			return nil, err
		}
		p.ExpectedStatus = domain.KitchenStatus(status)
		p.Milestone = domain.Milestone(milestone)
		patches = append(patches, p)
	}
	return patches, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, p Patch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO optimistic_patches (order_id, expected_status, milestone, milestone_at_ms, ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			expected_status = excluded.expected_status,
			milestone       = excluded.milestone,
			milestone_at_ms = excluded.milestone_at_ms,
			ts              = excluded.ts`,
		p.OrderID, string(p.ExpectedStatus), string(p.Milestone), p.MilestoneAtMs, p.TS)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM optimistic_patches WHERE order_id = ?`, orderID)
	return err
}

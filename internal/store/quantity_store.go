package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/pullsheet/internal/db"
	"github.com/vbonduro/pullsheet/internal/domain"
)

// QuantityStore persists per-user ledger rows. Rows are keyed uniquely by
// (user_id, category, item_name).
type QuantityStore struct {
	db *db.DB
}

func NewQuantityStore(d *db.DB) *QuantityStore {
	return &QuantityStore{db: d}
}

func (s *QuantityStore) FetchLedger(ctx context.Context, userID string) ([]domain.QuantityRow, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT user_id, category, item_name, qty, restock, updated_at FROM quantities
		WHERE user_id = ? ORDER BY category ASC, item_name ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var out []domain.QuantityRow
	for rows.Next() {
		var r domain.QuantityRow
		if err := rows.Scan(&r.UserID, &r.Category, &r.ItemName, &r.Quantity, &r.Restock, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}

	return out, nil
}

// UpsertLedgerRow writes only the fields present in changes. Writing the same
// values twice updates the same row.
func (s *QuantityStore) UpsertLedgerRow(ctx context.Context, userID, category, itemName string, changes domain.Changes, at time.Time) error {
	if changes.Empty() {
		return nil
	}

	qty, restock := 0, false
	set := []string{"updated_at = excluded.updated_at"}
	if changes.Quantity != nil {
		qty = *changes.Quantity
		set = append(set, "qty = excluded.qty")
	}
	if changes.Restock != nil {
		restock = *changes.Restock
		set = append(set, "restock = excluded.restock")
	}

	query := `
		INSERT INTO quantities (user_id, category, item_name, qty, restock, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, category, item_name) DO UPDATE SET ` + strings.Join(set, ", ")

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), userID, category, itemName, qty, restock, at.UTC()); err != nil {
		return fmt.Errorf("failed to upsert ledger row: %w", err)
	}
	return nil
}

// BulkZeroQuantities sets every quantity of the user to zero in one statement.
// Restock flags are left untouched.
func (s *QuantityStore) BulkZeroQuantities(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE quantities SET qty = 0, updated_at = ? WHERE user_id = ?
	`), at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to zero quantities: %w", err)
	}
	return nil
}

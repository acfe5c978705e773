package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// GetSession reads a session inside the transaction. Returns nil, nil when missing.
func (tx *Tx) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := tx.tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM manual_test_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetItem reads an item inside the transaction. Returns nil, nil when missing.
func (tx *Tx) GetItem(ctx context.Context, itemID int64) (*models.Item, error) {
	row := tx.tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM manual_test_items WHERE id = ?`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// SetItemStatus writes an item's status, error description and tested time.
func (tx *Tx) SetItemStatus(ctx context.Context, itemID int64, status models.ItemStatus, desc *string, testedAt time.Time) error {
	_, err := tx.tx.ExecContext(ctx, `
	UPDATE manual_test_items
	SET status = ?, error_description = ?, tested_at = ?
	WHERE id = ?`,
		string(status), toNullString(desc), testedAt.UnixMilli(), itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}
	return nil
}

// NextItemIndex returns one past the highest index in the session, or 0.
func (tx *Tx) NextItemIndex(ctx context.Context, sessionID string) (int, error) {
	var next int
	err := tx.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(item_index), -1) + 1 FROM manual_test_items WHERE session_id = ?`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next item index: %w", err)
	}
	return next, nil
}

// InsertItem adds an item and sets its ID.
func (tx *Tx) InsertItem(ctx context.Context, item *models.Item) error {
	res, err := tx.tx.ExecContext(ctx, `
	INSERT INTO manual_test_items (session_id, item_index, category, title, status, is_custom)
	VALUES (?, ?, ?, ?, ?, ?)`,
		item.SessionID, item.Index, item.Category, item.Title, string(item.Status), item.IsCustom,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	if item.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read item id: %w", err)
	}
	return nil
}

// DeleteItem removes an item row.
func (tx *Tx) DeleteItem(ctx context.Context, itemID int64) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM manual_test_items WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// AdjustCounters applies a counter delta to a session in a single statement.
func (tx *Tx) AdjustCounters(ctx context.Context, sessionID string, d models.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	_, err := tx.tx.ExecContext(ctx, `
	UPDATE manual_test_sessions
	SET total_items   = total_items + ?,
	    passed_items  = passed_items + ?,
	    failed_items  = failed_items + ?,
	    skipped_items = skipped_items + ?
	WHERE session_id = ?`,
		d.Total, d.Passed, d.Failed, d.Skipped, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust session counters: %w", err)
	}
	return nil
}

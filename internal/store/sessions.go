package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// DefaultSessionLimit caps session listings when no limit is given.
const DefaultSessionLimit = 20

// CreateSession inserts a session and its seeded items in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session, items []models.Item) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO manual_test_sessions (
			session_id, project_id, status, started_at, total_items,
			passed_items, failed_items, skipped_items, created_by, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.ProjectID, string(sess.Status), sess.StartedAt.UnixMilli(), sess.Total,
			sess.Passed, sess.Failed, sess.Skipped, toNullString(sess.CreatedBy), toNullString(sess.Notes),
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		stmt, err := tx.tx.PrepareContext(ctx, `
		INSERT INTO manual_test_items (session_id, item_index, category, title, status, is_custom)
		VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare item insert: %w", err)
		}
		defer stmt.Close()

		for i := range items {
			res, err := stmt.ExecContext(ctx, sess.ID, items[i].Index, items[i].Category,
				items[i].Title, string(items[i].Status), items[i].IsCustom)
			if err != nil {
				return fmt.Errorf("failed to insert item %d: %w", items[i].Index, err)
			}
			if items[i].ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to read item id: %w", err)
			}
			items[i].SessionID = sess.ID
		}
		return nil
	})
}

// GetSession retrieves a session by ID. Returns nil, nil when it does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
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

// ListSessions returns sessions newest first, narrowed by the filter.
func (s *Store) ListSessions(ctx context.Context, f models.SessionFilter) ([]models.Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSessionLimit
	}

	q := s.sql.Select(sessionColumns).From("manual_test_sessions")
	if f.ProjectID != "" {
		q = q.Where(sq.Eq{"project_id": f.ProjectID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	q = q.OrderBy("started_at DESC", "rowid DESC").Limit(uint64(limit))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// UpdateSession applies a partial update. A status of completed or cancelled
// stamps completed_at with now. Returns nil, nil when the session does not exist.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, upd models.SessionUpdate, now time.Time) (*models.Session, error) {
	var out *models.Session
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.UpdateSession(ctx, sessionID, upd, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSession is the transactional form of Store.UpdateSession.
func (tx *Tx) UpdateSession(ctx context.Context, sessionID string, upd models.SessionUpdate, now time.Time) (*models.Session, error) {
	q := tx.sql.Update("manual_test_sessions").Where(sq.Eq{"session_id": sessionID})
	if upd.Status != nil {
		q = q.Set("status", string(*upd.Status))
		if upd.Status.Terminal() {
			q = q.Set("completed_at", now.UnixMilli())
		}
	}
	if upd.Notes != nil {
		q = q.Set("notes", *upd.Notes)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build session update: %w", err)
	}
	res, err := tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return tx.GetSession(ctx, sessionID)
}

// ListItems returns a session's items ordered by index.
func (s *Store) ListItems(ctx context.Context, sessionID string) ([]models.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM manual_test_items WHERE session_id = ? ORDER BY item_index`, sessionID)
}

// FailedItems returns a session's failed items ordered by category, then index.
func (s *Store) FailedItems(ctx context.Context, sessionID string) ([]models.Item, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM manual_test_items
		WHERE session_id = ? AND status = 'failed'
		ORDER BY category, item_index`, sessionID)
}

// SetItemsCardID records the tracker card created for a group of items.
func (s *Store) SetItemsCardID(ctx context.Context, itemIDs []int64, cardID string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		query, args, err := tx.sql.Update("manual_test_items").
			Set("kanban_card_id", cardID).
			Where(sq.Eq{"id": itemIDs}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build card update: %w", err)
		}
		if _, err := tx.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to set card id: %w", err)
		}
		return nil
	})
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

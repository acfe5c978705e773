package store

import (
	"database/sql"
	"time"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `session_id, project_id, status, started_at, completed_at,
	total_items, passed_items, failed_items, skipped_items, created_by, notes`

const itemColumns = `id, session_id, item_index, category, title, status,
	error_description, is_custom, tested_at, kanban_card_id`

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		sess        models.Session
		status      string
		startedAt   int64
		completedAt sql.NullInt64
		createdBy   sql.NullString
		notes       sql.NullString
	)
	err := row.Scan(
		&sess.ID, &sess.ProjectID, &status, &startedAt, &completedAt,
		&sess.Total, &sess.Passed, &sess.Failed, &sess.Skipped, &createdBy, &notes,
	)
	if err != nil {
		return nil, err
	}
	sess.Status = models.SessionStatus(status)
	sess.StartedAt = fromMillis(startedAt)
	sess.CompletedAt = nullTime(completedAt)
	sess.CreatedBy = nullString(createdBy)
	sess.Notes = nullString(notes)
	return &sess, nil
}

func scanItem(row scanner) (*models.Item, error) {
	var (
		item     models.Item
		category sql.NullString
		status   string
		desc     sql.NullString
		testedAt sql.NullInt64
		cardID   sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.SessionID, &item.Index, &category, &item.Title, &status,
		&desc, &item.IsCustom, &testedAt, &cardID,
	)
	if err != nil {
		return nil, err
	}
	item.Category = category.String
	item.Status = models.ItemStatus(status)
	item.ErrorDescription = nullString(desc)
	item.TestedAt = nullTime(testedAt)
	item.CardID = nullString(cardID)
	return &item, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// EnsureProject creates a placeholder project named after its ID if absent.
func (tx *Tx) EnsureProject(ctx context.Context, projectID string, now time.Time) error {
	_, err := tx.tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		projectID, projectID, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to ensure project: %w", err)
	}
	return nil
}

// UpsertProjects writes registry projects, overwriting name, base URL and port.
func (s *Store) UpsertProjects(ctx context.Context, projects []models.Project) error {
	now := time.Now().UnixMilli()
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, p := range projects {
			var port sql.NullInt64
			if p.Port != nil {
				port = sql.NullInt64{Int64: int64(*p.Port), Valid: true}
			}
			_, err := tx.tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, base_url, port, created_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url, port = excluded.port`,
				p.ID, p.Name, toNullString(p.BaseURL), port, now)
			if err != nil {
				return fmt.Errorf("failed to upsert project %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// ListProjects returns all projects ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, base_url, port FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetProject returns a project by ID, or nil, nil when unknown.
func (s *Store) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, base_url, port FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanProject(row scanner) (*models.Project, error) {
	var (
		p       models.Project
		baseURL sql.NullString
		port    sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &baseURL, &port); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.BaseURL = nullString(baseURL)
	if port.Valid {
		v := int(port.Int64)
		p.Port = &v
	}
	return &p, nil
}

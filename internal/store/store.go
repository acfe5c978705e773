package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// Store manages the SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	lock   *flock.Flock
	sql    sq.StatementBuilderType

	// mu serializes writers so counter read-modify-write cycles never interleave.
	mu sync.Mutex
}

// New opens (or creates) the SQLite database, takes the process lock next to
// it and runs migrations.
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	var lock *flock.Flock
	if dbPath != memoryPath {
		lock = flock.New(dbPath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire database lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("database %s is in use by another process", dbPath)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
		lock:   lock,
		sql:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("Store initialized successfully")
	return s, nil
}

// dsn applies the connection pragmas on every pooled connection.
func dsn(path string) string {
	pragmas := []string{
		"busy_timeout(5000)",
		"foreign_keys(1)",
	}
	if path != memoryPath {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	if strings.HasPrefix(path, "file:") {
		return path + "?" + q.Encode()
	}
	return "file:" + path + "?" + q.Encode()
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// Close closes the database connection and releases the process lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	unlock(s.lock)
	return err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying database connection (for testing).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tx is a write transaction. Writers are serialized by the store.
type Tx struct {
	tx  *sql.Tx
	sql sq.StatementBuilderType
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx, sql: s.sql}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

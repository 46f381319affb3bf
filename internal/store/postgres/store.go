// Package postgres implements the snapshot store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	position      BIGINT PRIMARY KEY,
	id            TEXT NOT NULL,
	title         TEXT NOT NULL,
	lastchange_at TEXT NOT NULL,
	content       TEXT
)`

// Store persists the page snapshot in a single table. The position
// column preserves listing order; Save replaces all rows in one
// transaction, mirroring the whole-file semantics of the file store.
type Store struct {
	db     DB
	logger *zap.Logger
}

// New connects to PostgreSQL, verifies the connection, and ensures the
// snapshot table exists.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewWithDB(pool, logger)
	if _, err := s.db.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure pages table: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection; used by tests.
func NewWithDB(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Save replaces the stored snapshot with the given collection.
func (s *Store) Save(ctx context.Context, pages hackmd.PageList) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM pages`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for i, p := range pages {
		_, err := tx.Exec(ctx,
			`INSERT INTO pages (position, id, title, lastchange_at, content) VALUES ($1, $2, $3, $4, $5)`,
			i, p.ID, p.Title, p.LastChangeAt, p.Content,
		)
		if err != nil {
			return fmt.Errorf("insert page %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	s.logger.Info("snapshot written", zap.Int("pages", len(pages)))
	return nil
}

// Load reads the snapshot in listing order.
func (s *Store) Load(ctx context.Context) (hackmd.PageList, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, lastchange_at, content FROM pages ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	pages := hackmd.PageList{}
	for rows.Next() {
		var p hackmd.Page
		if err := rows.Scan(&p.ID, &p.Title, &p.LastChangeAt, &p.Content); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return pages, nil
}

// Exists reports whether any snapshot rows are present.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check snapshot existence: %w", err)
	}
	return exists, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

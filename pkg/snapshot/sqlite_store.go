package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/cirrus-iac/cirrus/pkg/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Save persists a freshly synthesized document for its stack.
func (s *SQLiteStore) Save(ctx context.Context, doc *core.Document) (*Snapshot, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	data, err := doc.EncodeJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	snap := &Snapshot{
		ID:            uuid.New().String(),
		StackName:     doc.StackName,
		Template:      string(data),
		ResourceCount: doc.Resources.Len(),
		CreatedAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO snapshots (id, stack_name, template, resource_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		snap.ID,
		snap.StackName,
		snap.Template,
		snap.ResourceCount,
		snap.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return snap, nil
}

// Latest returns the most recent snapshot for the stack, or nil when the
// stack has never been snapshotted. Ties on created_at break by insertion
// recency via rowid.
func (s *SQLiteStore) Latest(ctx context.Context, stackName string) (*Snapshot, error) {
	query := `
		SELECT id, stack_name, template, resource_count, created_at
		FROM snapshots
		WHERE stack_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, query, stackName).Scan(
		&snap.ID,
		&snap.StackName,
		&snap.Template,
		&snap.ResourceCount,
		&snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// Get returns a snapshot by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	query := `
		SELECT id, stack_name, template, resource_count, created_at
		FROM snapshots
		WHERE id = ?
	`
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&snap.ID,
		&snap.StackName,
		&snap.Template,
		&snap.ResourceCount,
		&snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snap, nil
}

// List returns snapshots for the stack, newest first.
func (s *SQLiteStore) List(ctx context.Context, stackName string, limit, offset int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, stack_name, template, resource_count, created_at
		FROM snapshots
		WHERE stack_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, stackName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*Snapshot{}
	for rows.Next() {
		snap := &Snapshot{}
		if err := rows.Scan(
			&snap.ID,
			&snap.StackName,
			&snap.Template,
			&snap.ResourceCount,
			&snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Prune deletes all but the newest keep snapshots for the stack.
func (s *SQLiteStore) Prune(ctx context.Context, stackName string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
		DELETE FROM snapshots
		WHERE stack_name = ?
		AND id NOT IN (
			SELECT id FROM snapshots
			WHERE stack_name = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`
	result, err := s.db.ExecContext(ctx, query, stackName, stackName, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// HealthCheck verifies the store is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrublog-systems/scrublog/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store backed by PostgreSQL. The composite
// primary key (tenant_id, log_id) enforces the at-most-one-entry
// invariant at the database level.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(connString string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Put upserts the entry. Redelivered envelopes overwrite the existing
// row for the same (tenant_id, log_id) instead of creating a second one.
func (s *PostgresStore) Put(ctx context.Context, entry *models.ProcessedLogEntry) error {
	query := `
		INSERT INTO processed_logs (tenant_id, log_id, source, original_text, modified_text, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, log_id) DO UPDATE SET
			source        = EXCLUDED.source,
			original_text = EXCLUDED.original_text,
			modified_text = EXCLUDED.modified_text,
			processed_at  = EXCLUDED.processed_at
	`

	_, err := s.pool.Exec(ctx, query,
		entry.TenantID, entry.LogID, entry.Source,
		entry.OriginalText, entry.ModifiedText, entry.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}

	return nil
}

// Get fetches one entry by its composite key.
func (s *PostgresStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedLogEntry, error) {
	query := `
		SELECT tenant_id, log_id, source, original_text, modified_text, processed_at
		FROM processed_logs
		WHERE tenant_id = $1 AND log_id = $2
	`

	entry := &models.ProcessedLogEntry{}
	err := s.pool.QueryRow(ctx, query, tenantID, logID).Scan(
		&entry.TenantID, &entry.LogID, &entry.Source,
		&entry.OriginalText, &entry.ModifiedText, &entry.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return entry, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, allowing the store
// to work with either a database connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     DBTX
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db DBTX, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "history_store"),
	}
}

// WithTx returns a store that runs its queries in tx
func (s *PostgresStore) WithTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{
		db:     tx,
		logger: s.logger,
	}
}

// Save implements Store
func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO upload_history (id, task_id, path, status, url, message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.TaskID,
		record.Path,
		string(record.Status),
		record.URL,
		record.Message,
		record.CompletedAt.UTC(),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to save upload record",
			"record_id", record.ID,
			"task_id", record.TaskID,
			"error", err)
		return fmt.Errorf("failed to save upload record: %w", mapError(err))
	}

	return nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, task_id, path, status, url, message, completed_at
		FROM upload_history
		ORDER BY completed_at DESC, task_id DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query upload records", "error", err)
		return nil, fmt.Errorf("failed to query upload records: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			record Record
			status string
		)
		if err := rows.Scan(
			&record.ID,
			&record.TaskID,
			&record.Path,
			&status,
			&record.URL,
			&record.Message,
			&record.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload record: %w", err)
		}
		record.Status = Status(status)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload records: %w", err)
	}

	return records, nil
}

// Open connects to PostgreSQL through the pgx database/sql driver and
// verifies the connection.
func Open(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool with reasonable defaults
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// mapError maps PostgreSQL constraint errors to history errors, wrapping
// the original to preserve context.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case checkViolationCode:
			return fmt.Errorf("%w: check constraint violation (%s): %v",
				ErrInvalidRecord, pgErr.ConstraintName, err)
		}
	}
	return err
}

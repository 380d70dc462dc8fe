package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"nftform/internal/registration/models"
	"nftform/pkg/platform/sentinel"
)

// Schema is the table definition the Postgres store expects. The service does
// not apply it; deployments and integration tests do.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

const selectColumns = `SELECT email, name, prompt, twitter, accesscode, premium FROM nftform`

// PostgresStore persists registrations in the nftform table. It works with
// either the pgx stdlib driver or lib/pq behind database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts record. A duplicate email surfaces as sentinel.ErrConflict
// from the primary key, which is the authoritative uniqueness check.
func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("registration record is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nftform (email, name, prompt, twitter, accesscode, premium)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.Email, record.Name, record.Prompt, record.Twitter, record.AccessCode, record.Premium)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE email = $1`, email)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find registration by email: %w", err)
	}
	return record, nil
}

// FindByEmailAndCode requires an exact match on both columns. More than one
// row breaks the one-record-per-email invariant and is reported as
// sentinel.ErrInvalidState instead of picking a row.
func (s *PostgresStore) FindByEmailAndCode(ctx context.Context, email, code string) (*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE email = $1 AND accesscode = $2 LIMIT 2`, email, code)
	if err != nil {
		return nil, fmt.Errorf("find registration by email and code: %w", err)
	}
	defer rows.Close()

	var found []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		found = append(found, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, sentinel.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%d registrations for one email: %w", len(found), sentinel.ErrInvalidState)
	}
}

// Ping reports whether the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	record := &models.Record{}
	if err := row.Scan(
		&record.Email,
		&record.Name,
		&record.Prompt,
		&record.Twitter,
		&record.AccessCode,
		&record.Premium,
	); err != nil {
		return nil, err
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

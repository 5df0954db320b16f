package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/custodia-labs/sleepsync/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.CredentialStore = (*Store)(nil)

const selectCredential = `SELECT user_id, source_access_token, source_refresh_token, source_token_expiry,
	sink_access_token, sink_refresh_token, sink_token_expiry, sink_api_url, updated_at
	FROM user_credentials`

// Store persists user credentials in PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens dsn with the pgx driver and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an open database without running migrations.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Find retrieves a user's credential.
func (s *Store) Find(ctx context.Context, userID string) (*domain.UserCredential, error) {
	cred, err := scanCredential(s.db.QueryRowContext(ctx, selectCredential+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// FindEligible returns credentials eligible at now, ordered by user id.
func (s *Store) FindEligible(ctx context.Context, now time.Time) ([]domain.UserCredential, error) {
	rows, err := s.db.QueryContext(ctx, selectCredential+`
		WHERE btrim(source_access_token) <> ''
		  AND (source_token_expiry IS NULL OR source_token_expiry > $1 OR source_refresh_token <> '')
		ORDER BY user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var creds []domain.UserCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return creds, nil
}

// Upsert writes the non-nil fields of update, creating the row if needed.
// The row is locked for the read-modify-write.
func (s *Store) Upsert(ctx context.Context, userID string, update domain.CredentialUpdate) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cred, err := scanCredential(tx.QueryRowContext(ctx, selectCredential+` WHERE user_id = $1 FOR UPDATE`, userID))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cred = &domain.UserCredential{UserID: userID}
	case err != nil:
		return err
	}

	cred.Apply(update)
	cred.UpdatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_credentials (user_id, source_access_token, source_refresh_token, source_token_expiry,
			sink_access_token, sink_refresh_token, sink_token_expiry, sink_api_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			source_access_token = EXCLUDED.source_access_token,
			source_refresh_token = EXCLUDED.source_refresh_token,
			source_token_expiry = EXCLUDED.source_token_expiry,
			sink_access_token = EXCLUDED.sink_access_token,
			sink_refresh_token = EXCLUDED.sink_refresh_token,
			sink_token_expiry = EXCLUDED.sink_token_expiry,
			sink_api_url = EXCLUDED.sink_api_url,
			updated_at = EXCLUDED.updated_at`,
		cred.UserID,
		cred.SourceAccessToken, cred.SourceRefreshToken, nullTime(cred.SourceTokenExpiry),
		cred.SinkAccessToken, cred.SinkRefreshToken, nullTime(cred.SinkTokenExpiry),
		cred.SinkAPIURL, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*domain.UserCredential, error) {
	var cred domain.UserCredential
	var sourceExpiry, sinkExpiry sql.NullTime

	err := row.Scan(&cred.UserID,
		&cred.SourceAccessToken, &cred.SourceRefreshToken, &sourceExpiry,
		&cred.SinkAccessToken, &cred.SinkRefreshToken, &sinkExpiry,
		&cred.SinkAPIURL, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if sourceExpiry.Valid {
		cred.SourceTokenExpiry = sourceExpiry.Time
	}
	if sinkExpiry.Valid {
		cred.SinkTokenExpiry = sinkExpiry.Time
	}
	return &cred, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

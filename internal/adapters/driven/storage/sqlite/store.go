package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sleepsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// DefaultFileName is the database file created in the default data directory.
const DefaultFileName = "sleepsync.db"

// Store is a unified SQLite-based storage that provides access to the
// credential and scheduler stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens (creating if needed) the database at path.
// If path is empty, defaults to ~/.sleepsync/data/sleepsync.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sleepsync", "data", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
		now:  time.Now,
	}

	if err := s.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CredentialStore returns a CredentialStore interface backed by this store.
func (s *Store) CredentialStore() driven.CredentialStore {
	return &credentialStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate applies pending goose migrations from fsys.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		logger.With("path", s.path, "version", r.Source.Version).Debug("applied sqlite migration")
	}
	return nil
}

// ==================== Credential Store ====================

// credentialStore implements driven.CredentialStore.
type credentialStore struct {
	store *Store
}

var _ driven.CredentialStore = (*credentialStore)(nil)

const credentialColumns = `user_id, source_access_token, source_refresh_token, source_token_expiry,
	sink_access_token, sink_refresh_token, sink_token_expiry, sink_api_url, updated_at`

// Find retrieves a user's credential.
func (s *credentialStore) Find(ctx context.Context, userID string) (*domain.UserCredential, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM user_credentials WHERE user_id = ?", userID)
	return scanCredential(row)
}

// FindEligible returns credentials eligible at now, ordered by user id.
func (s *credentialStore) FindEligible(ctx context.Context, now time.Time) ([]domain.UserCredential, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+credentialColumns+`
		FROM user_credentials
		WHERE TRIM(source_access_token) != ''
		  AND (source_token_expiry IS NULL OR source_token_expiry > ? OR source_refresh_token != '')
		ORDER BY user_id
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying eligible credentials: %w", err)
	}
	defer rows.Close()

	var creds []domain.UserCredential //nolint:prealloc // size unknown from query
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}
	return creds, nil
}

// Upsert writes the non-nil fields of update, creating the row if needed.
// The read and write run in one transaction.
func (s *credentialStore) Upsert(ctx context.Context, userID string, update domain.CredentialUpdate) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cred, err := scanCredential(tx.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM user_credentials WHERE user_id = ?", userID))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cred = &domain.UserCredential{UserID: userID}
	case err != nil:
		return err
	}

	cred.Apply(update)
	cred.UpdatedAt = s.store.now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			source_access_token = excluded.source_access_token,
			source_refresh_token = excluded.source_refresh_token,
			source_token_expiry = excluded.source_token_expiry,
			sink_access_token = excluded.sink_access_token,
			sink_refresh_token = excluded.sink_refresh_token,
			sink_token_expiry = excluded.sink_token_expiry,
			sink_api_url = excluded.sink_api_url,
			updated_at = excluded.updated_at
	`, cred.UserID,
		cred.SourceAccessToken, cred.SourceRefreshToken, unixMillis(cred.SourceTokenExpiry),
		cred.SinkAccessToken, cred.SinkRefreshToken, unixMillis(cred.SinkTokenExpiry),
		cred.SinkAPIURL, cred.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credential: %w", err)
	}
	return nil
}

// Close closes the shared database connection.
func (s *credentialStore) Close() error {
	return s.store.Close()
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCredential scans one user_credentials row.
func scanCredential(row rowScanner) (*domain.UserCredential, error) {
	var cred domain.UserCredential
	var sourceExpiry, sinkExpiry sql.NullInt64
	var updatedAt string

	if err := row.Scan(&cred.UserID,
		&cred.SourceAccessToken, &cred.SourceRefreshToken, &sourceExpiry,
		&cred.SinkAccessToken, &cred.SinkRefreshToken, &sinkExpiry,
		&cred.SinkAPIURL, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	cred.SourceTokenExpiry = fromUnixMillis(sourceExpiry)
	cred.SinkTokenExpiry = fromUnixMillis(sinkExpiry)
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		cred.UpdatedAt = t
	}
	return &cred, nil
}

// unixMillis returns nil for the zero time, otherwise milliseconds since the epoch.
func unixMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

// fromUnixMillis is the inverse of unixMillis.
func fromUnixMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

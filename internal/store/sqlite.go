package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/doronbehar/mail/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateAccount inserts a new account and assigns the generated row ID.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *model.Account) error {
	aliasName, aliasEmail := aliasColumns(account.Alias)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			user_id, name, email,
			inbound_host, inbound_port, inbound_security, inbound_user, inbound_password,
			outbound_host, outbound_port, outbound_security, outbound_user, outbound_password,
			alias_name, alias_email
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.UserID, account.Name, account.Email,
		account.Inbound.Host, account.Inbound.Port, account.Inbound.Security,
		account.Inbound.User, account.Inbound.Password,
		account.Outbound.Host, account.Outbound.Port, account.Outbound.Security,
		account.Outbound.User, account.Outbound.Password,
		aliasName, aliasEmail,
	)
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new account id: %w", err)
	}
	account.ID = id

	return nil
}

// UpdateAccount replaces all mutable columns of an existing account.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	aliasName, aliasEmail := aliasColumns(account.Alias)

	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			user_id = ?, name = ?, email = ?,
			inbound_host = ?, inbound_port = ?, inbound_security = ?,
			inbound_user = ?, inbound_password = ?,
			outbound_host = ?, outbound_port = ?, outbound_security = ?,
			outbound_user = ?, outbound_password = ?,
			alias_name = ?, alias_email = ?,
			updated_at = ?
		WHERE id = ?`,
		account.UserID, account.Name, account.Email,
		account.Inbound.Host, account.Inbound.Port, account.Inbound.Security,
		account.Inbound.User, account.Inbound.Password,
		account.Outbound.Host, account.Outbound.Port, account.Outbound.Security,
		account.Outbound.User, account.Outbound.Password,
		aliasName, aliasEmail,
		time.Now().UTC(),
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account %d: %w", account.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating account %d: %w", account.ID, err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// DeleteAccount removes an account; its sync tokens go with it via the
// foreign key cascade.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}
	return nil
}

// GetAccountByID retrieves a single account by its ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	row := s.db.QueryRowxContext(ctx, accountSelect+" WHERE id = ?", id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %d: %w", id, err)
	}

	return account, nil
}

// GetAccountsForUser retrieves all accounts belonging to a user, ordered
// by ID.
func (s *SQLiteStore) GetAccountsForUser(ctx context.Context, userID string) ([]*model.Account, error) {
	rows, err := s.db.QueryxContext(ctx, accountSelect+" WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts for %s: %w", userID, err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// GetSyncToken returns the stored token for (accountID, folderID), or
// nil when none has been recorded.
func (s *SQLiteStore) GetSyncToken(ctx context.Context, accountID int64, folderID string) (*model.SyncToken, error) {
	var token model.SyncToken
	err := s.db.QueryRowxContext(ctx, `
		SELECT uid_validity, highest_mod_seq, max_uid
		FROM sync_tokens WHERE account_id = ? AND folder_id = ?`,
		accountID, folderID,
	).Scan(&token.UIDValidity, &token.HighestModSeq, &token.MaxUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync token for %q: %w", folderID, err)
	}

	return &token, nil
}

// SetSyncToken inserts or replaces the token for (accountID, folderID).
func (s *SQLiteStore) SetSyncToken(ctx context.Context, accountID int64, folderID string, token model.SyncToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_tokens (
			account_id, folder_id, uid_validity, highest_mod_seq, max_uid, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		accountID, folderID,
		token.UIDValidity, token.HighestModSeq, token.MaxUID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing sync token for %q: %w", folderID, err)
	}
	return nil
}

// DeleteSyncTokens drops all tokens recorded for an account.
func (s *SQLiteStore) DeleteSyncTokens(ctx context.Context, accountID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_tokens WHERE account_id = ?", accountID)
	if err != nil {
		return fmt.Errorf("deleting sync tokens for account %d: %w", accountID, err)
	}
	return nil
}

const accountSelect = `
	SELECT id, user_id, name, email,
		inbound_host, inbound_port, inbound_security, inbound_user, inbound_password,
		outbound_host, outbound_port, outbound_security, outbound_user, outbound_password,
		alias_name, alias_email
	FROM accounts`

// scanner covers both sqlx.Row and sqlx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanAccount scans one account row in accountSelect column order.
func scanAccount(row scanner) (*model.Account, error) {
	var (
		account    model.Account
		aliasName  string
		aliasEmail string
	)

	err := row.Scan(
		&account.ID, &account.UserID, &account.Name, &account.Email,
		&account.Inbound.Host, &account.Inbound.Port, &account.Inbound.Security,
		&account.Inbound.User, &account.Inbound.Password,
		&account.Outbound.Host, &account.Outbound.Port, &account.Outbound.Security,
		&account.Outbound.User, &account.Outbound.Password,
		&aliasName, &aliasEmail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account row: %w", err)
	}

	if aliasName != "" || aliasEmail != "" {
		account.Alias = &model.Alias{Name: aliasName, Email: aliasEmail}
	}

	return &account, nil
}

// aliasColumns flattens an optional alias into its two columns.
func aliasColumns(alias *model.Alias) (name, email string) {
	if alias == nil {
		return "", ""
	}
	return alias.Name, alias.Email
}

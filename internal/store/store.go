package store

import (
	"context"
	"errors"

	"github.com/doronbehar/mail/internal/model"
)

// ErrAccountNotFound is returned when an account lookup matches no row.
var ErrAccountNotFound = errors.New("account not found")

// Store defines the persistence interface for accounts, per-folder sync
// tokens, and cached server responses.
type Store interface {
	// === Accounts ===

	// CreateAccount inserts a new account and assigns its ID.
	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccount(ctx context.Context, account *model.Account) error
	// DeleteAccount removes an account together with its sync tokens.
	DeleteAccount(ctx context.Context, id int64) error
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountsForUser(ctx context.Context, userID string) ([]*model.Account, error)

	// === Sync tokens ===

	// GetSyncToken returns the stored token for (accountID, folderID),
	// or nil when none has been recorded yet.
	GetSyncToken(ctx context.Context, accountID int64, folderID string) (*model.SyncToken, error)
	SetSyncToken(ctx context.Context, accountID int64, folderID string, token model.SyncToken) error
	// DeleteSyncTokens drops all tokens recorded for an account.
	DeleteSyncTokens(ctx context.Context, accountID int64) error

	Close() error
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/doronbehar/mail/internal/model"
	"github.com/doronbehar/mail/internal/store"
)

// Encrypter seals account passwords before they reach the store.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Session is a request-scoped account memo. It is created at the start
// of a request scope, passed through lookups within it, and discarded at
// the end; it is never shared across requests.
type Session struct {
	ID     string
	UserID string

	accounts []*model.Account
	resolved bool
}

// NewSession opens a fresh session for one user's request scope.
func NewSession(userID string) *Session {
	return &Session{ID: uuid.NewString(), UserID: userID}
}

// AccountService manages account records and their encrypted
// credentials.
type AccountService struct {
	store  store.Store
	crypto Encrypter
	logger *slog.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(st store.Store, crypto Encrypter, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{store: st, crypto: crypto, logger: logger}
}

// FindByUser returns all accounts of the session's user. The first call
// hits the store; later calls within the same session reuse the memo.
func (s *AccountService) FindByUser(ctx context.Context, sess *Session) ([]*model.Account, error) {
	if sess.resolved {
		return sess.accounts, nil
	}

	accounts, err := s.store.GetAccountsForUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts for %s: %w", sess.UserID, err)
	}

	sess.accounts = accounts
	sess.resolved = true
	return accounts, nil
}

// Find returns one of the session user's accounts by ID. An ID that does
// not belong to this user is indistinguishable from a missing one.
func (s *AccountService) Find(ctx context.Context, sess *Session, id int64) (*model.Account, error) {
	accounts, err := s.FindByUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	for _, account := range accounts {
		if account.ID == id {
			return account, nil
		}
	}

	return nil, &ServiceError{
		Op:  "find account",
		Err: fmt.Errorf("no account %d for user %s", id, sess.UserID),
	}
}

// Create encrypts the inbound and outbound passwords and persists the
// account. The account's plaintext passwords are replaced in place.
func (s *AccountService) Create(ctx context.Context, sess *Session, account *model.Account) error {
	account.UserID = sess.UserID

	var err error
	if account.Inbound.Password, err = s.crypto.Encrypt(account.Inbound.Password); err != nil {
		return fmt.Errorf("encrypting inbound password: %w", err)
	}
	if account.Outbound.Password, err = s.crypto.Encrypt(account.Outbound.Password); err != nil {
		return fmt.Errorf("encrypting outbound password: %w", err)
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	// The memo predates the new account.
	sess.resolved = false
	sess.accounts = nil

	s.logger.Info("account created", "account", account.ID, "email", account.Email)
	return nil
}

// Delete removes one of the session user's accounts together with its
// sync tokens.
func (s *AccountService) Delete(ctx context.Context, sess *Session, id int64) error {
	if _, err := s.Find(ctx, sess, id); err != nil {
		return err
	}

	if err := s.store.DeleteSyncTokens(ctx, id); err != nil {
		return fmt.Errorf("deleting sync tokens: %w", err)
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	sess.resolved = false
	sess.accounts = nil

	s.logger.Info("account deleted", "account", id)
	return nil
}

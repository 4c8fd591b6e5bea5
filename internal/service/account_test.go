package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doronbehar/mail/internal/model"
	"github.com/doronbehar/mail/tests/testutil"
)

// sealingEncrypter is a toy cipher whose output is recognizable.
type sealingEncrypter struct{}

func (sealingEncrypter) Encrypt(plaintext string) (string, error) {
	return "sealed:" + plaintext, nil
}

func TestAccountServiceCreate(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := NewAccountService(st, sealingEncrypter{}, nil)
	sess := NewSession("jan")
	ctx := context.Background()

	account := &model.Account{
		Name:  "Jan",
		Email: "jan@example.org",
		Inbound: model.ServerSettings{
			Host: "imap.example.org", Port: 993, User: "jan", Password: "hunter2",
		},
		Outbound: model.ServerSettings{
			Host: "smtp.example.org", Port: 587, User: "jan", Password: "hunter2",
		},
	}
	require.NoError(t, svc.Create(ctx, sess, account))

	assert.NotZero(t, account.ID)
	assert.Equal(t, "jan", account.UserID)

	stored, err := st.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "sealed:hunter2", stored.Inbound.Password)
	assert.Equal(t, "sealed:hunter2", stored.Outbound.Password)
}

func TestSessionMemoizesAccounts(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := NewAccountService(st, sealingEncrypter{}, nil)
	sess := NewSession("jan")
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, sess, &model.Account{Name: "Jan", Email: "jan@example.org"}))

	first, err := svc.FindByUser(ctx, sess)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A row added behind the session's back stays invisible until a new
	// session starts.
	require.NoError(t, st.CreateAccount(ctx, &model.Account{UserID: "jan", Name: "Other", Email: "other@example.org"}))

	memoized, err := svc.FindByUser(ctx, sess)
	require.NoError(t, err)
	assert.Len(t, memoized, 1)

	fresh, err := svc.FindByUser(ctx, NewSession("jan"))
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestFindScopedToSessionUser(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := NewAccountService(st, sealingEncrypter{}, nil)
	ctx := context.Background()

	other := &model.Account{UserID: "someone-else", Name: "X", Email: "x@example.org"}
	require.NoError(t, st.CreateAccount(ctx, other))

	sess := NewSession("jan")
	mine := &model.Account{Name: "Jan", Email: "jan@example.org"}
	require.NoError(t, svc.Create(ctx, sess, mine))

	found, err := svc.Find(ctx, sess, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, found.ID)

	// Another user's account is indistinguishable from a missing one.
	_, err = svc.Find(ctx, sess, other.ID)
	require.Error(t, err)
	assert.True(t, IsServiceError(err))

	_, err = svc.Find(ctx, sess, 99999)
	require.Error(t, err)
	assert.True(t, IsServiceError(err))
}

func TestAccountServiceDelete(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := NewAccountService(st, sealingEncrypter{}, nil)
	sess := NewSession("jan")
	ctx := context.Background()

	account := &model.Account{Name: "Jan", Email: "jan@example.org"}
	require.NoError(t, svc.Create(ctx, sess, account))
	require.NoError(t, st.SetSyncToken(ctx, account.ID, "INBOX", model.SyncToken{UIDValidity: 1, MaxUID: 5}))

	require.NoError(t, svc.Delete(ctx, sess, account.ID))

	accounts, err := svc.FindByUser(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	token, err := st.GetSyncToken(ctx, account.ID, "INBOX")
	require.NoError(t, err)
	assert.Nil(t, token)
}

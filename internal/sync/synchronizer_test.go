package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/imap/imaptest"
	"github.com/doronbehar/mail/internal/model"
)

func newUIDs(resp *Response) []uint32 {
	var uids []uint32
	for _, msg := range resp.New {
		uids = append(uids, msg.UID)
	}
	return uids
}

func changedUIDs(resp *Response) []uint32 {
	var uids []uint32
	for _, msg := range resp.Changed {
		uids = append(uids, msg.UID)
	}
	return uids
}

func TestFullSyncReportsEverythingNew(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10, `\Seen`)
	inbox.AddMessage(2, 11)
	inbox.AddMessage(3, 12)

	s := NewSynchronizer(nil)
	resp, err := s.Sync(context.Background(), client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2, 3}, newUIDs(resp))
	assert.Empty(t, resp.Changed)
	assert.Empty(t, resp.Vanished)
	assert.Equal(t, uint32(1), resp.Token.UIDValidity)
	assert.Equal(t, uint32(3), resp.Token.MaxUID)
	assert.Equal(t, uint64(12), resp.Token.HighestModSeq)
}

func TestResyncWithFreshTokenIsEmpty(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)
	inbox.AddMessage(2, 11)
	inbox.AddMessage(3, 12)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	second, err := s.Sync(ctx, client, Request{
		Folder:    "INBOX",
		Token:     &first.Token,
		KnownUIDs: []uint32{1, 2, 3},
	})
	require.NoError(t, err)

	assert.Empty(t, second.New)
	assert.Empty(t, second.Changed)
	assert.Empty(t, second.Vanished)
	assert.Equal(t, first.Token, second.Token)
}

func TestIncrementalSyncPartitionsNewAndChanged(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)
	inbox.AddMessage(2, 11)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	// A flag change on an old message and a brand-new message.
	inbox.RemoveMessage(1)
	inbox.AddMessage(1, 13, `\Seen`)
	inbox.AddMessage(7, 14)

	second, err := s.Sync(ctx, client, Request{Folder: "INBOX", Token: &first.Token})
	require.NoError(t, err)

	assert.Equal(t, []uint32{7}, newUIDs(second))
	assert.Equal(t, []uint32{1}, changedUIDs(second))
	assert.Equal(t, []string{`\Seen`}, second.Changed[0].Flags)
	assert.Equal(t, uint32(7), second.Token.MaxUID)
	assert.Equal(t, uint64(14), second.Token.HighestModSeq)
}

func TestStaleEpochForcesFullResync(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.UIDValidity = 9
	inbox.AddMessage(1, 10)
	inbox.AddMessage(2, 11)

	stale := &model.SyncToken{UIDValidity: 3, HighestModSeq: 11, MaxUID: 2}

	s := NewSynchronizer(nil)
	resp, err := s.Sync(context.Background(), client, Request{Folder: "INBOX", Token: stale})
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2}, newUIDs(resp))
	assert.Equal(t, uint32(9), resp.Token.UIDValidity)
}

func TestVanishedDetection(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)
	inbox.AddMessage(2, 11)
	inbox.AddMessage(3, 12)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	inbox.RemoveMessage(2)
	inbox.RemoveMessage(1)

	second, err := s.Sync(ctx, client, Request{
		Folder:    "INBOX",
		Token:     &first.Token,
		KnownUIDs: []uint32{3, 2, 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2}, second.Vanished)
}

func TestVanishedDetectionNeedsKnownUIDs(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	inbox.RemoveMessage(1)

	// Without the caller-held UID set there is nothing to diff against.
	second, err := s.Sync(ctx, client, Request{Folder: "INBOX", Token: &first.Token})
	require.NoError(t, err)
	assert.Empty(t, second.Vanished)
}

func TestVanishedDetectionDegradesOnListingFailure(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	client.ListUIDsErr = errors.New("search unavailable")
	inbox.RemoveMessage(1)

	second, err := s.Sync(ctx, client, Request{
		Folder:    "INBOX",
		Token:     &first.Token,
		KnownUIDs: []uint32{1},
	})
	require.NoError(t, err)
	assert.Empty(t, second.Vanished)
}

func TestIncrementalFailureDegradesToFullResync(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)
	inbox.AddMessage(2, 11)

	s := NewSynchronizer(nil)
	ctx := context.Background()

	first, err := s.Sync(ctx, client, Request{Folder: "INBOX"})
	require.NoError(t, err)

	client.ChangedSinceErr = errors.New("CONDSTORE went away")

	second, err := s.Sync(ctx, client, Request{Folder: "INBOX", Token: &first.Token})
	require.NoError(t, err)

	// The full listing is a safe superset of the lost delta.
	assert.Equal(t, []uint32{1, 2}, newUIDs(second))
	assert.Equal(t, first.Token, second.Token)
}

func TestSyncErrorOnUnknownFolder(t *testing.T) {
	client := imaptest.NewFakeClient()

	s := NewSynchronizer(nil)
	_, err := s.Sync(context.Background(), client, Request{Folder: "Nope"})
	require.Error(t, err)
	assert.True(t, IsSyncError(err))
}

func TestWantDetailsDecoratesNewMessages(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(4, 10)
	client.Details[4] = imap.MessageDetails{
		UID:     4,
		Subject: "Quarterly report",
		From:    "boss@example.org",
		Snippet: "Please find attached",
	}

	s := NewSynchronizer(nil)
	resp, err := s.Sync(context.Background(), client, Request{Folder: "INBOX", WantDetails: true})
	require.NoError(t, err)

	require.Len(t, resp.New, 1)
	require.NotNil(t, resp.New[0].Details)
	assert.Equal(t, "Quarterly report", resp.New[0].Details.Subject)
	assert.Equal(t, "boss@example.org", resp.New[0].Details.From)
}

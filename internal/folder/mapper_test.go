package folder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doronbehar/mail/internal/imap/imaptest"
	"github.com/doronbehar/mail/internal/model"
)

func TestListFoldersHidesSystemMailboxes(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("INBOX", '/')
	client.AddMailbox("dovecot.sieve", '/')
	client.AddMailbox("INBOX.dovecot.sieve", '.')
	client.AddMailbox("Sent", '/')

	mapper := NewMapper(nil)
	folders, err := mapper.ListFolders(context.Background(), client, "*")
	require.NoError(t, err)

	var ids []string
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"INBOX", "INBOX/FLAGGED", "Sent"}, ids)
}

func TestListFoldersAttachesSyncTokens(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 10)
	inbox.AddMessage(5, 12)
	client.AddMailbox("Parent", '/', `\Noselect`)

	mapper := NewMapper(nil)
	folders, err := mapper.ListFolders(context.Background(), client, "*")
	require.NoError(t, err)
	require.Len(t, folders, 3)

	require.True(t, folders[0].Synchronizable)
	require.NotNil(t, folders[0].SyncToken)
	assert.Equal(t, uint32(1), folders[0].SyncToken.UIDValidity)
	assert.Equal(t, uint32(5), folders[0].SyncToken.MaxUID)
	assert.Equal(t, uint64(12), folders[0].SyncToken.HighestModSeq)

	// The search folder shares the inbox's token state.
	require.True(t, folders[1].Synchronizable)
	require.NotNil(t, folders[1].SyncToken)
	assert.Equal(t, uint32(5), folders[1].SyncToken.MaxUID)

	// Unselectable folders never become synchronizable.
	assert.False(t, folders[2].Synchronizable)
	assert.Nil(t, folders[2].SyncToken)
}

func TestListFoldersWithoutSyncCapability(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.SyncCapable = false
	client.AddMailbox("INBOX", '/')

	mapper := NewMapper(nil)
	folders, err := mapper.ListFolders(context.Background(), client, "*")
	require.NoError(t, err)

	for _, f := range folders {
		assert.False(t, f.Synchronizable, "folder %s", f.ID)
		assert.Nil(t, f.SyncToken, "folder %s", f.ID)
	}
}

func TestDetectSpecialUseCaseInsensitive(t *testing.T) {
	mapper := NewMapper(nil)

	for _, attr := range []string{`\Trash`, `\TRASH`, `\trash`} {
		f := model.NewFolder("Deleted", '/', []string{attr})
		mapper.DetectSpecialUse([]*model.Folder{f})
		assert.Equal(t, model.RoleTrash, f.MainRole(), "attribute %s", attr)
	}
}

func TestDetectSpecialUseSkipsPopulatedRoles(t *testing.T) {
	mapper := NewMapper(nil)

	search := model.NewSearchFolder("INBOX", '/', nil)
	mapper.DetectSpecialUse([]*model.Folder{search})
	assert.Equal(t, []model.Role{model.RoleFlagged}, search.Roles)
}

func TestDetectSpecialUseDeclaredRoleBeatsName(t *testing.T) {
	mapper := NewMapper(nil)

	// A server-declared role wins over a misleading name.
	f := model.NewFolder("Trash", '/', []string{`\Archive`})
	mapper.DetectSpecialUse([]*model.Folder{f})
	assert.Equal(t, []model.Role{model.RoleArchive}, f.Roles)
}

func TestGuessSpecialUseByName(t *testing.T) {
	mapper := NewMapper(nil)

	cases := map[string]model.Role{
		"INBOX":            model.RoleInbox,
		"Sent Items":       model.RoleSent,
		"INBOX/Sent Items": model.RoleSent,
		"sentmail":         model.RoleSent,
		"Drafts":           model.RoleDrafts,
		"Archives":         model.RoleArchive,
		"Deleted Messages": model.RoleTrash,
		"Bulk Mail":        model.RoleJunk,
		"INBOX/Spam":       model.RoleJunk,
	}
	for mailbox, want := range cases {
		f := model.NewFolder(mailbox, '/', nil)
		mapper.DetectSpecialUse([]*model.Folder{f})
		assert.Equal(t, want, f.MainRole(), "mailbox %s", mailbox)
		assert.Len(t, f.Roles, 1, "mailbox %s", mailbox)
	}

	roleless := model.NewFolder("Receipts", '/', nil)
	mapper.DetectSpecialUse([]*model.Folder{roleless})
	assert.Empty(t, roleless.Roles)
}

func TestSortFolders(t *testing.T) {
	mapper := NewMapper(nil)

	named := func(mailbox string, roles ...model.Role) *model.Folder {
		f := model.NewFolder(mailbox, '/', nil)
		for _, role := range roles {
			f.AddRole(role)
		}
		return f
	}

	folders := []*model.Folder{
		named("zeta"),
		named("Trash", model.RoleTrash),
		named("Alpha"),
		named("Sent", model.RoleSent),
		named("INBOX", model.RoleInbox),
		named("beta"),
	}
	mapper.SortFolders(folders)

	var order []string
	for _, f := range folders {
		order = append(order, f.Name)
	}
	assert.Equal(t, []string{"INBOX", "Sent", "Trash", "Alpha", "beta", "zeta"}, order)

	// Sorting again changes nothing.
	mapper.SortFolders(folders)
	var again []string
	for _, f := range folders {
		again = append(again, f.Name)
	}
	assert.Equal(t, order, again)
}

func TestBuildHierarchyPreservesCount(t *testing.T) {
	mapper := NewMapper(nil)

	folders := []*model.Folder{
		model.NewFolder("INBOX", '/', nil),
		model.NewSearchFolder("INBOX", '/', nil),
		model.NewFolder("INBOX/Work", '/', nil),
		model.NewFolder("INBOX/Work/Clients", '/', nil),
		model.NewFolder("Orphan/Child", '/', nil),
		model.NewFolder("Sent", '/', nil),
	}
	roots := mapper.BuildHierarchy(folders)

	assert.Len(t, Flatten(roots), len(folders))

	// "Orphan/Child" has no parent in the set, so it is a root itself.
	var rootIDs []string
	for _, root := range roots {
		rootIDs = append(rootIDs, root.ID)
	}
	assert.Equal(t, []string{"INBOX", "INBOX/FLAGGED", "Orphan/Child", "Sent"}, rootIDs)
}

func TestSearchFolderIsAlwaysRootAndChildless(t *testing.T) {
	mapper := NewMapper(nil)

	search := model.NewSearchFolder("INBOX", '/', nil)
	folders := []*model.Folder{
		model.NewFolder("INBOX", '/', nil),
		search,
		// A mailbox whose path happens to nest under the search
		// folder's identifier must not become its child.
		model.NewFolder("INBOX/FLAGGED/Sub", '/', nil),
	}
	roots := mapper.BuildHierarchy(folders)

	assert.Contains(t, roots, search)
	assert.Empty(t, search.Folders)
	assert.Len(t, Flatten(roots), len(folders))
}

func TestMappingPipelineScenario(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("INBOX", '/')
	client.AddMailbox("INBOX/Drafts", '/')
	client.AddMailbox("Sent", '/')
	client.AddMailbox("dovecot.sieve", '/')

	mapper := NewMapper(nil)
	ctx := context.Background()

	folders, err := mapper.ListFolders(ctx, client, "*")
	require.NoError(t, err)
	require.NoError(t, mapper.GetFoldersStatus(ctx, folders, client))
	mapper.DetectSpecialUse(folders)
	mapper.SortFolders(folders)
	roots := mapper.BuildHierarchy(folders)

	var rootIDs []string
	for _, root := range roots {
		rootIDs = append(rootIDs, root.ID)
	}
	assert.Equal(t, []string{"INBOX", "INBOX/FLAGGED", "Sent"}, rootIDs)

	require.Len(t, roots[0].Folders, 1)
	assert.Equal(t, "INBOX/Drafts", roots[0].Folders[0].ID)
	assert.Equal(t, model.RoleDrafts, roots[0].Folders[0].MainRole())

	for _, f := range Flatten(roots) {
		assert.NotEqual(t, "dovecot.sieve", f.Mailbox)
	}
}

func TestGetFoldersStatusPartialFailure(t *testing.T) {
	client := imaptest.NewFakeClient()
	inbox := client.AddMailbox("INBOX", '/')
	inbox.AddMessage(1, 1)
	inbox.AddMessage(2, 2)
	inbox.Unseen = 1
	client.AddMailbox("Sent", '/')
	client.StatusErrs["Sent"] = true

	mapper := NewMapper(nil)
	ctx := context.Background()

	folders, err := mapper.ListFolders(ctx, client, "*")
	require.NoError(t, err)

	sent := folders[2]
	require.Equal(t, "Sent", sent.ID)
	sent.Status = model.FolderStatus{Total: 99}

	require.NoError(t, mapper.GetFoldersStatus(ctx, folders, client))

	assert.Equal(t, uint32(2), folders[0].Status.Total)
	assert.Equal(t, uint32(1), folders[0].Status.Unseen)
	// The failed folder keeps its prior status untouched.
	assert.Equal(t, uint32(99), sent.Status.Total)
}

func TestGetFoldersStatusSkipsUnsynchronizable(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.SyncCapable = false
	mbox := client.AddMailbox("INBOX", '/')
	mbox.AddMessage(1, 1)

	mapper := NewMapper(nil)
	ctx := context.Background()

	folders, err := mapper.ListFolders(ctx, client, "*")
	require.NoError(t, err)
	require.NoError(t, mapper.GetFoldersStatus(ctx, folders, client))

	assert.Equal(t, uint32(0), folders[0].Status.Total)
}

func TestFindSpecialPrefersMostMessages(t *testing.T) {
	mapper := NewMapper(nil)

	small := model.NewFolder("Trash", '/', nil)
	small.AddRole(model.RoleTrash)
	small.Status.Total = 3

	big := model.NewFolder("Deleted Messages", '/', nil)
	big.AddRole(model.RoleTrash)
	big.Status.Total = 700

	found := mapper.FindSpecial([]*model.Folder{small, big}, model.RoleTrash)
	require.NotNil(t, found)
	assert.Equal(t, "Deleted Messages", found.Mailbox)

	assert.Nil(t, mapper.FindSpecial([]*model.Folder{small, big}, model.RoleArchive))
}

func TestFindDraftsFolderCreatesWhenAbsent(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("INBOX", '/')

	mapper := NewMapper(nil)
	drafts, err := mapper.FindDraftsFolder(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, "Drafts", drafts.Mailbox)
	assert.True(t, drafts.HasRole(model.RoleDrafts))
	assert.Equal(t, []string{"Drafts"}, client.Created)
}

func TestFindSentFolderReusesExisting(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("INBOX", '/')
	client.AddMailbox("Sent Items", '/', `\Sent`)

	mapper := NewMapper(nil)
	sent, err := mapper.FindSentFolder(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, "Sent Items", sent.Mailbox)
	assert.Empty(t, client.Created)
}

func TestCreateFailureIsOperationError(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("Sent", '/')

	mapper := NewMapper(nil)
	_, err := mapper.Create(context.Background(), client, "Sent")
	require.Error(t, err)
	assert.True(t, IsOperationError(err))
}

func TestDelete(t *testing.T) {
	client := imaptest.NewFakeClient()
	client.AddMailbox("Old", '/')

	mapper := NewMapper(nil)
	require.NoError(t, mapper.Delete(context.Background(), client, "Old"))
	assert.Equal(t, []string{"Old"}, client.Deleted)

	err := mapper.Delete(context.Background(), client, "Old")
	require.Error(t, err)
	assert.True(t, IsOperationError(err))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFolderDisplayName(t *testing.T) {
	f := NewFolder("INBOX/Work/Clients", '/', nil)
	assert.Equal(t, "Clients", f.Name)
	assert.Equal(t, "INBOX/Work/Clients", f.ID)
	assert.Equal(t, KindRegular, f.Kind)

	// A NIL delimiter means a flat namespace.
	flat := NewFolder("INBOX.Sub", 0, nil)
	assert.Equal(t, "INBOX.Sub", flat.Name)
}

func TestNewSearchFolder(t *testing.T) {
	f := NewSearchFolder("INBOX", '/', nil)
	assert.Equal(t, KindVirtualSearch, f.Kind)
	assert.Equal(t, "INBOX/FLAGGED", f.ID)
	assert.Equal(t, "INBOX", f.Mailbox)
	assert.Equal(t, "Flagged", f.Name)
	assert.True(t, f.HasRole(RoleFlagged))
}

func TestSearchFolderHost(t *testing.T) {
	host, ok := SearchFolderHost("INBOX/FLAGGED")
	require.True(t, ok)
	assert.Equal(t, "INBOX", host)

	_, ok = SearchFolderHost("INBOX")
	assert.False(t, ok)

	_, ok = SearchFolderHost("FLAGGED")
	assert.False(t, ok)
}

func TestSelectable(t *testing.T) {
	assert.True(t, NewFolder("INBOX", '/', nil).Selectable())
	assert.False(t, NewFolder("Parent", '/', []string{`\Noselect`}).Selectable())
	assert.False(t, NewFolder("Parent", '/', []string{`\NoSelect`}).Selectable())
	assert.False(t, NewFolder("Gone", '/', []string{`\NonExistent`}).Selectable())
}

func TestAddRoleDeduplicates(t *testing.T) {
	f := NewFolder("Sent", '/', nil)
	f.AddRole(RoleSent)
	f.AddRole(RoleSent)
	assert.Equal(t, []Role{RoleSent}, f.Roles)
	assert.Equal(t, RoleSent, f.MainRole())
}

func TestRoleRank(t *testing.T) {
	ranked := []Role{RoleAll, RoleInbox, RoleFlagged, RoleDrafts, RoleSent, RoleArchive, RoleJunk, RoleTrash}
	for want, role := range ranked {
		rank, ok := role.Rank()
		require.True(t, ok, "role %s", role)
		assert.Equal(t, want, rank)
	}

	_, ok := Role("carrier-pigeon").Rank()
	assert.False(t, ok)
}

func TestParentMailbox(t *testing.T) {
	parent, ok := NewFolder("INBOX/Work/Clients", '/', nil).ParentMailbox()
	require.True(t, ok)
	assert.Equal(t, "INBOX/Work", parent)

	_, ok = NewFolder("INBOX", '/', nil).ParentMailbox()
	assert.False(t, ok)

	_, ok = NewFolder("INBOX.Sub", 0, nil).ParentMailbox()
	assert.False(t, ok)
}

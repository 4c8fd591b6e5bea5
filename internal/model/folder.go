package model

import "strings"

// Role is a special-use role assigned to a folder, either declared by the
// server (RFC 6154) or inferred from the folder's name.
type Role string

const (
	RoleAll     Role = "all"
	RoleInbox   Role = "inbox"
	RoleFlagged Role = "flagged"
	RoleDrafts  Role = "drafts"
	RoleSent    Role = "sent"
	RoleArchive Role = "archive"
	RoleJunk    Role = "junk"
	RoleTrash   Role = "trash"
)

// roleRanks fixes the presentation order of role folders. Folders whose
// role is absent from this table sort after all ranked folders, by name.
var roleRanks = map[Role]int{
	RoleAll:     0,
	RoleInbox:   1,
	RoleFlagged: 2,
	RoleDrafts:  3,
	RoleSent:    4,
	RoleArchive: 5,
	RoleJunk:    6,
	RoleTrash:   7,
}

// Rank returns the sort rank of the role and whether the role is ranked
// at all.
func (r Role) Rank() (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

// FolderKind distinguishes real server mailboxes from synthesized views.
type FolderKind int

const (
	// KindRegular is a folder backed by a server mailbox.
	KindRegular FolderKind = iota

	// KindVirtualSearch is a synthesized folder representing a filtered
	// view of a real mailbox, e.g. the flagged subset of the inbox. It
	// has no server counterpart and never takes part in hierarchy
	// parenting.
	KindVirtualSearch
)

// FolderStatus is a message-count snapshot of a mailbox.
type FolderStatus struct {
	Total       uint32
	Unseen      uint32
	UIDValidity uint32
}

// Folder represents one server mailbox, or a virtual search view of one.
type Folder struct {
	Kind FolderKind

	// ID is the folder identifier presented to callers. For regular
	// folders it equals the mailbox path; virtual search folders append
	// a view suffix.
	ID string

	// Mailbox is the underlying server mailbox path.
	Mailbox string

	// Name is the display name. It defaults to the last path segment
	// and may be rewritten by the folder name translator.
	Name string

	Delimiter  rune
	Attributes []string

	// Roles is the special-use role set. Once populated it is treated
	// as authoritative for sorting and role lookups.
	Roles []Role

	Status FolderStatus

	// Synchronizable is set when the mailbox is selectable and the
	// server supports incremental sync.
	Synchronizable bool

	// SyncToken is present only for synchronizable folders.
	SyncToken *SyncToken

	// Folders are the hierarchy children, populated by the mapper.
	Folders []*Folder
}

// SearchFolderSuffix is appended to the host mailbox path to form the
// identifier of the flagged-messages virtual search folder.
const SearchFolderSuffix = "FLAGGED"

// NewFolder constructs a regular folder from a raw mailbox listing entry.
func NewFolder(mailbox string, delimiter rune, attributes []string) *Folder {
	return &Folder{
		Kind:       KindRegular,
		ID:         mailbox,
		Mailbox:    mailbox,
		Name:       lastSegment(mailbox, delimiter),
		Delimiter:  delimiter,
		Attributes: attributes,
	}
}

// NewSearchFolder constructs the virtual flagged-messages folder for the
// given host mailbox.
func NewSearchFolder(mailbox string, delimiter rune, attributes []string) *Folder {
	delim := delimiter
	if delim == 0 {
		delim = '/'
	}
	return &Folder{
		Kind:       KindVirtualSearch,
		ID:         mailbox + string(delim) + SearchFolderSuffix,
		Mailbox:    mailbox,
		Name:       "Flagged",
		Delimiter:  delimiter,
		Attributes: attributes,
		Roles:      []Role{RoleFlagged},
	}
}

// Selectable reports whether the mailbox can be selected at all. Folders
// flagged \Noselect or \NonExistent only exist to group children.
func (f *Folder) Selectable() bool {
	for _, attr := range f.Attributes {
		switch strings.ToLower(attr) {
		case `\noselect`, `\nonexistent`:
			return false
		}
	}
	return true
}

// AddRole appends a role, ignoring duplicates.
func (f *Folder) AddRole(role Role) {
	for _, r := range f.Roles {
		if r == role {
			return
		}
	}
	f.Roles = append(f.Roles, role)
}

// HasRole reports whether the folder carries the given role.
func (f *Folder) HasRole(role Role) bool {
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// MainRole returns the folder's primary role, or "" when it has none.
func (f *Folder) MainRole() Role {
	if len(f.Roles) == 0 {
		return ""
	}
	return f.Roles[0]
}

// AddFolder appends a child folder. Append order is preserved.
func (f *Folder) AddFolder(child *Folder) {
	f.Folders = append(f.Folders, child)
}

// ParentMailbox returns the mailbox path of the folder's parent, derived
// by removing the last delimiter-joined segment. The second return value
// is false for top-level folders.
func (f *Folder) ParentMailbox() (string, bool) {
	if f.Delimiter == 0 {
		return "", false
	}
	idx := strings.LastIndex(f.Mailbox, string(f.Delimiter))
	if idx < 0 {
		return "", false
	}
	return f.Mailbox[:idx], true
}

// SearchFolderHost resolves a virtual search folder identifier back to
// its host mailbox path. The second return value is false when the
// identifier does not carry the search view suffix.
func SearchFolderHost(id string) (string, bool) {
	if len(id) <= len(SearchFolderSuffix)+1 || !strings.HasSuffix(id, SearchFolderSuffix) {
		return "", false
	}
	return id[:len(id)-len(SearchFolderSuffix)-1], true
}

func lastSegment(mailbox string, delimiter rune) string {
	if delimiter == 0 {
		return mailbox
	}
	idx := strings.LastIndex(mailbox, string(delimiter))
	if idx < 0 {
		return mailbox
	}
	return mailbox[idx+1:]
}

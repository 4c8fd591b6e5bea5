// Package folder maps raw mailbox listings into classified, ordered,
// hierarchical folder trees and resolves role folders.
package folder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/model"
)

// OperationError indicates a mailbox create or delete failure, carrying
// the server's reported reason.
type OperationError struct {
	Mailbox string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("folder operation failed (%s): %v", e.Mailbox, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// IsOperationError reports whether err (or any error in its chain) is an
// OperationError.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}

// hiddenMailboxes are internal server mailboxes that must never be shown,
// matched exactly regardless of nesting. The INBOX-nested variant covers
// setups where the sieve script store is a subfolder of INBOX.
var hiddenMailboxes = map[string]bool{
	"dovecot.sieve":       true,
	"INBOX.dovecot.sieve": true,
}

// specialUseNames is the fixed per-role dictionary used to guess a role
// from a folder's name when the server declares none.
var specialUseNames = map[model.Role][]string{
	model.RoleInbox:   {"inbox"},
	model.RoleSent:    {"sent", "sent items", "sent messages", "sent-mail", "sentmail"},
	model.RoleDrafts:  {"draft", "drafts"},
	model.RoleArchive: {"archive", "archives"},
	model.RoleTrash:   {"deleted messages", "trash"},
	model.RoleJunk:    {"junk", "spam", "bulk mail"},
}

// specialUseAttributes are the server-declared special-use attributes we
// recognize, in lowercase. Servers disagree on casing, so comparison is
// always case-insensitive.
var specialUseAttributes = map[string]model.Role{
	`\all`:     model.RoleAll,
	`\archive`: model.RoleArchive,
	`\drafts`:  model.RoleDrafts,
	`\flagged`: model.RoleFlagged,
	`\junk`:    model.RoleJunk,
	`\sent`:    model.RoleSent,
	`\trash`:   model.RoleTrash,
}

// specialUseAttrFor maps a role back to the attribute requested when
// creating a mailbox for it.
var specialUseAttrFor = map[model.Role]string{
	model.RoleAll:     `\All`,
	model.RoleArchive: `\Archive`,
	model.RoleDrafts:  `\Drafts`,
	model.RoleFlagged: `\Flagged`,
	model.RoleJunk:    `\Junk`,
	model.RoleSent:    `\Sent`,
	model.RoleTrash:   `\Trash`,
}

// Mapper turns raw mailbox listings into decorated Folder values.
type Mapper struct {
	logger *slog.Logger
}

// NewMapper creates a Mapper. A nil logger falls back to slog.Default.
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// ListFolders lists all mailboxes matching pattern and constructs a flat
// folder list. Hidden system mailboxes are dropped. Synchronizable
// folders get an eagerly fetched initial sync token. When the real INBOX
// is encountered, the virtual flagged search folder is synthesized
// alongside it.
func (m *Mapper) ListFolders(ctx context.Context, client imap.Client, pattern string) ([]*model.Folder, error) {
	if pattern == "" {
		pattern = "*"
	}

	infos, err := client.ListMailboxes(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	syncCapable := client.SupportsSync()

	var folders []*model.Folder
	for _, info := range infos {
		if hiddenMailboxes[info.Name] {
			continue
		}

		folder := model.NewFolder(info.Name, info.Delimiter, info.Attributes)
		m.attachSyncToken(ctx, client, folder, syncCapable)
		folders = append(folders, folder)

		if info.Name == "INBOX" {
			search := model.NewSearchFolder(info.Name, info.Delimiter, info.Attributes)
			m.attachSyncToken(ctx, client, search, syncCapable)
			folders = append(folders, search)
		}
	}
	return folders, nil
}

// attachSyncToken marks the folder synchronizable and fetches its initial
// token. A failed token fetch downgrades the folder to unsynchronizable
// instead of aborting the listing.
func (m *Mapper) attachSyncToken(ctx context.Context, client imap.Client, folder *model.Folder, syncCapable bool) {
	if !syncCapable || !folder.Selectable() {
		return
	}

	token, err := client.SyncToken(ctx, folder.Mailbox)
	if err != nil {
		m.logger.Warn("fetching initial sync token", "folder", folder.ID, "error", err)
		return
	}
	folder.Synchronizable = true
	folder.SyncToken = &token
}

// GetFoldersStatus batch-fetches message-count status for synchronizable
// folders and attaches results by exact mailbox match. Folders with no
// status response keep their prior values.
func (m *Mapper) GetFoldersStatus(ctx context.Context, folders []*model.Folder, client imap.Client) error {
	var names []string
	seen := make(map[string]bool)
	for _, folder := range folders {
		if !folder.Synchronizable || seen[folder.Mailbox] {
			continue
		}
		seen[folder.Mailbox] = true
		names = append(names, folder.Mailbox)
	}
	if len(names) == 0 {
		return nil
	}

	statuses, err := client.Status(ctx, names)
	if err != nil {
		return fmt.Errorf("fetching folder status: %w", err)
	}

	for _, folder := range folders {
		status, ok := statuses[folder.Mailbox]
		if !ok {
			continue
		}
		folder.Status = model.FolderStatus{
			Total:       status.Total,
			Unseen:      status.Unseen,
			UIDValidity: status.UIDValidity,
		}
	}
	return nil
}

// DetectSpecialUse populates every folder's role set from server-declared
// special-use attributes, falling back to the name heuristic when the
// server declares none.
func (m *Mapper) DetectSpecialUse(folders []*model.Folder) {
	for _, folder := range folders {
		m.detectSpecialUse(folder)
	}
}

func (m *Mapper) detectSpecialUse(folder *model.Folder) {
	if len(folder.Roles) > 0 {
		// Already populated, e.g. the virtual search folder.
		return
	}

	for _, attr := range folder.Attributes {
		if role, ok := specialUseAttributes[strings.ToLower(attr)]; ok {
			folder.AddRole(role)
		}
	}

	if len(folder.Roles) == 0 {
		m.guessSpecialUse(folder)
	}
}

// guessSpecialUse assigns at most one role based on the folder's last
// path segment. Absence of a match is not an error; the folder simply
// stays roleless.
func (m *Mapper) guessSpecialUse(folder *model.Folder) {
	segment := folder.Mailbox
	if folder.Delimiter != 0 {
		parts := strings.SplitN(folder.Mailbox, string(folder.Delimiter), 2)
		segment = parts[len(parts)-1]
	}
	segment = strings.ToLower(segment)

	for _, role := range []model.Role{
		model.RoleInbox,
		model.RoleSent,
		model.RoleDrafts,
		model.RoleArchive,
		model.RoleTrash,
		model.RoleJunk,
	} {
		for _, candidate := range specialUseNames[role] {
			if segment == candidate {
				folder.AddRole(role)
				return
			}
		}
	}
}

// SortFolders orders the top-level folder slice in place: role folders
// first by the fixed role rank, then everything else case-insensitively
// by display name. Folders with an unranked role sort like roleless
// folders. Sorting is not recursive; callers sort before building the
// hierarchy.
func (m *Mapper) SortFolders(folders []*model.Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		rankA, okA := folders[i].MainRole().Rank()
		rankB, okB := folders[j].MainRole().Rank()

		switch {
		case okA && !okB:
			return true
		case !okA && okB:
			return false
		case okA && okB && rankA != rankB:
			return rankA < rankB
		}
		return strings.ToLower(folders[i].Name) < strings.ToLower(folders[j].Name)
	})
}

// BuildHierarchy links child folders into their parents and returns only
// the roots. Every virtual search folder, and every folder whose parent
// path names no other folder in the set, is a root. Child append order is
// input iteration order.
func (m *Mapper) BuildHierarchy(folders []*model.Folder) []*model.Folder {
	indexed := make(map[string]*model.Folder, len(folders))
	for _, folder := range folders {
		indexed[folder.ID] = folder
	}

	isRoot := func(folder *model.Folder) bool {
		if folder.Kind == model.KindVirtualSearch {
			return true
		}
		parent, ok := folder.ParentMailbox()
		if !ok {
			return true
		}
		// A virtual search folder never adopts children.
		adoptive, exists := indexed[parent]
		return !exists || adoptive.Kind == model.KindVirtualSearch
	}

	var roots []*model.Folder
	for _, folder := range folders {
		if isRoot(folder) {
			roots = append(roots, folder)
			continue
		}
		parent, _ := folder.ParentMailbox()
		indexed[parent].AddFolder(folder)
	}
	return roots
}

// FindSpecial returns the best candidate folder carrying the given role,
// or nil when none does. When several folders share the role, the one
// with the most messages wins.
func (m *Mapper) FindSpecial(folders []*model.Folder, role model.Role) *model.Folder {
	var (
		best        *model.Folder
		maxMessages = -1
	)
	for _, folder := range folders {
		if !folder.HasRole(role) {
			continue
		}
		if int(folder.Status.Total) > maxMessages {
			maxMessages = int(folder.Status.Total)
			best = folder
		}
	}
	return best
}

// FindInbox returns the inbox folder, or nil. The inbox is never created.
func (m *Mapper) FindInbox(folders []*model.Folder) *model.Folder {
	return m.FindSpecial(folders, model.RoleInbox)
}

// FindDraftsFolder resolves the drafts folder, creating one named
// "Drafts" with the drafts special-use attribute when absent.
func (m *Mapper) FindDraftsFolder(ctx context.Context, client imap.Client) (*model.Folder, error) {
	return m.findOrCreateSpecial(ctx, client, model.RoleDrafts, "Drafts")
}

// FindSentFolder resolves the sent folder, creating one named "Sent"
// with the sent special-use attribute when absent.
func (m *Mapper) FindSentFolder(ctx context.Context, client imap.Client) (*model.Folder, error) {
	return m.findOrCreateSpecial(ctx, client, model.RoleSent, "Sent")
}

func (m *Mapper) findOrCreateSpecial(ctx context.Context, client imap.Client, role model.Role, name string) (*model.Folder, error) {
	folders, err := m.ListFolders(ctx, client, "*")
	if err != nil {
		return nil, err
	}
	if err := m.GetFoldersStatus(ctx, folders, client); err != nil {
		return nil, err
	}
	m.DetectSpecialUse(folders)

	if found := m.FindSpecial(folders, role); found != nil {
		return found, nil
	}
	return m.Create(ctx, client, name, role)
}

// Create creates a mailbox, optionally requesting a special-use role for
// it, and returns its folder representation.
func (m *Mapper) Create(ctx context.Context, client imap.Client, name string, roles ...model.Role) (*model.Folder, error) {
	var opts imap.CreateOptions
	for _, role := range roles {
		if attr, ok := specialUseAttrFor[role]; ok {
			opts.SpecialUse = append(opts.SpecialUse, attr)
		}
	}

	if err := client.CreateMailbox(ctx, name, opts); err != nil {
		return nil, &OperationError{Mailbox: name, Err: err}
	}

	folder := model.NewFolder(name, '/', nil)
	for _, role := range roles {
		folder.AddRole(role)
	}
	m.logger.Info("folder created", "folder", name, "roles", roles)
	return folder, nil
}

// Delete removes a mailbox.
func (m *Mapper) Delete(ctx context.Context, client imap.Client, name string) error {
	if err := client.DeleteMailbox(ctx, name); err != nil {
		return &OperationError{Mailbox: name, Err: err}
	}
	m.logger.Info("folder deleted", "folder", name)
	return nil
}

// Flatten returns the folder hierarchy as a flat slice, parents before
// their children.
func Flatten(folders []*model.Folder) []*model.Folder {
	var flat []*model.Folder
	for _, folder := range folders {
		flat = append(flat, folder)
		flat = append(flat, Flatten(folder.Folders)...)
	}
	return flat
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/doronbehar/mail/internal/folder"
	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/model"
	msync "github.com/doronbehar/mail/internal/sync"
)

// ClientProvider hands out one authenticated session per account.
type ClientProvider interface {
	Client(ctx context.Context, account *model.Account) (imap.Client, error)
}

// TokenStore persists per-folder sync tokens between sync calls. A nil
// TokenStore leaves token handling entirely to the caller.
type TokenStore interface {
	GetSyncToken(ctx context.Context, accountID int64, folderID string) (*model.SyncToken, error)
	SetSyncToken(ctx context.Context, accountID int64, folderID string, token model.SyncToken) error
}

// MailManager is the orchestration facade over the connection provider,
// folder mapper, and synchronizer. Calls for the same account are
// serialized; calls across different accounts may run concurrently.
type MailManager struct {
	provider   ClientProvider
	mapper     *folder.Mapper
	sync       *msync.Synchronizer
	translator *folder.Translator
	tokens     TokenStore
	logger     *slog.Logger

	mu       sync.Mutex
	accounts map[int64]*sync.Mutex
}

// NewMailManager constructs a MailManager. tokens may be nil.
func NewMailManager(
	provider ClientProvider,
	mapper *folder.Mapper,
	synchronizer *msync.Synchronizer,
	translator *folder.Translator,
	tokens TokenStore,
	logger *slog.Logger,
) *MailManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailManager{
		provider:   provider,
		mapper:     mapper,
		sync:       synchronizer,
		translator: translator,
		tokens:     tokens,
		logger:     logger,
		accounts:   make(map[int64]*sync.Mutex),
	}
}

// accountLock returns the serialization lock for one account.
func (m *MailManager) accountLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.accounts[id]
	if !ok {
		lock = &sync.Mutex{}
		m.accounts[id] = lock
	}
	return lock
}

// GetFolders lists, classifies, sorts, and arranges the account's
// folders into their hierarchy, returning the roots.
func (m *MailManager) GetFolders(ctx context.Context, account *model.Account) ([]*model.Folder, error) {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := m.provider.Client(ctx, account)
	if err != nil {
		return nil, err
	}

	folders, err := m.mapper.ListFolders(ctx, client, "*")
	if err != nil {
		return nil, err
	}
	if err := m.mapper.GetFoldersStatus(ctx, folders, client); err != nil {
		return nil, err
	}
	m.mapper.DetectSpecialUse(folders)
	m.mapper.SortFolders(folders)
	m.translator.TranslateAll(folders)

	return m.mapper.BuildHierarchy(folders), nil
}

// GetFoldersForAccounts fetches folder hierarchies for several accounts
// concurrently, one session per account. The first failure cancels the
// remaining fetches.
func (m *MailManager) GetFoldersForAccounts(ctx context.Context, accounts []*model.Account) (map[int64][]*model.Folder, error) {
	results := make(map[int64][]*model.Folder, len(accounts))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			roots, err := m.GetFolders(ctx, account)
			if err != nil {
				return fmt.Errorf("account %d: %w", account.ID, err)
			}
			mu.Lock()
			results[account.ID] = roots
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// SyncMessages runs one synchronization pass over the folder named in
// the request. With a token store configured, a nil request token is
// loaded from the store and the advanced token is written back.
func (m *MailManager) SyncMessages(ctx context.Context, account *model.Account, req msync.Request) (*msync.Response, error) {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := m.provider.Client(ctx, account)
	if err != nil {
		return nil, err
	}

	folderID := req.Folder
	req.Folder = mailboxForFolder(folderID)

	if m.tokens != nil && req.Token == nil {
		token, err := m.tokens.GetSyncToken(ctx, account.ID, folderID)
		if err != nil {
			return nil, fmt.Errorf("loading sync token: %w", err)
		}
		req.Token = token
	}

	resp, err := m.sync.Sync(ctx, client, req)
	if err != nil {
		return nil, err
	}

	if m.tokens != nil {
		if err := m.tokens.SetSyncToken(ctx, account.ID, folderID, resp.Token); err != nil {
			return nil, fmt.Errorf("storing sync token: %w", err)
		}
	}

	return resp, nil
}

// MoveMessage moves one message between folders with a copy-with-move.
// The connection's failure signaling is trusted; no re-verification.
func (m *MailManager) MoveMessage(ctx context.Context, account *model.Account, sourceFolder string, uid uint32, destFolder string) error {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := m.provider.Client(ctx, account)
	if err != nil {
		return err
	}

	src := mailboxForFolder(sourceFolder)
	dest := mailboxForFolder(destFolder)
	if err := client.Copy(ctx, src, dest, []uint32{uid}, imap.CopyOptions{Move: true}); err != nil {
		return fmt.Errorf("moving message %d from %q to %q: %w", uid, src, dest, err)
	}

	m.logger.Info("message moved", "account", account.ID, "from", src, "to", dest, "uid", uid)
	return nil
}

// DeleteMessage deletes one message. Deleting from the trash folder
// expunges permanently; deleting from anywhere else moves the message
// into the resolved trash folder, creating one when the account has
// none.
func (m *MailManager) DeleteMessage(ctx context.Context, account *model.Account, sourceFolder string, uid uint32) error {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := m.provider.Client(ctx, account)
	if err != nil {
		return err
	}

	folders, err := m.mapper.ListFolders(ctx, client, "*")
	if err != nil {
		return err
	}
	m.mapper.DetectSpecialUse(folders)

	source := folderByID(folders, sourceFolder)
	if source == nil {
		return &ServiceError{
			Op:  "delete message",
			Err: fmt.Errorf("unknown folder %q", sourceFolder),
		}
	}

	trash, create := m.resolveTrash(folders)

	if !create && source.Mailbox == trash {
		if err := client.Expunge(ctx, source.Mailbox, []uint32{uid}); err != nil {
			return fmt.Errorf("expunging message %d from %q: %w", uid, source.Mailbox, err)
		}
		m.logger.Info("message expunged", "account", account.ID, "folder", source.Mailbox, "uid", uid)
		return nil
	}

	opts := imap.CopyOptions{Move: true, Create: create}
	if err := client.Copy(ctx, source.Mailbox, trash, []uint32{uid}, opts); err != nil {
		return fmt.Errorf("moving message %d to trash: %w", uid, err)
	}

	m.logger.Info("message moved to trash", "account", account.ID, "folder", source.Mailbox, "trash", trash, "uid", uid)
	return nil
}

// resolveTrash picks the trash mailbox: a folder carrying the trash
// role, else the first folder in sorted order whose display name
// contains "trash" case-insensitively, else the literal name "Trash"
// with create set.
func (m *MailManager) resolveTrash(folders []*model.Folder) (mailbox string, create bool) {
	if found := m.mapper.FindSpecial(folders, model.RoleTrash); found != nil {
		return found.Mailbox, false
	}

	m.mapper.SortFolders(folders)
	for _, f := range folders {
		if f.Kind != model.KindRegular {
			continue
		}
		if strings.Contains(strings.ToLower(f.Name), "trash") {
			return f.Mailbox, false
		}
	}

	return "Trash", true
}

// TestConnectivity verifies that the account's server is reachable and
// the stored credentials still authenticate.
func (m *MailManager) TestConnectivity(ctx context.Context, account *model.Account) error {
	lock := m.accountLock(account.ID)
	lock.Lock()
	defer lock.Unlock()

	client, err := m.provider.Client(ctx, account)
	if err != nil {
		return err
	}
	if _, err := client.ListMailboxes(ctx, "INBOX"); err != nil {
		return fmt.Errorf("probing inbox: %w", err)
	}
	return nil
}

// folderByID finds a folder in a flat listing by its identifier.
func folderByID(folders []*model.Folder, id string) *model.Folder {
	for _, f := range folders {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// mailboxForFolder resolves a folder identifier to the mailbox backing
// it. Virtual search folder identifiers resolve to their host mailbox.
func mailboxForFolder(folderID string) string {
	if host, ok := model.SearchFolderHost(folderID); ok {
		return host
	}
	return folderID
}

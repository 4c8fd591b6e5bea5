// Package imaptest provides a scriptable in-memory protocol client for
// exercising folder mapping, synchronization, and orchestration logic
// without a server.
package imaptest

import (
	"context"
	"fmt"
	"sync"

	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/model"
)

// Mailbox is one fake server mailbox with its message state.
type Mailbox struct {
	Name        string
	Delimiter   rune
	Attributes  []string
	UIDValidity uint32
	Unseen      uint32
	Messages    []imap.MessageState
}

func (m *Mailbox) maxUID() uint32 {
	var max uint32
	for _, msg := range m.Messages {
		if msg.UID > max {
			max = msg.UID
		}
	}
	return max
}

func (m *Mailbox) highestModSeq() uint64 {
	var max uint64
	for _, msg := range m.Messages {
		if msg.ModSeq > max {
			max = msg.ModSeq
		}
	}
	return max
}

// AddMessage appends a message to the mailbox.
func (m *Mailbox) AddMessage(uid uint32, modSeq uint64, flags ...string) {
	m.Messages = append(m.Messages, imap.MessageState{UID: uid, ModSeq: modSeq, Flags: flags})
}

// RemoveMessage drops a message by UID, simulating an expunge done
// behind the client's back.
func (m *Mailbox) RemoveMessage(uid uint32) {
	kept := m.Messages[:0]
	for _, msg := range m.Messages {
		if msg.UID != uid {
			kept = append(kept, msg)
		}
	}
	m.Messages = kept
}

// CopyRecord captures one observed copy operation.
type CopyRecord struct {
	Src  string
	Dest string
	UIDs []uint32
	Opts imap.CopyOptions
}

// FakeClient implements imap.Client against in-memory state. List order
// is insertion order, which keeps tests deterministic.
type FakeClient struct {
	mu sync.Mutex

	// SyncCapable mimics the CONDSTORE/QRESYNC capability flag.
	SyncCapable bool

	mailboxes []*Mailbox

	// Details maps UID to the details served by FetchDetails.
	Details map[uint32]imap.MessageDetails

	// StatusErrs marks mailboxes whose status fetch fails.
	StatusErrs map[string]bool

	// ChangedSinceErr, when set, fails every ChangedSince call.
	ChangedSinceErr error

	// ListUIDsErr, when set, fails every ListUIDs call.
	ListUIDsErr error

	// Recorded operations.
	Created  []string
	Deleted  []string
	Copies   []CopyRecord
	Expunged map[string][]uint32

	Closed bool
}

var _ imap.Client = (*FakeClient)(nil)

// NewFakeClient returns an empty, sync-capable fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		SyncCapable: true,
		Details:     make(map[uint32]imap.MessageDetails),
		StatusErrs:  make(map[string]bool),
		Expunged:    make(map[string][]uint32),
	}
}

// AddMailbox registers a mailbox and returns it for further scripting.
// UID validity defaults to 1.
func (f *FakeClient) AddMailbox(name string, delimiter rune, attrs ...string) *Mailbox {
	f.mu.Lock()
	defer f.mu.Unlock()

	mbox := &Mailbox{
		Name:        name,
		Delimiter:   delimiter,
		Attributes:  attrs,
		UIDValidity: 1,
	}
	f.mailboxes = append(f.mailboxes, mbox)
	return mbox
}

func (f *FakeClient) findLocked(name string) *Mailbox {
	for _, mbox := range f.mailboxes {
		if mbox.Name == name {
			return mbox
		}
	}
	return nil
}

func (f *FakeClient) ListMailboxes(_ context.Context, pattern string) ([]imap.MailboxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var infos []imap.MailboxInfo
	for _, mbox := range f.mailboxes {
		if pattern != "*" && pattern != mbox.Name {
			continue
		}
		infos = append(infos, imap.MailboxInfo{
			Name:       mbox.Name,
			Delimiter:  mbox.Delimiter,
			Attributes: append([]string(nil), mbox.Attributes...),
		})
	}
	return infos, nil
}

func (f *FakeClient) Status(_ context.Context, names []string) (map[string]imap.MailboxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	statuses := make(map[string]imap.MailboxStatus)
	for _, name := range names {
		mbox := f.findLocked(name)
		if mbox == nil || f.StatusErrs[name] {
			continue
		}
		statuses[name] = f.statusLocked(mbox)
	}
	return statuses, nil
}

func (f *FakeClient) statusLocked(mbox *Mailbox) imap.MailboxStatus {
	status := imap.MailboxStatus{
		Name:        mbox.Name,
		Total:       uint32(len(mbox.Messages)),
		Unseen:      mbox.Unseen,
		UIDValidity: mbox.UIDValidity,
		UIDNext:     mbox.maxUID() + 1,
	}
	if f.SyncCapable {
		status.HighestModSeq = mbox.highestModSeq()
	}
	return status
}

func (f *FakeClient) SupportsSync() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SyncCapable
}

func (f *FakeClient) SyncToken(_ context.Context, name string) (model.SyncToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	mbox := f.findLocked(name)
	if mbox == nil || f.StatusErrs[name] {
		return model.SyncToken{}, fmt.Errorf("no such mailbox %q", name)
	}
	status := f.statusLocked(mbox)
	return model.SyncToken{
		UIDValidity:   status.UIDValidity,
		HighestModSeq: status.HighestModSeq,
		MaxUID:        mbox.maxUID(),
	}, nil
}

func (f *FakeClient) ListMessages(_ context.Context, name string) ([]imap.MessageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	mbox := f.findLocked(name)
	if mbox == nil {
		return nil, fmt.Errorf("no such mailbox %q", name)
	}
	return append([]imap.MessageState(nil), mbox.Messages...), nil
}

func (f *FakeClient) ChangedSince(_ context.Context, name string, modSeq uint64) ([]imap.MessageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ChangedSinceErr != nil {
		return nil, f.ChangedSinceErr
	}

	mbox := f.findLocked(name)
	if mbox == nil {
		return nil, fmt.Errorf("no such mailbox %q", name)
	}

	var changed []imap.MessageState
	for _, msg := range mbox.Messages {
		if msg.ModSeq > modSeq {
			changed = append(changed, msg)
		}
	}
	return changed, nil
}

func (f *FakeClient) ListUIDs(_ context.Context, name string) ([]uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListUIDsErr != nil {
		return nil, f.ListUIDsErr
	}

	mbox := f.findLocked(name)
	if mbox == nil {
		return nil, fmt.Errorf("no such mailbox %q", name)
	}

	uids := make([]uint32, 0, len(mbox.Messages))
	for _, msg := range mbox.Messages {
		uids = append(uids, msg.UID)
	}
	return uids, nil
}

func (f *FakeClient) FetchDetails(_ context.Context, name string, uids []uint32) ([]imap.MessageDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findLocked(name) == nil {
		return nil, fmt.Errorf("no such mailbox %q", name)
	}

	details := make([]imap.MessageDetails, 0, len(uids))
	for _, uid := range uids {
		if d, ok := f.Details[uid]; ok {
			details = append(details, d)
			continue
		}
		details = append(details, imap.MessageDetails{UID: uid})
	}
	return details, nil
}

func (f *FakeClient) Copy(_ context.Context, src, dest string, uids []uint32, opts imap.CopyOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	source := f.findLocked(src)
	if source == nil {
		return fmt.Errorf("no such mailbox %q", src)
	}

	target := f.findLocked(dest)
	if target == nil {
		if !opts.Create {
			return fmt.Errorf("no such mailbox %q", dest)
		}
		target = &Mailbox{Name: dest, Delimiter: source.Delimiter, UIDValidity: 1}
		f.mailboxes = append(f.mailboxes, target)
		f.Created = append(f.Created, dest)
	}

	for _, uid := range uids {
		for _, msg := range source.Messages {
			if msg.UID == uid {
				target.Messages = append(target.Messages, imap.MessageState{
					UID:    target.maxUID() + 1,
					ModSeq: target.highestModSeq() + 1,
					Flags:  append([]string(nil), msg.Flags...),
				})
			}
		}
		if opts.Move {
			source.RemoveMessage(uid)
		}
	}

	f.Copies = append(f.Copies, CopyRecord{Src: src, Dest: dest, UIDs: uids, Opts: opts})
	return nil
}

func (f *FakeClient) Expunge(_ context.Context, name string, uids []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	mbox := f.findLocked(name)
	if mbox == nil {
		return fmt.Errorf("no such mailbox %q", name)
	}

	for _, uid := range uids {
		mbox.RemoveMessage(uid)
	}
	f.Expunged[name] = append(f.Expunged[name], uids...)
	return nil
}

func (f *FakeClient) CreateMailbox(_ context.Context, name string, opts imap.CreateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findLocked(name) != nil {
		return fmt.Errorf("mailbox %q already exists", name)
	}

	f.mailboxes = append(f.mailboxes, &Mailbox{
		Name:        name,
		Delimiter:   '/',
		Attributes:  append([]string(nil), opts.SpecialUse...),
		UIDValidity: 1,
	})
	f.Created = append(f.Created, name)
	return nil
}

func (f *FakeClient) DeleteMailbox(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.mailboxes[:0]
	found := false
	for _, mbox := range f.mailboxes {
		if mbox.Name == name {
			found = true
			continue
		}
		kept = append(kept, mbox)
	}
	if !found {
		return fmt.Errorf("no such mailbox %q", name)
	}
	f.mailboxes = kept
	f.Deleted = append(f.Deleted, name)
	return nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

package imap

import (
	"context"
	"fmt"
	"sync"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/doronbehar/mail/internal/model"
)

// remoteClient adapts go-imap v2 to the Client contract. All operations
// are serialized through a mutex: one protocol session supports at most
// one in-flight command.
type remoteClient struct {
	mu       sync.Mutex
	client   *imapclient.Client
	selected string
}

var _ Client = (*remoteClient)(nil)

func newRemoteClient(client *imapclient.Client) *remoteClient {
	return &remoteClient{client: client}
}

func (r *remoteClient) ListMailboxes(_ context.Context, pattern string) ([]MailboxInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listCmd := r.client.List("", pattern, &goimap.ListOptions{
		ReturnSpecialUse: true,
	})
	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes %q: %w", pattern, err)
	}

	infos := make([]MailboxInfo, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		attrs := make([]string, 0, len(mbox.Attrs))
		for _, attr := range mbox.Attrs {
			attrs = append(attrs, string(attr))
		}
		infos = append(infos, MailboxInfo{
			Name:       mbox.Mailbox,
			Delimiter:  mbox.Delim,
			Attributes: attrs,
		})
	}
	return infos, nil
}

func (r *remoteClient) Status(_ context.Context, names []string) (map[string]MailboxStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := &goimap.StatusOptions{
		NumMessages: true,
		NumUnseen:   true,
		UIDNext:     true,
		UIDValidity: true,
	}
	if r.supportsSyncLocked() {
		opts.HighestModSeq = true
	}

	statuses := make(map[string]MailboxStatus, len(names))
	for _, name := range names {
		data, err := r.client.Status(name, opts).Wait()
		if err != nil {
			// One missing status must not abort the batch.
			continue
		}
		statuses[name] = statusFromData(data)
	}
	return statuses, nil
}

func (r *remoteClient) SupportsSync() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supportsSyncLocked()
}

func (r *remoteClient) supportsSyncLocked() bool {
	caps := r.client.Caps()
	return caps.Has(goimap.CapCondStore) || caps.Has(goimap.CapQResync)
}

func (r *remoteClient) SyncToken(_ context.Context, name string) (model.SyncToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := &goimap.StatusOptions{
		UIDNext:     true,
		UIDValidity: true,
	}
	if r.supportsSyncLocked() {
		opts.HighestModSeq = true
	}

	data, err := r.client.Status(name, opts).Wait()
	if err != nil {
		return model.SyncToken{}, fmt.Errorf("fetching sync token for %q: %w", name, err)
	}

	token := model.SyncToken{
		UIDValidity:   data.UIDValidity,
		HighestModSeq: data.HighestModSeq,
	}
	if data.UIDNext > 0 {
		token.MaxUID = uint32(data.UIDNext) - 1
	}
	return token, nil
}

func (r *remoteClient) ListMessages(_ context.Context, name string) ([]MessageState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.selectLocked(name)
	if err != nil {
		return nil, err
	}
	if data.NumMessages == 0 {
		return nil, nil
	}

	var uids goimap.UIDSet
	uids.AddRange(1, 0)

	fetchOpts := &goimap.FetchOptions{
		UID:   true,
		Flags: true,
	}
	if r.supportsSyncLocked() {
		fetchOpts.ModSeq = true
	}

	return r.fetchStatesLocked(name, uids, fetchOpts)
}

func (r *remoteClient) ChangedSince(_ context.Context, name string, modSeq uint64) ([]MessageState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.supportsSyncLocked() {
		return nil, fmt.Errorf("mailbox %q: server does not support CHANGEDSINCE", name)
	}

	if _, err := r.selectLocked(name); err != nil {
		return nil, err
	}

	var uids goimap.UIDSet
	uids.AddRange(1, 0)

	fetchOpts := &goimap.FetchOptions{
		UID:          true,
		Flags:        true,
		ModSeq:       true,
		ChangedSince: modSeq,
	}

	return r.fetchStatesLocked(name, uids, fetchOpts)
}

func (r *remoteClient) ListUIDs(_ context.Context, name string) ([]uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.selectLocked(name); err != nil {
		return nil, err
	}

	data, err := r.client.UIDSearch(&goimap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("listing UIDs in %q: %w", name, err)
	}

	raw := data.AllUIDs()
	uids := make([]uint32, 0, len(raw))
	for _, uid := range raw {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (r *remoteClient) FetchDetails(_ context.Context, name string, uids []uint32) ([]MessageDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.selectLocked(name); err != nil {
		return nil, err
	}

	bodySection := &goimap.FetchItemBodySection{Peek: true}
	fetchCmd := r.client.Fetch(uidSetOf(uids), &goimap.FetchOptions{
		UID:         true,
		Flags:       true,
		Envelope:    true,
		BodySection: []*goimap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var details []MessageDetails
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		details = append(details, detailsFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return details, fmt.Errorf("fetching message details in %q: %w", name, err)
	}
	return details, nil
}

func (r *remoteClient) Copy(_ context.Context, src, dest string, uids []uint32, opts CopyOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.selectLocked(src); err != nil {
		return err
	}

	err := r.copyLocked(dest, uids, opts.Move)
	if err != nil && opts.Create {
		if createErr := r.client.Create(dest, nil).Wait(); createErr != nil {
			return fmt.Errorf("creating mailbox %q: %w", dest, createErr)
		}
		err = r.copyLocked(dest, uids, opts.Move)
	}
	if err != nil {
		return fmt.Errorf("copying %v from %q to %q: %w", uids, src, dest, err)
	}
	return nil
}

func (r *remoteClient) copyLocked(dest string, uids []uint32, move bool) error {
	uidSet := uidSetOf(uids)
	if move {
		_, err := r.client.Move(uidSet, dest).Wait()
		return err
	}
	_, err := r.client.Copy(uidSet, dest).Wait()
	return err
}

func (r *remoteClient) Expunge(_ context.Context, name string, uids []uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.selectLocked(name); err != nil {
		return err
	}

	uidSet := uidSetOf(uids)
	storeCmd := r.client.Store(uidSet, &goimap.StoreFlags{
		Op:     goimap.StoreFlagsAdd,
		Silent: true,
		Flags:  []goimap.Flag{goimap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging %v deleted in %q: %w", uids, name, err)
	}

	if r.client.Caps().Has(goimap.CapUIDPlus) {
		if _, err := r.client.UIDExpunge(uidSet).Collect(); err != nil {
			return fmt.Errorf("expunging %v from %q: %w", uids, name, err)
		}
		return nil
	}
	if _, err := r.client.Expunge().Collect(); err != nil {
		return fmt.Errorf("expunging %q: %w", name, err)
	}
	return nil
}

func (r *remoteClient) CreateMailbox(_ context.Context, name string, opts CreateOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var createOpts *goimap.CreateOptions
	if len(opts.SpecialUse) > 0 {
		attrs := make([]goimap.MailboxAttr, 0, len(opts.SpecialUse))
		for _, use := range opts.SpecialUse {
			attrs = append(attrs, goimap.MailboxAttr(use))
		}
		createOpts = &goimap.CreateOptions{SpecialUse: attrs}
	}

	if err := r.client.Create(name, createOpts).Wait(); err != nil {
		return fmt.Errorf("creating mailbox %q: %w", name, err)
	}
	return nil
}

func (r *remoteClient) DeleteMailbox(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected == name {
		r.selected = ""
	}
	if err := r.client.Delete(name).Wait(); err != nil {
		return fmt.Errorf("deleting mailbox %q: %w", name, err)
	}
	return nil
}

func (r *remoteClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.Logout().Wait(); err != nil {
		return r.client.Close()
	}
	return nil
}

// selectLocked selects the mailbox unless it is already selected.
func (r *remoteClient) selectLocked(name string) (*goimap.SelectData, error) {
	selectOpts := &goimap.SelectOptions{}
	if r.supportsSyncLocked() {
		selectOpts.CondStore = true
	}
	data, err := r.client.Select(name, selectOpts).Wait()
	if err != nil {
		return nil, fmt.Errorf("selecting %q: %w", name, err)
	}
	r.selected = name
	return data, nil
}

func (r *remoteClient) fetchStatesLocked(name string, uids goimap.UIDSet, opts *goimap.FetchOptions) ([]MessageState, error) {
	fetchCmd := r.client.Fetch(uids, opts)
	defer fetchCmd.Close()

	var states []MessageState
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		states = append(states, MessageState{
			UID:    uint32(buf.UID),
			ModSeq: buf.ModSeq,
			Flags:  flagsToStrings(buf.Flags),
		})
	}

	if err := fetchCmd.Close(); err != nil {
		return states, fmt.Errorf("fetching messages in %q: %w", name, err)
	}
	return states, nil
}

func statusFromData(data *goimap.StatusData) MailboxStatus {
	status := MailboxStatus{
		Name:          data.Mailbox,
		UIDNext:       uint32(data.UIDNext),
		UIDValidity:   data.UIDValidity,
		HighestModSeq: data.HighestModSeq,
	}
	if data.NumMessages != nil {
		status.Total = *data.NumMessages
	}
	if data.NumUnseen != nil {
		status.Unseen = *data.NumUnseen
	}
	return status
}

func detailsFromBuffer(buf *imapclient.FetchMessageBuffer, section *goimap.FetchItemBodySection) MessageDetails {
	details := MessageDetails{
		UID:   uint32(buf.UID),
		Flags: flagsToStrings(buf.Flags),
	}

	if buf.Envelope != nil {
		details.Subject = buf.Envelope.Subject
		details.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				details.From = from.Name
			} else {
				details.From = from.Addr()
			}
		}
		for _, to := range buf.Envelope.To {
			details.To = append(details.To, to.Addr())
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		details.Snippet = snippetFromBody(raw)
	}
	return details
}

func flagsToStrings(flags []goimap.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, 0, len(flags))
	for _, flag := range flags {
		out = append(out, string(flag))
	}
	return out
}

func uidSetOf(uids []uint32) goimap.UIDSet {
	converted := make([]goimap.UID, 0, len(uids))
	for _, uid := range uids {
		converted = append(converted, goimap.UID(uid))
	}
	return goimap.UIDSetNum(converted...)
}


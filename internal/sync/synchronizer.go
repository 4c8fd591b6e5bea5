// Package sync implements the per-folder incremental message
// synchronization protocol.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/doronbehar/mail/internal/imap"
	"github.com/doronbehar/mail/internal/model"
)

// Error indicates malformed or unexpectedly absent server delta data.
// The synchronizer degrades to a full resync on its own; an Error only
// surfaces when even that fails.
type Error struct {
	Folder string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sync error (%s): %v", e.Folder, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsSyncError reports whether err (or any error in its chain) is a sync
// Error.
func IsSyncError(err error) bool {
	var syncErr *Error
	return errors.As(err, &syncErr)
}

// Request describes one synchronization pass over a folder.
type Request struct {
	// Folder is the target mailbox path.
	Folder string

	// Token is the last-known sync token, nil for the first pass.
	Token *model.SyncToken

	// KnownUIDs is the caller-held set of previously seen message
	// UIDs. It is required for vanished-message detection; without it
	// no vanished messages are reported.
	KnownUIDs []uint32

	// WantDetails requests envelope data and a body snippet for newly
	// visible messages.
	WantDetails bool
}

// Message is one message delta entry.
type Message struct {
	UID     uint32
	Flags   []string
	Details *imap.MessageDetails
}

// Response carries the deltas of one synchronization pass and the token
// for the next one.
type Response struct {
	Token    model.SyncToken
	New      []Message
	Changed  []Message
	Vanished []uint32
}

// Synchronizer computes message deltas for one folder at a time. Calls
// for the same folder and token must be serialized by the caller; each
// call both reads and advances the token.
type Synchronizer struct {
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer. A nil logger falls back to
// slog.Default.
func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger}
}

// Sync computes the set of new, changed, and vanished messages since the
// request's token and returns a new token. A nil token, a token from a
// stale UID-validity epoch, or a failed incremental fetch all result in
// a full resync; a full resync is always a safe superset.
func (s *Synchronizer) Sync(ctx context.Context, client imap.Client, req Request) (*Response, error) {
	current, err := client.SyncToken(ctx, req.Folder)
	if err != nil {
		return nil, &Error{Folder: req.Folder, Err: err}
	}

	token := req.Token
	if token != nil && token.UIDValidity != current.UIDValidity {
		s.logger.Info("uid validity changed, forcing full resync",
			"folder", req.Folder,
			"token_epoch", token.UIDValidity,
			"current_epoch", current.UIDValidity)
		token = nil
	}

	var resp *Response
	if token == nil {
		resp, err = s.fullSync(ctx, client, req.Folder, current)
	} else {
		resp, err = s.incrementalSync(ctx, client, req, *token, current)
	}
	if err != nil {
		return nil, err
	}

	if req.WantDetails && len(resp.New) > 0 {
		s.attachDetails(ctx, client, req.Folder, resp)
	}
	return resp, nil
}

// fullSync lists the folder's entire message state and reports it all as
// new.
func (s *Synchronizer) fullSync(ctx context.Context, client imap.Client, folder string, current model.SyncToken) (*Response, error) {
	messages, err := client.ListMessages(ctx, folder)
	if err != nil {
		return nil, &Error{Folder: folder, Err: fmt.Errorf("listing messages: %w", err)}
	}

	resp := &Response{Token: current}
	for _, msg := range messages {
		resp.New = append(resp.New, Message{UID: msg.UID, Flags: msg.Flags})
		if msg.UID > resp.Token.MaxUID {
			resp.Token.MaxUID = msg.UID
		}
		if msg.ModSeq > resp.Token.HighestModSeq {
			resp.Token.HighestModSeq = msg.ModSeq
		}
	}
	return resp, nil
}

// incrementalSync fetches only messages changed since the token and
// partitions them into newly appeared and flag-changed. A failed delta
// fetch degrades to a full resync.
func (s *Synchronizer) incrementalSync(ctx context.Context, client imap.Client, req Request, token, current model.SyncToken) (*Response, error) {
	changed, err := client.ChangedSince(ctx, req.Folder, token.HighestModSeq)
	if err != nil {
		s.logger.Warn("incremental fetch failed, degrading to full resync",
			"folder", req.Folder, "error", err)
		return s.fullSync(ctx, client, req.Folder, current)
	}

	resp := &Response{
		Token: model.SyncToken{
			UIDValidity:   current.UIDValidity,
			HighestModSeq: max(token.HighestModSeq, current.HighestModSeq),
			MaxUID:        max(token.MaxUID, current.MaxUID),
		},
	}

	for _, msg := range changed {
		entry := Message{UID: msg.UID, Flags: msg.Flags}
		if msg.UID > token.MaxUID {
			resp.New = append(resp.New, entry)
		} else {
			resp.Changed = append(resp.Changed, entry)
		}
		if msg.UID > resp.Token.MaxUID {
			resp.Token.MaxUID = msg.UID
		}
		if msg.ModSeq > resp.Token.HighestModSeq {
			resp.Token.HighestModSeq = msg.ModSeq
		}
	}

	resp.Vanished = s.detectVanished(ctx, client, req)
	return resp, nil
}

// detectVanished diffs the caller-held known UID set against the
// folder's current UIDs. Without a known set, or when the listing is
// unavailable, no vanished messages are reported; that silence is the
// conservative default, not an error.
func (s *Synchronizer) detectVanished(ctx context.Context, client imap.Client, req Request) []uint32 {
	if len(req.KnownUIDs) == 0 {
		return nil
	}

	currentUIDs, err := client.ListUIDs(ctx, req.Folder)
	if err != nil {
		s.logger.Warn("vanished detection unavailable", "folder", req.Folder, "error", err)
		return nil
	}

	present := make(map[uint32]bool, len(currentUIDs))
	for _, uid := range currentUIDs {
		present[uid] = true
	}

	var vanished []uint32
	for _, uid := range req.KnownUIDs {
		if !present[uid] {
			vanished = append(vanished, uid)
		}
	}
	sort.Slice(vanished, func(i, j int) bool { return vanished[i] < vanished[j] })
	return vanished
}

// attachDetails decorates new messages with envelope data and snippets.
// A failed details fetch leaves the delta intact.
func (s *Synchronizer) attachDetails(ctx context.Context, client imap.Client, folder string, resp *Response) {
	uids := make([]uint32, 0, len(resp.New))
	for _, msg := range resp.New {
		uids = append(uids, msg.UID)
	}

	details, err := client.FetchDetails(ctx, folder, uids)
	if err != nil {
		s.logger.Warn("fetching message details", "folder", folder, "error", err)
		return
	}

	byUID := make(map[uint32]imap.MessageDetails, len(details))
	for _, d := range details {
		byUID[d.UID] = d
	}
	for i := range resp.New {
		if d, ok := byUID[resp.New[i].UID]; ok {
			detail := d
			resp.New[i].Details = &detail
		}
	}
}

package imap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doronbehar/mail/internal/model"
)

// ConnectionError indicates that a protocol session could not be
// established or has failed: authentication, network, or TLS negotiation.
// It is fatal to the calling operation and is not retried internally.
type ConnectionError struct {
	Account string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Account, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// MailboxInfo is one entry of a mailbox listing.
type MailboxInfo struct {
	Name      string
	Delimiter rune

	// Attributes are the raw server attributes, e.g. `\Noselect` or
	// `\Trash`. Casing is server-dependent.
	Attributes []string
}

// MailboxStatus is a point-in-time snapshot of one mailbox.
type MailboxStatus struct {
	Name          string
	Total         uint32
	Unseen        uint32
	UIDValidity   uint32
	UIDNext       uint32
	HighestModSeq uint64
}

// MessageState is the sync-relevant state of one message.
type MessageState struct {
	UID    uint32
	ModSeq uint64
	Flags  []string
}

// MessageDetails carries envelope data and a plain-text snippet for a
// message, fetched on demand for newly visible messages.
type MessageDetails struct {
	UID     uint32
	Subject string
	From    string
	To      []string
	Date    time.Time
	Flags   []string
	Snippet string
}

// CopyOptions controls a copy operation.
type CopyOptions struct {
	// Move removes the source messages after copying.
	Move bool

	// Create creates the destination mailbox if it does not exist.
	Create bool
}

// CreateOptions controls mailbox creation.
type CreateOptions struct {
	// SpecialUse requests special-use attributes for the new mailbox,
	// e.g. `\Drafts`.
	SpecialUse []string
}

// Client is the narrow protocol surface this core consumes. The wire
// codec behind it is an external collaborator; implementations must
// serialize their own in-flight operations, since a single session
// supports at most one at a time.
type Client interface {
	// ListMailboxes lists all mailboxes matching pattern, including
	// delimiter, attribute, and special-use metadata.
	ListMailboxes(ctx context.Context, pattern string) ([]MailboxInfo, error)

	// Status fetches message-count and UID status for the named
	// mailboxes. Mailboxes whose status could not be fetched are absent
	// from the result; their absence is not an error.
	Status(ctx context.Context, names []string) (map[string]MailboxStatus, error)

	// SupportsSync reports whether the server advertises an
	// incremental-sync capability (CONDSTORE/QRESYNC or equivalent).
	SupportsSync() bool

	// SyncToken computes the current sync token of a mailbox.
	SyncToken(ctx context.Context, name string) (model.SyncToken, error)

	// ListMessages lists the UID, modification sequence, and flags of
	// every message in the mailbox.
	ListMessages(ctx context.Context, name string) ([]MessageState, error)

	// ChangedSince lists messages whose state changed after the given
	// modification sequence.
	ChangedSince(ctx context.Context, name string, modSeq uint64) ([]MessageState, error)

	// ListUIDs lists the UIDs currently present in the mailbox.
	ListUIDs(ctx context.Context, name string) ([]uint32, error)

	// FetchDetails fetches envelope data and a body snippet for the
	// given messages.
	FetchDetails(ctx context.Context, name string, uids []uint32) ([]MessageDetails, error)

	// Copy copies (or moves) messages between mailboxes.
	Copy(ctx context.Context, src, dest string, uids []uint32, opts CopyOptions) error

	// Expunge permanently removes the given messages from the mailbox.
	Expunge(ctx context.Context, name string, uids []uint32) error

	// CreateMailbox creates a mailbox.
	CreateMailbox(ctx context.Context, name string, opts CreateOptions) error

	// DeleteMailbox deletes a mailbox.
	DeleteMailbox(ctx context.Context, name string) error

	// Close terminates the session.
	Close() error
}

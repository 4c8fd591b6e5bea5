package model

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// SyncToken is an opaque, folder-scoped synchronization high-water mark.
// A token is only valid for the UID-validity epoch that produced it; a
// token from a prior epoch is equivalent to having no token at all.
type SyncToken struct {
	// UIDValidity is the mailbox epoch the token belongs to.
	UIDValidity uint32

	// HighestModSeq is the last modification sequence seen. Zero when
	// the server does not report modification sequences.
	HighestModSeq uint64

	// MaxUID is the highest message UID seen.
	MaxUID uint32
}

const syncTokenVersion = "1"

// String encodes the token into its opaque wire form.
func (t SyncToken) String() string {
	raw := fmt.Sprintf("%s:%d:%d:%d", syncTokenVersion, t.UIDValidity, t.HighestModSeq, t.MaxUID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseSyncToken decodes an opaque token string. Callers must treat a
// parse failure as "no prior state", not as a fatal condition.
func ParseSyncToken(s string) (SyncToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return SyncToken{}, fmt.Errorf("decoding sync token: %w", err)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 {
		return SyncToken{}, fmt.Errorf("malformed sync token %q", s)
	}
	if parts[0] != syncTokenVersion {
		return SyncToken{}, fmt.Errorf("unknown sync token version %q", parts[0])
	}

	uidValidity, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return SyncToken{}, fmt.Errorf("malformed sync token %q: %w", s, err)
	}
	modSeq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return SyncToken{}, fmt.Errorf("malformed sync token %q: %w", s, err)
	}
	maxUID, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return SyncToken{}, fmt.Errorf("malformed sync token %q: %w", s, err)
	}

	return SyncToken{
		UIDValidity:   uint32(uidValidity),
		HighestModSeq: modSeq,
		MaxUID:        uint32(maxUID),
	}, nil
}

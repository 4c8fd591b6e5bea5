package imap

import (
	"context"
	"encoding/json"
)

// cachingClient wraps a Client with a response cache for the expensive,
// rarely-changing queries (mailbox listings). Cache failures degrade to
// uncached operation; they never fail the call.
type cachingClient struct {
	Client

	cache  Cache
	prefix string
}

var _ Client = (*cachingClient)(nil)

func newCachingClient(inner Client, cache Cache, prefix string) *cachingClient {
	return &cachingClient{Client: inner, cache: cache, prefix: prefix}
}

func (c *cachingClient) listKey(pattern string) string {
	return c.prefix + ":list:" + pattern
}

func (c *cachingClient) ListMailboxes(ctx context.Context, pattern string) ([]MailboxInfo, error) {
	key := c.listKey(pattern)

	if blob, ok := c.cache.Get(key); ok {
		var cached []MailboxInfo
		if err := json.Unmarshal(blob, &cached); err == nil {
			return cached, nil
		}
		// A corrupt entry is dropped, not surfaced.
		_ = c.cache.Delete(key)
	}

	infos, err := c.Client.ListMailboxes(ctx, pattern)
	if err != nil {
		return nil, err
	}

	if blob, err := json.Marshal(infos); err == nil {
		_ = c.cache.Set(key, blob)
	}
	return infos, nil
}

// CreateMailbox invalidates cached listings, since the mailbox set
// changed.
func (c *cachingClient) CreateMailbox(ctx context.Context, name string, opts CreateOptions) error {
	if err := c.Client.CreateMailbox(ctx, name, opts); err != nil {
		return err
	}
	c.invalidateListings()
	return nil
}

// DeleteMailbox invalidates cached listings.
func (c *cachingClient) DeleteMailbox(ctx context.Context, name string) error {
	if err := c.Client.DeleteMailbox(ctx, name); err != nil {
		return err
	}
	c.invalidateListings()
	return nil
}

// Copy invalidates listings when it may create the destination mailbox.
func (c *cachingClient) Copy(ctx context.Context, src, dest string, uids []uint32, opts CopyOptions) error {
	if err := c.Client.Copy(ctx, src, dest, uids, opts); err != nil {
		return err
	}
	if opts.Create {
		c.invalidateListings()
	}
	return nil
}

func (c *cachingClient) invalidateListings() {
	// Listings are cached per pattern; "*" is the only pattern the
	// mapper uses by default.
	_ = c.cache.Delete(c.listKey("*"))
}

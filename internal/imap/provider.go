package imap

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/doronbehar/mail/internal/model"
)

// Decrypter turns a stored password ciphertext back into the plaintext
// password. Failure is fatal to connection establishment.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Cache is a keyed byte-blob cache usable as a connection's response
// cache. Implementations must degrade gracefully; a cache miss and a
// cache failure look the same to callers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	// Timeout bounds connection establishment and every protocol
	// round-trip. Zero means 20 seconds.
	Timeout time.Duration

	// DebugLog, when non-empty, receives a raw protocol trace.
	DebugLog string

	// ServerSideCache enables response caching when a Cache is present.
	ServerSideCache bool
}

// Provider lazily establishes and memoizes one authenticated session per
// account. Connections are not pooled across accounts.
type Provider struct {
	opts    ProviderOptions
	crypto  Decrypter
	cache   Cache // optional, may be nil
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[int64]Client
}

// NewProvider creates a Provider. cache may be nil, in which case all
// connections run uncached.
func NewProvider(opts ProviderOptions, crypto Decrypter, cache Cache, logger *slog.Logger) *Provider {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		opts:    opts,
		crypto:  crypto,
		cache:   cache,
		logger:  logger,
		clients: make(map[int64]Client),
	}
}

// Client returns the account's session, establishing it on first use.
// The same Client is returned for the account's lifetime within this
// provider.
func (p *Provider) Client(ctx context.Context, account *model.Account) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[account.ID]; ok {
		return client, nil
	}

	client, err := p.connect(ctx, account)
	if err != nil {
		return nil, err
	}

	p.clients[account.ID] = client
	return client, nil
}

// CloseAll tears down every open session. The provider can be reused
// afterwards; sessions re-establish on demand.
func (p *Provider) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, client := range p.clients {
		if err := client.Close(); err != nil {
			p.logger.Warn("closing connection", "account", id, "error", err)
		}
		delete(p.clients, id)
	}
}

func (p *Provider) connect(_ context.Context, account *model.Account) (Client, error) {
	password, err := p.crypto.Decrypt(account.Inbound.Password)
	if err != nil {
		return nil, &ConnectionError{
			Account: account.Email,
			Err:     fmt.Errorf("decrypting password: %w", err),
		}
	}

	mode := model.ResolveSecurityMode(account.Inbound.Security)
	addr := net.JoinHostPort(account.Inbound.Host, fmt.Sprintf("%d", account.Inbound.Port))

	options := &imapclient.Options{}
	if writer := p.debugWriter(account); writer != nil {
		options.DebugWriter = writer
	}

	client, err := dial(addr, account.Inbound.Host, mode, p.opts.Timeout, options)
	if err != nil {
		return nil, &ConnectionError{
			Account: account.Email,
			Err:     fmt.Errorf("connecting to IMAP %s: %w", addr, err),
		}
	}

	if err := client.Login(account.Inbound.User, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &ConnectionError{
			Account: account.Email,
			Err:     fmt.Errorf("authentication failed for %s: %w", account.Inbound.User, err),
		}
	}

	p.logger.Debug("connection established",
		"account", account.ID, "host", account.Inbound.Host, "security", string(mode))

	wrapped := Client(newRemoteClient(client))
	if p.opts.ServerSideCache && p.cache != nil {
		wrapped = newCachingClient(wrapped, p.cache, cacheKeyPrefix(account))
	}
	return wrapped, nil
}

// debugWriter opens the protocol trace sink, if configured. Trace
// failures never fail the connection.
func (p *Provider) debugWriter(account *model.Account) io.Writer {
	if p.opts.DebugLog == "" {
		return nil
	}
	f, err := os.OpenFile(p.opts.DebugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		p.logger.Warn("opening debug log", "path", p.opts.DebugLog, "error", err)
		return nil
	}
	_, _ = fmt.Fprintf(f, "--- account %d ---\n", account.ID)
	return f
}

// dial establishes the transport according to the resolved security mode.
func dial(addr, serverName string, mode model.SecurityMode, timeout time.Duration, options *imapclient.Options) (*imapclient.Client, error) {
	dialer := &net.Dialer{Timeout: timeout}

	switch mode {
	case model.SecurityNone:
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		return imapclient.New(conn, options), nil

	case model.SecurityStartTLS:
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		if options.TLSConfig == nil {
			options.TLSConfig = &tls.Config{ServerName: serverName}
		}
		return imapclient.NewStartTLS(conn, options)

	default:
		tlsConfig := options.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: serverName}
		}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return imapclient.New(conn, options), nil
	}
}

// cacheKeyPrefix derives the cache namespace from a stable hash of the
// account identity.
func cacheKeyPrefix(account *model.Account) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d%s", account.ID, account.Email)))
	return hex.EncodeToString(sum[:8])
}

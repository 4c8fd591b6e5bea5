package model

// SecurityMode selects the transport security used when connecting to a
// mail server.
type SecurityMode string

const (
	// SecurityNone disables transport security entirely.
	SecurityNone SecurityMode = "none"

	// SecurityTLS uses implicit TLS on connect.
	SecurityTLS SecurityMode = "tls"

	// SecurityStartTLS upgrades a plaintext connection via STARTTLS.
	SecurityStartTLS SecurityMode = "starttls"
)

// ResolveSecurityMode maps a stored security mode value to an effective one.
// An empty or absent value resolves to implicit TLS; "none" stays unsecured;
// any other value is passed through unchanged.
func ResolveSecurityMode(mode string) SecurityMode {
	switch mode {
	case "":
		return SecurityTLS
	case string(SecurityNone):
		return SecurityNone
	default:
		return SecurityMode(mode)
	}
}

// ServerSettings holds the connection parameters for one mail server
// endpoint. Password is stored encrypted and is only decrypted at
// connection time.
type ServerSettings struct {
	Host     string
	Port     int
	Security string
	User     string
	Password string
}

// Alias is an alternative identity for an account. When set, its name
// overrides the account's display name.
type Alias struct {
	Name  string
	Email string
}

// Account identifies one mailbox owner with its inbound (IMAP) and
// outbound (SMTP) connection parameters.
type Account struct {
	ID     int64
	UserID string
	Name   string
	Email  string

	Inbound  ServerSettings
	Outbound ServerSettings

	Alias *Alias
}

// DisplayName returns the account's name, preferring the alias when one
// is set.
func (a *Account) DisplayName() string {
	if a.Alias != nil && a.Alias.Name != "" {
		return a.Alias.Name
	}
	return a.Name
}

package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL,
	inbound_host      TEXT NOT NULL DEFAULT '',
	inbound_port      INTEGER NOT NULL DEFAULT 0,
	inbound_security  TEXT NOT NULL DEFAULT '',
	inbound_user      TEXT NOT NULL DEFAULT '',
	inbound_password  TEXT NOT NULL DEFAULT '',
	outbound_host     TEXT NOT NULL DEFAULT '',
	outbound_port     INTEGER NOT NULL DEFAULT 0,
	outbound_security TEXT NOT NULL DEFAULT '',
	outbound_user     TEXT NOT NULL DEFAULT '',
	outbound_password TEXT NOT NULL DEFAULT '',
	alias_name        TEXT NOT NULL DEFAULT '',
	alias_email       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_tokens (
	account_id      INTEGER NOT NULL,
	folder_id       TEXT NOT NULL,
	uid_validity    INTEGER NOT NULL,
	highest_mod_seq INTEGER NOT NULL DEFAULT 0,
	max_uid         INTEGER NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account_id, folder_id),
	FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_sync_tokens_account
	ON sync_tokens(account_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}

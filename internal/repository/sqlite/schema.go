package sqlite

// schemaVersion is stored in PRAGMA user_version after the schema is applied.
const schemaVersion = 1

// schemaSQL creates every table the service uses. Statements are idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	role         TEXT NOT NULL DEFAULT 'user',
	email        TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	id_number    TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	site         TEXT NOT NULL DEFAULT '',
	on_duty      INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_duty ON users (role, on_duty, site);

CREATE TABLE IF NOT EXISTS push_addresses (
	user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	address    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, address)
);

CREATE TABLE IF NOT EXISTS contacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts (owner_id, id);

CREATE TABLE IF NOT EXISTS alerts (
	id                   TEXT PRIMARY KEY,
	originator_id        TEXT NOT NULL DEFAULT '',
	originator_name      TEXT NOT NULL DEFAULT '',
	originator_id_number TEXT NOT NULL DEFAULT '',
	lat                  REAL,
	lng                  REAL,
	site                 TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMP,
	status               TEXT NOT NULL DEFAULT 'open'
		CHECK (status IN ('open', 'accepted', 'resolved')),
	claimant_id          TEXT,
	accepted_at          TIMESTAMP,
	fanout_responders    INTEGER,
	fanout_contacts      INTEGER,
	fanout_at            TIMESTAMP,
	CHECK ((status = 'open') = (claimant_id IS NULL))
);

CREATE TABLE IF NOT EXISTS outbound_messages (
	id          TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	type        TEXT NOT NULL,
	body        TEXT NOT NULL,
	tag         TEXT NOT NULL,
	alert_id    TEXT NOT NULL,
	audience    TEXT NOT NULL CHECK (audience IN ('responder', 'contact')),
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbound_alert ON outbound_messages (alert_id, created_at);

CREATE TABLE IF NOT EXISTS pairings (
	id            TEXT PRIMARY KEY,
	alert_id      TEXT NOT NULL UNIQUE REFERENCES alerts (id),
	originator_id TEXT,
	responder_id  TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	status        TEXT NOT NULL
);
`

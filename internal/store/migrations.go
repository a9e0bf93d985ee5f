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

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS kv_meta (
	id         INTEGER PRIMARY KEY CHECK(id = 1),
	revision   INTEGER NOT NULL DEFAULT 0,
	writer     TEXT NOT NULL DEFAULT '',
	updated_at DATETIME
);

INSERT OR IGNORE INTO kv_meta (id, revision, writer) VALUES (1, 0, '');

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

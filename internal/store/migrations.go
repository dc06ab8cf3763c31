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

CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	owner             TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	deleted_at        TEXT,
	client_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS time_entries (
	id                TEXT PRIMARY KEY,
	owner             TEXT NOT NULL,
	task_id           TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	stopped_at        TEXT,
	comment           TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	deleted_at        TEXT,
	client_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	tbl               TEXT NOT NULL,
	record_id         TEXT NOT NULL,
	op                TEXT NOT NULL,
	payload           TEXT NOT NULL,
	owner             TEXT NOT NULL,
	client_updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
CREATE INDEX IF NOT EXISTS idx_entries_owner ON time_entries(owner);
CREATE INDEX IF NOT EXISTS idx_entries_task_id ON time_entries(task_id);
CREATE INDEX IF NOT EXISTS idx_entries_started_at ON time_entries(started_at);
CREATE INDEX IF NOT EXISTS idx_outbox_owner ON outbox(owner);
CREATE INDEX IF NOT EXISTS idx_outbox_record_id ON outbox(record_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

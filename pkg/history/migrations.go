package history

type migration struct {
	version int
	sql     string
}

// migrations must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	project      TEXT NOT NULL,
	fix_version  TEXT NOT NULL,
	issue_type   TEXT NOT NULL,
	max_results  INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'running',
	issues       INTEGER NOT NULL DEFAULT 0,
	enriched     INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	details      TEXT NOT NULL DEFAULT '[]',
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

package store

// schemaVersion is the current schema version. Increment when adding migrations.
const schemaVersion = 1

// migrations maps version numbers to SQL statements that bring the schema
// from (version-1) to (version). Version 1 is the initial schema.
var migrations = map[int]string{
	1: `
-- Journal of coalesced refreshes fired by the watcher. One row per
-- broadcast, not per raw filesystem event.
CREATE TABLE IF NOT EXISTS refreshes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	staged      INTEGER NOT NULL DEFAULT 0,
	modified    INTEGER NOT NULL DEFAULT 0,
	deleted     INTEGER NOT NULL DEFAULT 0,
	untracked   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_refreshes_timestamp ON refreshes(timestamp);
`,
}

package sqlite

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes, edges and memory units",
		SQL: `
CREATE TABLE nodes (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    label        TEXT NOT NULL,
    type         TEXT NOT NULL CHECK (type IN ('text', 'code', 'video', 'image', 'pdf')),
    status       TEXT NOT NULL CHECK (status IN ('new', 'learning', 'review_due', 'mastered', 'inbox')),
    data         TEXT NOT NULL DEFAULT '{}',
    tags         TEXT NOT NULL DEFAULT '[]',
    weight       INTEGER NOT NULL DEFAULT 0,
    position_x   REAL NOT NULL DEFAULT 0,
    position_y   REAL NOT NULL DEFAULT 0,
    last_review  INTEGER,
    next_review  INTEGER,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_nodes_user ON nodes(user_id, created_at);

CREATE TABLE edges (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    source         TEXT NOT NULL,
    target         TEXT NOT NULL,
    source_handle  TEXT NOT NULL DEFAULT '',
    target_handle  TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL CHECK (type IN ('socratic', 'semantic', 'biologic')),
    is_tentative   INTEGER NOT NULL DEFAULT 0,
    semantic_label TEXT NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_edges_user ON edges(user_id, created_at);

CREATE TABLE memory_units (
    id           TEXT PRIMARY KEY,
    node_id      TEXT NOT NULL,
    user_id      TEXT NOT NULL,
    question     TEXT NOT NULL,
    answer       TEXT NOT NULL DEFAULT '',
    text_segment TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'learning', 'mastered')),
    ease_factor  REAL NOT NULL DEFAULT 2.5,
    interval     INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
);

CREATE INDEX idx_units_node ON memory_units(node_id);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

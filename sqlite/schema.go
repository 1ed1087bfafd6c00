package sqlite

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bots (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    name               TEXT NOT NULL,
    tone               TEXT NOT NULL DEFAULT '',
    initial_message    TEXT NOT NULL DEFAULT '',
    menu_options       TEXT NOT NULL DEFAULT '[]',
    is_webchat_enabled INTEGER NOT NULL DEFAULT 1,
    conversation_count INTEGER NOT NULL DEFAULT 0,
    message_count      INTEGER NOT NULL DEFAULT 0,
    created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flow_nodes (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id        INTEGER NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    frontend_id   TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT 'message',
    trigger_text  TEXT NOT NULL DEFAULT '',
    response_text TEXT NOT NULL DEFAULT '',
    position      INTEGER NOT NULL DEFAULT 0,
    position_x    REAL NOT NULL DEFAULT 0,
    position_y    REAL NOT NULL DEFAULT 0,
    metadata      TEXT,
    is_deleted    INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flow_edges (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id        INTEGER NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    source_id     INTEGER NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    target_id     INTEGER NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    frontend_id   TEXT NOT NULL DEFAULT '',
    condition     TEXT NOT NULL DEFAULT '',
    edge_type     TEXT NOT NULL DEFAULT 'default',
    source_handle TEXT NOT NULL DEFAULT '',
    target_handle TEXT NOT NULL DEFAULT '',
    animated      INTEGER NOT NULL DEFAULT 1,
    style         TEXT,
    metadata      TEXT,
    is_deleted    INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_states (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_id             INTEGER NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    contact_identifier TEXT NOT NULL,
    current_node_id    INTEGER NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL,
    UNIQUE (bot_id, contact_identifier)
);

CREATE TABLE IF NOT EXISTS flow_backups (
    id         TEXT PRIMARY KEY,
    bot_id     INTEGER NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    version    INTEGER NOT NULL,
    payload    TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (bot_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flow_nodes_bot_id   ON flow_nodes(bot_id);
CREATE INDEX IF NOT EXISTS idx_flow_nodes_frontend ON flow_nodes(bot_id, frontend_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_bot_id   ON flow_edges(bot_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_source   ON flow_edges(source_id);
CREATE INDEX IF NOT EXISTS idx_flow_edges_target   ON flow_edges(target_id);
CREATE INDEX IF NOT EXISTS idx_flow_backups_bot_id ON flow_backups(bot_id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_nodes_live_frontend
    ON flow_nodes(bot_id, frontend_id)
    WHERE is_deleted = 0 AND frontend_id <> '';
`

// CreateSchema creates the flow engine tables if they don't exist.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropSchema drops all flow engine tables.
func (s *SQLiteStore) DropSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DROP TABLE IF EXISTS flow_backups;
		DROP TABLE IF EXISTS conversation_states;
		DROP TABLE IF EXISTS flow_edges;
		DROP TABLE IF EXISTS flow_nodes;
		DROP TABLE IF EXISTS bots;`)
	return err
}

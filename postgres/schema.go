package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bots (
    id                 BIGSERIAL PRIMARY KEY,
    name               TEXT NOT NULL,
    tone               TEXT NOT NULL DEFAULT '',
    initial_message    TEXT NOT NULL DEFAULT '',
    menu_options       JSONB NOT NULL DEFAULT '[]',
    is_webchat_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    conversation_count BIGINT NOT NULL DEFAULT 0,
    message_count      BIGINT NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_nodes (
    id            BIGSERIAL PRIMARY KEY,
    bot_id        BIGINT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    frontend_id   TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT 'message',
    trigger_text  TEXT NOT NULL DEFAULT '',
    response_text TEXT NOT NULL DEFAULT '',
    position      INTEGER NOT NULL DEFAULT 0,
    position_x    DOUBLE PRECISION NOT NULL DEFAULT 0,
    position_y    DOUBLE PRECISION NOT NULL DEFAULT 0,
    metadata      JSONB,
    is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS flow_edges (
    id            BIGSERIAL PRIMARY KEY,
    bot_id        BIGINT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    source_id     BIGINT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    target_id     BIGINT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    frontend_id   TEXT NOT NULL DEFAULT '',
    condition     TEXT NOT NULL DEFAULT '',
    edge_type     TEXT NOT NULL DEFAULT 'default',
    source_handle TEXT NOT NULL DEFAULT '',
    target_handle TEXT NOT NULL DEFAULT '',
    animated      BOOLEAN NOT NULL DEFAULT TRUE,
    style         JSONB,
    metadata      JSONB,
    is_deleted    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversation_states (
    id                 BIGSERIAL PRIMARY KEY,
    bot_id             BIGINT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    contact_identifier TEXT NOT NULL,
    current_node_id    BIGINT NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (bot_id, contact_identifier)
);

CREATE TABLE IF NOT EXISTS flow_backups (
    id         TEXT PRIMARY KEY,
    bot_id     BIGINT NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
    version    INTEGER NOT NULL,
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
    WHERE NOT is_deleted AND frontend_id <> '';
`

// CreateSchema creates the flow engine tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops all flow engine tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`DROP TABLE IF EXISTS flow_backups, conversation_states, flow_edges, flow_nodes, bots CASCADE;`)
	return err
}

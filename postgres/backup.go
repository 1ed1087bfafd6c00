package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/botflow"
)

// InsertBackup stores a snapshot, assigns the bot's next version number
// and evicts the oldest snapshots past the retention bound. The bot row
// is locked so two concurrent snapshots can't claim the same version.
func (s *PGStore) InsertBackup(ctx context.Context, b *botflow.Backup) error {
	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("botflow: marshal backup payload: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("botflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM bots WHERE id = $1 FOR UPDATE`, b.BotID).Scan(&locked); err != nil {
		if isNoRows(err) {
			return botflow.ErrBotNotFound
		}
		return fmt.Errorf("botflow: lock bot: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM flow_backups WHERE bot_id = $1`,
		b.BotID).Scan(&b.Version); err != nil {
		return fmt.Errorf("botflow: next backup version: %w", err)
	}

	if b.CreatedAt.IsZero() {
		if err := tx.QueryRow(ctx,
			`INSERT INTO flow_backups (id, bot_id, version, payload)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			b.ID, b.BotID, b.Version, payload).Scan(&b.CreatedAt); err != nil {
			return fmt.Errorf("botflow: insert backup: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO flow_backups (id, bot_id, version, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, b.BotID, b.Version, payload, b.CreatedAt); err != nil {
			return fmt.Errorf("botflow: insert backup: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM flow_backups
		 WHERE id IN (
		     SELECT id FROM flow_backups
		     WHERE bot_id = $1
		     ORDER BY created_at DESC, version DESC
		     OFFSET $2
		 )`,
		b.BotID, botflow.MaxBackups); err != nil {
		return fmt.Errorf("botflow: evict backups: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("botflow: commit: %w", err)
	}

	return nil
}

// ListBackups returns snapshot metadata for a bot, newest first.
// Payloads are omitted; GetBackup fetches the full snapshot.
func (s *PGStore) ListBackups(ctx context.Context, botID int64) ([]botflow.Backup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, bot_id, version, created_at
		 FROM flow_backups
		 WHERE bot_id = $1
		 ORDER BY version DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query backups: %w", err)
	}
	defer rows.Close()

	out := []botflow.Backup{}
	for rows.Next() {
		var b botflow.Backup
		if err := rows.Scan(&b.ID, &b.BotID, &b.Version, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("botflow: scan backup: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botflow: rows backups: %w", err)
	}

	return out, nil
}

// GetBackup fetches a full snapshot by id, scoped to the bot.
func (s *PGStore) GetBackup(ctx context.Context, botID int64, backupID string) (*botflow.Backup, error) {
	var b botflow.Backup
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, bot_id, version, payload, created_at
		 FROM flow_backups
		 WHERE id = $1 AND bot_id = $2`,
		backupID, botID,
	).Scan(&b.ID, &b.BotID, &b.Version, &payload, &b.CreatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBackupNotFound
		}
		return nil, fmt.Errorf("botflow: get backup: %w", err)
	}

	if err := json.Unmarshal(payload, &b.Payload); err != nil {
		return nil, fmt.Errorf("botflow: unmarshal backup payload: %w", err)
	}

	return &b, nil
}

var _ botflow.Store = (*PGStore)(nil)

package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meikuraledutech/botflow"
)

// InsertBackup stores a snapshot, assigns the bot's next version number
// and evicts the oldest snapshots past the retention bound.
func (s *SQLiteStore) InsertBackup(ctx context.Context, b *botflow.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(b.Payload)
	if err != nil {
		return fmt.Errorf("botflow: marshal backup payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("botflow: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM bots WHERE id = ?`, b.BotID).Scan(&exists); err != nil {
		if isNoRows(err) {
			return botflow.ErrBotNotFound
		}
		return fmt.Errorf("botflow: check bot: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM flow_backups WHERE bot_id = ?`,
		b.BotID).Scan(&b.Version); err != nil {
		return fmt.Errorf("botflow: next backup version: %w", err)
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO flow_backups (id, bot_id, version, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.BotID, b.Version, string(payload), fmtTime(b.CreatedAt)); err != nil {
		return fmt.Errorf("botflow: insert backup: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM flow_backups
		 WHERE id IN (
		     SELECT id FROM flow_backups
		     WHERE bot_id = ?
		     ORDER BY created_at DESC, version DESC
		     LIMIT -1 OFFSET ?
		 )`,
		b.BotID, botflow.MaxBackups); err != nil {
		return fmt.Errorf("botflow: evict backups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("botflow: commit: %w", err)
	}

	return nil
}

// ListBackups returns snapshot metadata for a bot, newest first.
func (s *SQLiteStore) ListBackups(ctx context.Context, botID int64) ([]botflow.Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bot_id, version, created_at
		 FROM flow_backups
		 WHERE bot_id = ?
		 ORDER BY version DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query backups: %w", err)
	}
	defer rows.Close()

	out := []botflow.Backup{}
	for rows.Next() {
		var b botflow.Backup
		var createdAt string
		if err := rows.Scan(&b.ID, &b.BotID, &b.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("botflow: scan backup: %w", err)
		}
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botflow: rows backups: %w", err)
	}

	return out, nil
}

// GetBackup fetches a full snapshot by id, scoped to the bot.
func (s *SQLiteStore) GetBackup(ctx context.Context, botID int64, backupID string) (*botflow.Backup, error) {
	var b botflow.Backup
	var payload, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, bot_id, version, payload, created_at
		 FROM flow_backups
		 WHERE id = ? AND bot_id = ?`,
		backupID, botID,
	).Scan(&b.ID, &b.BotID, &b.Version, &payload, &createdAt)

	if err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBackupNotFound
		}
		return nil, fmt.Errorf("botflow: get backup: %w", err)
	}

	b.CreatedAt = parseTime(createdAt)
	if err := json.Unmarshal([]byte(payload), &b.Payload); err != nil {
		return nil, fmt.Errorf("botflow: unmarshal backup payload: %w", err)
	}

	return &b, nil
}

var _ botflow.Store = (*SQLiteStore)(nil)

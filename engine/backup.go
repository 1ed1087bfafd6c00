package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/meikuraledutech/botflow"
)

// CreateBackup snapshots a bot's live graph in editor shape. The store
// assigns the next version and evicts beyond the retention bound.
func (e *Engine) CreateBackup(ctx context.Context, botID int64) (*botflow.Backup, error) {
	bot, err := e.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	g, err := e.store.LoadGraph(ctx, botID)
	if err != nil {
		return nil, err
	}

	b := &botflow.Backup{
		ID:      uuid.NewString(),
		BotID:   botID,
		Payload: botflow.FormatGraph(g, bot.Name),
	}
	if err := e.store.InsertBackup(ctx, b); err != nil {
		return nil, err
	}

	e.metrics.RecordBackup(ctx, botID, "create")
	e.log.Info("backup created",
		"bot_id", botID,
		"backup_id", b.ID,
		"version", b.Version,
		"nodes", len(b.Payload.Nodes),
	)

	return b, nil
}

// ListBackups returns snapshot metadata for a bot, newest first.
func (e *Engine) ListBackups(ctx context.Context, botID int64) ([]botflow.Backup, error) {
	if _, err := e.store.GetBot(ctx, botID); err != nil {
		return nil, err
	}
	return e.store.ListBackups(ctx, botID)
}

// RestoreBackup replays a snapshot through the sync path, replacing the
// live graph. A pre-restore snapshot is taken first so the restore
// itself can be undone.
func (e *Engine) RestoreBackup(ctx context.Context, botID int64, backupID string) (*botflow.SyncResult, error) {
	b, err := e.store.GetBackup(ctx, botID, backupID)
	if err != nil {
		return nil, err
	}

	result, err := e.SaveFlow(ctx, botID, b.Payload)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordBackup(ctx, botID, "restore")
	e.log.Info("backup restored",
		"bot_id", botID,
		"backup_id", backupID,
		"version", b.Version,
	)

	return result, nil
}

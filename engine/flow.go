package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/cache"
)

func flowNamespace(botID int64) string {
	return fmt.Sprintf("flow:%d", botID)
}

// GetFlow returns a bot's live graph in editor shape, served from the
// read cache when fresh.
func (e *Engine) GetFlow(ctx context.Context, botID int64) (botflow.GraphPayload, error) {
	key := cache.Key(flowNamespace(botID), "graph")

	if e.ttl > 0 {
		if v, ok := e.cache.Get(key); ok {
			e.metrics.RecordCacheLookup(ctx, true)
			return v.(botflow.GraphPayload), nil
		}
		e.metrics.RecordCacheLookup(ctx, false)
	}

	bot, err := e.store.GetBot(ctx, botID)
	if err != nil {
		return botflow.GraphPayload{}, err
	}
	g, err := e.store.LoadGraph(ctx, botID)
	if err != nil {
		return botflow.GraphPayload{}, err
	}

	payload := botflow.FormatGraph(g, bot.Name)
	if e.ttl > 0 {
		e.cache.Set(key, payload, e.ttl)
	}

	return payload, nil
}

// SaveFlow replaces a bot's graph with a complete editor submission.
// A snapshot of the pre-write graph is taken first, then the submission
// is reconciled atomically and the bot's cached reads are invalidated.
func (e *Engine) SaveFlow(ctx context.Context, botID int64, payload botflow.GraphPayload) (*botflow.SyncResult, error) {
	if err := botflow.ValidatePayload(payload); err != nil {
		return nil, err
	}

	if _, err := e.CreateBackup(ctx, botID); err != nil {
		return nil, fmt.Errorf("botflow: backup before save: %w", err)
	}

	start := time.Now()
	result, err := e.store.ReplaceGraph(ctx, botID, payload)
	if err != nil {
		return nil, err
	}

	if payload.Name != "" {
		if err := e.store.RenameBot(ctx, botID, payload.Name); err != nil {
			return nil, err
		}
	}

	e.InvalidateBot(botID)
	e.metrics.RecordSync(ctx, botID, result, time.Since(start))
	e.log.Info("flow saved",
		"bot_id", botID,
		"nodes_created", result.NodesCreated,
		"nodes_updated", result.NodesUpdated,
		"nodes_deleted", result.NodesDeleted,
		"edges_created", result.EdgesCreated,
		"edges_deleted", result.EdgesDeleted,
		"dropped_edges", result.DroppedEdges,
	)

	return result, nil
}

// InvalidateBot clears every cached read for one bot.
func (e *Engine) InvalidateBot(botID int64) {
	e.cache.DeleteByPrefix(flowNamespace(botID) + ":")
}

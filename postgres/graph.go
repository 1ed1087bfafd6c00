package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meikuraledutech/botflow"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const nodeColumns = `id, bot_id, frontend_id, kind, trigger_text, response_text,
	position, position_x, position_y, metadata, is_deleted, created_at, updated_at`

const edgeColumns = `id, bot_id, source_id, target_id, frontend_id, condition, edge_type,
	source_handle, target_handle, animated, style, metadata, is_deleted, created_at, updated_at`

// LoadGraph returns the live graph for a bot. Node order is legacy
// position first, then storage order; edges whose endpoints didn't load
// are dropped rather than failing the read.
func (s *PGStore) LoadGraph(ctx context.Context, botID int64) (*botflow.Graph, error) {
	nodes, err := queryNodes(ctx, s.db, botID,
		`SELECT `+nodeColumns+` FROM flow_nodes
		 WHERE bot_id = $1 AND NOT is_deleted
		 ORDER BY position, id`)
	if err != nil {
		return nil, err
	}

	edges, err := queryEdges(ctx, s.db, botID,
		`SELECT `+edgeColumns+` FROM flow_edges
		 WHERE bot_id = $1 AND NOT is_deleted
		 ORDER BY id`)
	if err != nil {
		return nil, err
	}

	g := &botflow.Graph{Nodes: nodes, Edges: edges}
	g.Sanitize()
	return g, nil
}

// ReplaceGraph reconciles a complete editor submission inside one
// transaction. The bot row is locked first so concurrent saves for the
// same bot serialize on the database, not on any in-process mutex.
func (s *PGStore) ReplaceGraph(ctx context.Context, botID int64, incoming botflow.GraphPayload) (*botflow.SyncResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("botflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM bots WHERE id = $1 FOR UPDATE`, botID).Scan(&locked); err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBotNotFound
		}
		return nil, fmt.Errorf("botflow: lock bot: %w", err)
	}

	// Planning sees every row, live and soft-deleted, so a resubmitted
	// identity resurrects instead of duplicating.
	existingNodes, err := queryNodes(ctx, tx, botID,
		`SELECT `+nodeColumns+` FROM flow_nodes WHERE bot_id = $1 ORDER BY id`)
	if err != nil {
		return nil, err
	}

	nodePlan := botflow.PlanNodes(botID, existingNodes, incoming.Nodes)
	nodeIDs := make(map[string]int64, len(nodePlan.Creates)+len(nodePlan.Updates))

	// Deletes first: the live-frontend partial unique index must not see
	// a resurrected row before its displaced predecessor is gone.
	for _, id := range nodePlan.DeleteIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE flow_nodes SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("botflow: delete node %d: %w", id, err)
		}
	}

	for i := range nodePlan.Updates {
		n := &nodePlan.Updates[i]
		meta, err := jsonArg(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("botflow: marshal node metadata: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE flow_nodes
			 SET frontend_id = $1, kind = $2, trigger_text = $3, response_text = $4,
			     position_x = $5, position_y = $6, metadata = $7,
			     is_deleted = FALSE, updated_at = NOW()
			 WHERE id = $8`,
			n.FrontendID, n.Kind, n.Trigger, n.Response, n.X, n.Y, meta, n.ID); err != nil {
			return nil, fmt.Errorf("botflow: update node %d: %w", n.ID, err)
		}
		nodeIDs[n.FrontendID] = n.ID
	}

	for i := range nodePlan.Creates {
		n := &nodePlan.Creates[i]
		meta, err := jsonArg(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("botflow: marshal node metadata: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO flow_nodes
			 (bot_id, frontend_id, kind, trigger_text, response_text, position, position_x, position_y, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			n.BotID, n.FrontendID, n.Kind, n.Trigger, n.Response, n.Position, n.X, n.Y, meta,
		).Scan(&n.ID); err != nil {
			return nil, fmt.Errorf("botflow: insert node %s: %w", n.FrontendID, err)
		}
		nodeIDs[n.FrontendID] = n.ID
	}

	existingEdges, err := queryEdges(ctx, tx, botID,
		`SELECT `+edgeColumns+` FROM flow_edges WHERE bot_id = $1 ORDER BY id`)
	if err != nil {
		return nil, err
	}

	edgePlan := botflow.PlanEdges(botID, existingEdges, incoming.Edges, nodeIDs)

	for _, id := range edgePlan.DeleteIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE flow_edges SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("botflow: delete edge %d: %w", id, err)
		}
	}

	for i := range edgePlan.Updates {
		e := &edgePlan.Updates[i]
		style, meta, err := edgeJSONArgs(e)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE flow_edges
			 SET frontend_id = $1, source_id = $2, target_id = $3, condition = $4, edge_type = $5,
			     source_handle = $6, target_handle = $7, animated = $8, style = $9, metadata = $10,
			     is_deleted = FALSE, updated_at = NOW()
			 WHERE id = $11`,
			e.FrontendID, e.SourceID, e.TargetID, e.Condition, e.Type,
			e.SourceHandle, e.TargetHandle, e.Animated, style, meta, e.ID); err != nil {
			return nil, fmt.Errorf("botflow: update edge %d: %w", e.ID, err)
		}
	}

	for i := range edgePlan.Creates {
		e := &edgePlan.Creates[i]
		style, meta, err := edgeJSONArgs(e)
		if err != nil {
			return nil, err
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO flow_edges
			 (bot_id, source_id, target_id, frontend_id, condition, edge_type, source_handle, target_handle, animated, style, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id`,
			e.BotID, e.SourceID, e.TargetID, e.FrontendID, e.Condition, e.Type,
			e.SourceHandle, e.TargetHandle, e.Animated, style, meta,
		).Scan(&e.ID); err != nil {
			return nil, fmt.Errorf("botflow: insert edge %s: %w", e.FrontendID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("botflow: commit: %w", err)
	}

	return botflow.TallyResult(nodePlan, edgePlan), nil
}

// AddNode inserts a single node outside the sync path.
func (s *PGStore) AddNode(ctx context.Context, node *botflow.Node) (int64, error) {
	meta, err := jsonArg(node.Metadata)
	if err != nil {
		return 0, fmt.Errorf("botflow: marshal node metadata: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO flow_nodes
		 (bot_id, frontend_id, kind, trigger_text, response_text, position, position_x, position_y, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		node.BotID, node.FrontendID, node.Kind, node.Trigger, node.Response,
		node.Position, node.X, node.Y, meta,
	).Scan(&node.ID)
	if err != nil {
		return 0, fmt.Errorf("botflow: insert node: %w", err)
	}

	return node.ID, nil
}

func queryNodes(ctx context.Context, q querier, botID int64, sql string) ([]botflow.Node, error) {
	rows, err := q.Query(ctx, sql, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []botflow.Node{}
	for rows.Next() {
		var n botflow.Node
		var meta []byte
		if err := rows.Scan(&n.ID, &n.BotID, &n.FrontendID, &n.Kind, &n.Trigger, &n.Response,
			&n.Position, &n.X, &n.Y, &meta, &n.Deleted, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("botflow: scan node: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Metadata); err != nil {
				return nil, fmt.Errorf("botflow: unmarshal node metadata: %w", err)
			}
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botflow: rows nodes: %w", err)
	}

	return nodes, nil
}

func queryEdges(ctx context.Context, q querier, botID int64, sql string) ([]botflow.Edge, error) {
	rows, err := q.Query(ctx, sql, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query edges: %w", err)
	}
	defer rows.Close()

	edges := []botflow.Edge{}
	for rows.Next() {
		var e botflow.Edge
		var style, meta []byte
		if err := rows.Scan(&e.ID, &e.BotID, &e.SourceID, &e.TargetID, &e.FrontendID, &e.Condition,
			&e.Type, &e.SourceHandle, &e.TargetHandle, &e.Animated, &style, &meta,
			&e.Deleted, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("botflow: scan edge: %w", err)
		}
		if len(style) > 0 {
			if err := json.Unmarshal(style, &e.Style); err != nil {
				return nil, fmt.Errorf("botflow: unmarshal edge style: %w", err)
			}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("botflow: unmarshal edge metadata: %w", err)
			}
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botflow: rows edges: %w", err)
	}

	return edges, nil
}

// jsonArg renders a metadata map as a jsonb parameter, NULL when unset.
func jsonArg(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func edgeJSONArgs(e *botflow.Edge) (style, meta []byte, err error) {
	style, err = jsonArg(e.Style)
	if err != nil {
		return nil, nil, fmt.Errorf("botflow: marshal edge style: %w", err)
	}
	meta, err = jsonArg(e.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("botflow: marshal edge metadata: %w", err)
	}
	return style, meta, nil
}

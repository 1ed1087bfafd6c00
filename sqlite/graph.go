package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meikuraledutech/botflow"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const nodeColumns = `id, bot_id, frontend_id, kind, trigger_text, response_text,
	position, position_x, position_y, metadata, is_deleted, created_at, updated_at`

const edgeColumns = `id, bot_id, source_id, target_id, frontend_id, condition, edge_type,
	source_handle, target_handle, animated, style, metadata, is_deleted, created_at, updated_at`

// LoadGraph returns the live graph for a bot, ordered by legacy
// position then storage order. Dangling edges are dropped on read.
func (s *SQLiteStore) LoadGraph(ctx context.Context, botID int64) (*botflow.Graph, error) {
	nodes, err := queryNodes(ctx, s.db, botID,
		`SELECT `+nodeColumns+` FROM flow_nodes
		 WHERE bot_id = ? AND is_deleted = 0
		 ORDER BY position, id`)
	if err != nil {
		return nil, err
	}

	edges, err := queryEdges(ctx, s.db, botID,
		`SELECT `+edgeColumns+` FROM flow_edges
		 WHERE bot_id = ? AND is_deleted = 0
		 ORDER BY id`)
	if err != nil {
		return nil, err
	}

	g := &botflow.Graph{Nodes: nodes, Edges: edges}
	g.Sanitize()
	return g, nil
}

// ReplaceGraph reconciles a complete editor submission inside one
// transaction, guarded by the store's write mutex.
func (s *SQLiteStore) ReplaceGraph(ctx context.Context, botID int64, incoming botflow.GraphPayload) (*botflow.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("botflow: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM bots WHERE id = ?`, botID).Scan(&exists); err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBotNotFound
		}
		return nil, fmt.Errorf("botflow: check bot: %w", err)
	}

	// Planning sees every row, live and soft-deleted, so a resubmitted
	// identity resurrects instead of duplicating.
	existingNodes, err := queryNodes(ctx, tx, botID,
		`SELECT `+nodeColumns+` FROM flow_nodes WHERE bot_id = ? ORDER BY id`)
	if err != nil {
		return nil, err
	}

	nodePlan := botflow.PlanNodes(botID, existingNodes, incoming.Nodes)
	nodeIDs := make(map[string]int64, len(nodePlan.Creates)+len(nodePlan.Updates))
	now := fmtTime(time.Now().UTC())

	// Deletes first so the live-frontend unique index never sees a
	// resurrected row alongside its displaced predecessor.
	for _, id := range nodePlan.DeleteIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE flow_nodes SET is_deleted = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return nil, fmt.Errorf("botflow: delete node %d: %w", id, err)
		}
	}

	for i := range nodePlan.Updates {
		n := &nodePlan.Updates[i]
		meta, err := jsonArg(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("botflow: marshal node metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE flow_nodes
			 SET frontend_id = ?, kind = ?, trigger_text = ?, response_text = ?,
			     position_x = ?, position_y = ?, metadata = ?,
			     is_deleted = 0, updated_at = ?
			 WHERE id = ?`,
			n.FrontendID, n.Kind, n.Trigger, n.Response, n.X, n.Y, meta, now, n.ID); err != nil {
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
		res, err := tx.ExecContext(ctx,
			`INSERT INTO flow_nodes
			 (bot_id, frontend_id, kind, trigger_text, response_text, position, position_x, position_y, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.BotID, n.FrontendID, n.Kind, n.Trigger, n.Response, n.Position, n.X, n.Y, meta, now, now)
		if err != nil {
			return nil, fmt.Errorf("botflow: insert node %s: %w", n.FrontendID, err)
		}
		if n.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("botflow: insert node %s: %w", n.FrontendID, err)
		}
		nodeIDs[n.FrontendID] = n.ID
	}

	existingEdges, err := queryEdges(ctx, tx, botID,
		`SELECT `+edgeColumns+` FROM flow_edges WHERE bot_id = ? ORDER BY id`)
	if err != nil {
		return nil, err
	}

	edgePlan := botflow.PlanEdges(botID, existingEdges, incoming.Edges, nodeIDs)

	for _, id := range edgePlan.DeleteIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE flow_edges SET is_deleted = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return nil, fmt.Errorf("botflow: delete edge %d: %w", id, err)
		}
	}

	for i := range edgePlan.Updates {
		e := &edgePlan.Updates[i]
		style, meta, err := edgeJSONArgs(e)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE flow_edges
			 SET frontend_id = ?, source_id = ?, target_id = ?, condition = ?, edge_type = ?,
			     source_handle = ?, target_handle = ?, animated = ?, style = ?, metadata = ?,
			     is_deleted = 0, updated_at = ?
			 WHERE id = ?`,
			e.FrontendID, e.SourceID, e.TargetID, e.Condition, e.Type,
			e.SourceHandle, e.TargetHandle, e.Animated, style, meta, now, e.ID); err != nil {
			return nil, fmt.Errorf("botflow: update edge %d: %w", e.ID, err)
		}
	}

	for i := range edgePlan.Creates {
		e := &edgePlan.Creates[i]
		style, meta, err := edgeJSONArgs(e)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO flow_edges
			 (bot_id, source_id, target_id, frontend_id, condition, edge_type, source_handle, target_handle, animated, style, metadata, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.BotID, e.SourceID, e.TargetID, e.FrontendID, e.Condition, e.Type,
			e.SourceHandle, e.TargetHandle, e.Animated, style, meta, now, now)
		if err != nil {
			return nil, fmt.Errorf("botflow: insert edge %s: %w", e.FrontendID, err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("botflow: insert edge %s: %w", e.FrontendID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("botflow: commit: %w", err)
	}

	return botflow.TallyResult(nodePlan, edgePlan), nil
}

// AddNode inserts a single node outside the sync path.
func (s *SQLiteStore) AddNode(ctx context.Context, node *botflow.Node) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := jsonArg(node.Metadata)
	if err != nil {
		return 0, fmt.Errorf("botflow: marshal node metadata: %w", err)
	}

	now := fmtTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO flow_nodes
		 (bot_id, frontend_id, kind, trigger_text, response_text, position, position_x, position_y, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.BotID, node.FrontendID, node.Kind, node.Trigger, node.Response,
		node.Position, node.X, node.Y, meta, now, now)
	if err != nil {
		return 0, fmt.Errorf("botflow: insert node: %w", err)
	}

	if node.ID, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("botflow: insert node: %w", err)
	}

	return node.ID, nil
}

func queryNodes(ctx context.Context, q querier, botID int64, query string) ([]botflow.Node, error) {
	rows, err := q.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []botflow.Node{}
	for rows.Next() {
		var n botflow.Node
		var meta sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.BotID, &n.FrontendID, &n.Kind, &n.Trigger, &n.Response,
			&n.Position, &n.X, &n.Y, &meta, &n.Deleted, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("botflow: scan node: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		n.UpdatedAt = parseTime(updatedAt)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &n.Metadata); err != nil {
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

func queryEdges(ctx context.Context, q querier, botID int64, query string) ([]botflow.Edge, error) {
	rows, err := q.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("botflow: query edges: %w", err)
	}
	defer rows.Close()

	edges := []botflow.Edge{}
	for rows.Next() {
		var e botflow.Edge
		var style, meta sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.BotID, &e.SourceID, &e.TargetID, &e.FrontendID, &e.Condition,
			&e.Type, &e.SourceHandle, &e.TargetHandle, &e.Animated, &style, &meta,
			&e.Deleted, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("botflow: scan edge: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		if style.Valid && style.String != "" {
			if err := json.Unmarshal([]byte(style.String), &e.Style); err != nil {
				return nil, fmt.Errorf("botflow: unmarshal edge style: %w", err)
			}
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
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

// jsonArg renders a metadata map as a TEXT parameter, NULL when unset.
func jsonArg(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func edgeJSONArgs(e *botflow.Edge) (style, meta any, err error) {
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

package engine

import (
	"context"

	"github.com/meikuraledutech/botflow"
)

// DiffPayload is an incremental editor submission: only the entities
// that changed, keyed by wire identity. It is merged onto the persisted
// graph and applied through the same reconcile path as a full save.
type DiffPayload struct {
	NodesToCreate []botflow.NodePayload `json:"nodes_to_create,omitempty"`
	NodesToUpdate []botflow.NodePayload `json:"nodes_to_update,omitempty"`
	NodesToDelete []string              `json:"nodes_to_delete,omitempty"`
	EdgesToCreate []botflow.EdgePayload `json:"edges_to_create,omitempty"`
	EdgesToUpdate []botflow.EdgePayload `json:"edges_to_update,omitempty"`
	EdgesToDelete []string              `json:"edges_to_delete,omitempty"`
	Name          string                `json:"name,omitempty"`
}

// Empty reports whether the diff carries no changes at all.
func (d DiffPayload) Empty() bool {
	return len(d.NodesToCreate) == 0 && len(d.NodesToUpdate) == 0 && len(d.NodesToDelete) == 0 &&
		len(d.EdgesToCreate) == 0 && len(d.EdgesToUpdate) == 0 && len(d.EdgesToDelete) == 0 &&
		d.Name == ""
}

// ApplyDiff merges an incremental submission onto the persisted graph
// and saves the result. Unknown update or delete identities are ignored;
// a delete wins over an update for the same identity.
func (e *Engine) ApplyDiff(ctx context.Context, botID int64, diff DiffPayload) (*botflow.SyncResult, error) {
	bot, err := e.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	g, err := e.store.LoadGraph(ctx, botID)
	if err != nil {
		return nil, err
	}
	current := botflow.FormatGraph(g, bot.Name)

	merged := botflow.GraphPayload{
		Nodes: mergeNodes(current.Nodes, diff),
		Edges: mergeEdges(current.Edges, diff),
		Name:  diff.Name,
	}

	return e.SaveFlow(ctx, botID, merged)
}

func mergeNodes(current []botflow.NodePayload, diff DiffPayload) []botflow.NodePayload {
	updates := make(map[string]botflow.NodePayload, len(diff.NodesToUpdate))
	for _, n := range diff.NodesToUpdate {
		updates[n.ID] = n
	}
	deletes := make(map[string]struct{}, len(diff.NodesToDelete))
	for _, id := range diff.NodesToDelete {
		deletes[id] = struct{}{}
	}

	out := make([]botflow.NodePayload, 0, len(current)+len(diff.NodesToCreate))
	seen := make(map[string]struct{}, len(current))
	for _, n := range current {
		if _, gone := deletes[n.ID]; gone {
			continue
		}
		if upd, ok := updates[n.ID]; ok {
			n = upd
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	for _, n := range diff.NodesToCreate {
		if _, gone := deletes[n.ID]; gone {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		out = append(out, n)
	}
	return out
}

func mergeEdges(current []botflow.EdgePayload, diff DiffPayload) []botflow.EdgePayload {
	updates := make(map[string]botflow.EdgePayload, len(diff.EdgesToUpdate))
	for _, e := range diff.EdgesToUpdate {
		updates[e.ID] = e
	}
	deletes := make(map[string]struct{}, len(diff.EdgesToDelete))
	for _, id := range diff.EdgesToDelete {
		deletes[id] = struct{}{}
	}

	out := make([]botflow.EdgePayload, 0, len(current)+len(diff.EdgesToCreate))
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		if _, gone := deletes[e.ID]; gone {
			continue
		}
		if upd, ok := updates[e.ID]; ok {
			e = upd
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range diff.EdgesToCreate {
		if _, gone := deletes[e.ID]; gone {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		out = append(out, e)
	}
	return out
}

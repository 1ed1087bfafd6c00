package botflow

import "github.com/google/uuid"

// Graph reconciliation planner. An editor save always carries the
// complete node/edge set for one bot; the planner matches it against the
// persisted rows by stable wire identity (frontend id, or the storage id
// string for rows that predate the editor) and produces the create /
// update / soft-delete sets a store applies in one transaction.
//
// Planning is split in two phases because edge endpoints may reference
// nodes created in the same request: stores apply the node plan first,
// collect the wire-id → storage-id map, then plan edges against it.

// NewFrontendID generates a stable external identifier for entities
// created without one.
func NewFrontendID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NodePlan is the node half of a reconciliation.
type NodePlan struct {
	Creates   []Node
	Updates   []Node
	DeleteIDs []int64
}

// EdgePlan is the edge half of a reconciliation.
type EdgePlan struct {
	Creates   []Edge
	Updates   []Edge
	DeleteIDs []int64
	// Dropped counts incoming edges skipped because an endpoint did not
	// resolve. Never an error: one bad connector must not block a save.
	Dropped int
}

// PlanNodes matches incoming nodes against existing rows, live and
// soft-deleted alike, so a resubmitted identity resurrects its old row
// instead of duplicating it. Live rows absent from the submission are
// scheduled for soft deletion.
func PlanNodes(botID int64, existing []Node, incoming []NodePayload) NodePlan {
	byKey := make(map[string]*Node, len(existing))
	for i := range existing {
		byKey[existing[i].ExternalID()] = &existing[i]
	}

	var plan NodePlan
	seen := make(map[string]struct{}, len(incoming))
	for _, p := range incoming {
		key := p.ID
		if key == "" {
			key = NewFrontendID("node")
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		kind := p.Type
		if kind == "" {
			kind = KindMessage
		}

		if ex, ok := byKey[key]; ok {
			n := *ex
			n.FrontendID = key // backfill identity on rows that predate the editor
			n.Kind = kind
			n.Trigger = p.Data.Label
			n.Response = p.Data.Message
			n.X = p.Position.X
			n.Y = p.Position.Y
			n.Metadata = p.Metadata
			n.Deleted = false
			plan.Updates = append(plan.Updates, n)
			continue
		}

		plan.Creates = append(plan.Creates, Node{
			BotID:      botID,
			FrontendID: key,
			Kind:       kind,
			Trigger:    p.Data.Label,
			Response:   p.Data.Message,
			X:          p.Position.X,
			Y:          p.Position.Y,
			Metadata:   p.Metadata,
		})
	}

	for i := range existing {
		ex := &existing[i]
		if ex.Deleted {
			continue
		}
		if _, ok := seen[ex.ExternalID()]; !ok {
			plan.DeleteIDs = append(plan.DeleteIDs, ex.ID)
		}
	}

	return plan
}

// PlanEdges matches incoming edges against existing rows by wire identity
// and resolves endpoints through nodeIDs, the wire-id → storage-id map
// produced by applying the node plan. Edges whose endpoints fail to
// resolve are counted in Dropped and skipped.
func PlanEdges(botID int64, existing []Edge, incoming []EdgePayload, nodeIDs map[string]int64) EdgePlan {
	byKey := make(map[string]*Edge, len(existing))
	for i := range existing {
		byKey[edgeFrontendID(&existing[i])] = &existing[i]
	}

	var plan EdgePlan
	seen := make(map[string]struct{}, len(incoming))
	for _, p := range incoming {
		sourceID, okS := nodeIDs[p.Source]
		targetID, okT := nodeIDs[p.Target]
		if !okS || !okT {
			plan.Dropped++
			continue
		}

		key := p.ID
		if key == "" {
			key = NewFrontendID("edge")
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		typ := p.Type
		if typ == "" {
			typ = "default"
		}

		if ex, ok := byKey[key]; ok {
			e := *ex
			e.FrontendID = key
			e.SourceID = sourceID
			e.TargetID = targetID
			e.Condition = p.Label
			e.Type = typ
			e.SourceHandle = p.SourceHandle
			e.TargetHandle = p.TargetHandle
			e.Animated = p.Animated
			e.Style = p.Style
			e.Metadata = p.Metadata
			e.Deleted = false
			plan.Updates = append(plan.Updates, e)
			continue
		}

		plan.Creates = append(plan.Creates, Edge{
			BotID:        botID,
			SourceID:     sourceID,
			TargetID:     targetID,
			FrontendID:   key,
			Condition:    p.Label,
			Type:         typ,
			SourceHandle: p.SourceHandle,
			TargetHandle: p.TargetHandle,
			Animated:     p.Animated,
			Style:        p.Style,
			Metadata:     p.Metadata,
		})
	}

	for i := range existing {
		ex := &existing[i]
		if ex.Deleted {
			continue
		}
		if _, ok := seen[edgeFrontendID(ex)]; !ok {
			plan.DeleteIDs = append(plan.DeleteIDs, ex.ID)
		}
	}

	return plan
}

// ValidatePayload rejects editor submissions missing the node or edge
// list outright. An empty (but present) list is a legal way to clear a
// graph.
func ValidatePayload(p GraphPayload) error {
	if p.Nodes == nil || p.Edges == nil {
		return ErrInvalidPayload
	}
	return nil
}

// TallyResult combines a node and edge plan into a SyncResult.
func TallyResult(np NodePlan, ep EdgePlan) *SyncResult {
	return &SyncResult{
		NodesCreated: len(np.Creates),
		NodesUpdated: len(np.Updates),
		NodesDeleted: len(np.DeleteIDs),
		EdgesCreated: len(ep.Creates),
		EdgesUpdated: len(ep.Updates),
		EdgesDeleted: len(ep.DeleteIDs),
		DroppedEdges: ep.Dropped,
	}
}

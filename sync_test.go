package botflow_test

import (
	"testing"

	"github.com/meikuraledutech/botflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodePayload(id, kind, label, message string) botflow.NodePayload {
	return botflow.NodePayload{
		ID:   id,
		Type: kind,
		Data: botflow.NodeData{Label: label, Message: message},
	}
}

func edgePayload(id, source, target, label string) botflow.EdgePayload {
	return botflow.EdgePayload{ID: id, Source: source, Target: target, Label: label}
}

func TestPlanNodes_CreateAll(t *testing.T) {
	plan := botflow.PlanNodes(1, nil, []botflow.NodePayload{
		nodePayload("node-a", "start", "", "¡Hola!"),
		nodePayload("node-b", "message", "hola", "¿En qué te ayudo?"),
	})

	require.Len(t, plan.Creates, 2)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.DeleteIDs)

	assert.Equal(t, int64(1), plan.Creates[0].BotID)
	assert.Equal(t, "node-a", plan.Creates[0].FrontendID)
	assert.Equal(t, "start", plan.Creates[0].Kind)
	assert.Equal(t, "hola", plan.Creates[1].Trigger)
	assert.Equal(t, "¿En qué te ayudo?", plan.Creates[1].Response)
}

func TestPlanNodes_IdentityStability(t *testing.T) {
	existing := []botflow.Node{
		{ID: 10, BotID: 1, FrontendID: "node-a", Kind: "message", Trigger: "old", Response: "old reply"},
	}

	plan := botflow.PlanNodes(1, existing, []botflow.NodePayload{
		nodePayload("node-a", "decision", "new", "new reply"),
	})

	require.Len(t, plan.Updates, 1)
	assert.Empty(t, plan.Creates, "same frontend id must update, never duplicate")
	assert.Equal(t, int64(10), plan.Updates[0].ID, "storage id preserved across edits")
	assert.Equal(t, "decision", plan.Updates[0].Kind)
	assert.Equal(t, "new", plan.Updates[0].Trigger)
	assert.False(t, plan.Updates[0].Deleted)
}

func TestPlanNodes_DeletionCompleteness(t *testing.T) {
	existing := []botflow.Node{
		{ID: 10, BotID: 1, FrontendID: "node-a"},
		{ID: 11, BotID: 1, FrontendID: "node-b"},
		{ID: 12, BotID: 1, FrontendID: "node-c", Deleted: true},
	}

	plan := botflow.PlanNodes(1, existing, []botflow.NodePayload{
		nodePayload("node-a", "message", "", ""),
	})

	assert.Equal(t, []int64{11}, plan.DeleteIDs, "only live rows absent from the submission are deleted")
}

func TestPlanNodes_ResurrectsSoftDeletedRow(t *testing.T) {
	existing := []botflow.Node{
		{ID: 12, BotID: 1, FrontendID: "node-c", Deleted: true},
	}

	plan := botflow.PlanNodes(1, existing, []botflow.NodePayload{
		nodePayload("node-c", "message", "hola", "de vuelta"),
	})

	require.Len(t, plan.Updates, 1)
	assert.Empty(t, plan.Creates, "resubmitted identity resurrects the old row")
	assert.Equal(t, int64(12), plan.Updates[0].ID)
	assert.False(t, plan.Updates[0].Deleted)
}

func TestPlanNodes_MatchesLegacyRowsByStorageID(t *testing.T) {
	// Rows created programmatically (menu expansion) have no frontend id;
	// the editor references them by the storage id string.
	existing := []botflow.Node{
		{ID: 7, BotID: 1, Kind: "menu_option", Trigger: "ventas"},
	}

	plan := botflow.PlanNodes(1, existing, []botflow.NodePayload{
		nodePayload("7", "menu_option", "ventas", "Te paso con ventas"),
	})

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, int64(7), plan.Updates[0].ID)
	assert.Equal(t, "7", plan.Updates[0].FrontendID, "identity backfilled on first editor save")
}

func TestPlanNodes_GeneratesMissingIDs(t *testing.T) {
	plan := botflow.PlanNodes(1, nil, []botflow.NodePayload{
		nodePayload("", "message", "", ""),
	})

	require.Len(t, plan.Creates, 1)
	assert.Contains(t, plan.Creates[0].FrontendID, "node-")
}

func TestPlanNodes_SkipsDuplicateIDs(t *testing.T) {
	plan := botflow.PlanNodes(1, nil, []botflow.NodePayload{
		nodePayload("node-a", "message", "first", ""),
		nodePayload("node-a", "message", "second", ""),
	})

	require.Len(t, plan.Creates, 1)
	assert.Equal(t, "first", plan.Creates[0].Trigger)
}

func TestPlanEdges_ResolvesNewNodes(t *testing.T) {
	// Edges may reference nodes created in the same request; the map the
	// store builds after applying the node plan covers them.
	nodeIDs := map[string]int64{"node-a": 10, "node-c": 30}

	plan := botflow.PlanEdges(1, nil, []botflow.EdgePayload{
		edgePayload("edge-1", "node-a", "node-c", "sí"),
	}, nodeIDs)

	require.Len(t, plan.Creates, 1)
	assert.Equal(t, int64(10), plan.Creates[0].SourceID)
	assert.Equal(t, int64(30), plan.Creates[0].TargetID)
	assert.Equal(t, "sí", plan.Creates[0].Condition)
	assert.Equal(t, "default", plan.Creates[0].Type)
	assert.Zero(t, plan.Dropped)
}

func TestPlanEdges_DropsUnresolvable(t *testing.T) {
	nodeIDs := map[string]int64{"node-a": 10}

	plan := botflow.PlanEdges(1, nil, []botflow.EdgePayload{
		edgePayload("edge-1", "node-a", "node-ghost", "sí"),
		edgePayload("edge-2", "node-ghost", "node-a", "no"),
	}, nodeIDs)

	assert.Empty(t, plan.Creates)
	assert.Equal(t, 2, plan.Dropped, "unresolvable edges are skipped, not fatal")
}

func TestPlanEdges_UpdateAndDelete(t *testing.T) {
	existing := []botflow.Edge{
		{ID: 100, BotID: 1, FrontendID: "edge-1", SourceID: 10, TargetID: 20, Condition: "old"},
		{ID: 101, BotID: 1, FrontendID: "edge-2", SourceID: 20, TargetID: 10},
	}
	nodeIDs := map[string]int64{"node-a": 10, "node-b": 20}

	plan := botflow.PlanEdges(1, existing, []botflow.EdgePayload{
		edgePayload("edge-1", "node-a", "node-b", "sí"),
	}, nodeIDs)

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, int64(100), plan.Updates[0].ID)
	assert.Equal(t, "sí", plan.Updates[0].Condition)
	assert.Equal(t, []int64{101}, plan.DeleteIDs)
}

func TestValidatePayload(t *testing.T) {
	err := botflow.ValidatePayload(botflow.GraphPayload{})
	assert.ErrorIs(t, err, botflow.ErrInvalidPayload)

	err = botflow.ValidatePayload(botflow.GraphPayload{Nodes: []botflow.NodePayload{}})
	assert.ErrorIs(t, err, botflow.ErrInvalidPayload, "missing edge list is invalid")

	err = botflow.ValidatePayload(botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
	})
	assert.NoError(t, err, "empty lists are a legal way to clear a graph")
}

func TestTallyResult(t *testing.T) {
	np := botflow.NodePlan{
		Creates:   make([]botflow.Node, 2),
		Updates:   make([]botflow.Node, 1),
		DeleteIDs: []int64{1, 2, 3},
	}
	ep := botflow.EdgePlan{Creates: make([]botflow.Edge, 1), Dropped: 2}

	res := botflow.TallyResult(np, ep)
	assert.Equal(t, 2, res.NodesCreated)
	assert.Equal(t, 1, res.NodesUpdated)
	assert.Equal(t, 3, res.NodesDeleted)
	assert.Equal(t, 1, res.EdgesCreated)
	assert.Equal(t, 2, res.DroppedEdges)
}

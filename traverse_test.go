package botflow_test

import (
	"testing"

	"github.com/meikuraledutech/botflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGraph builds:
//
//	start(1) ── greet(2) ──"sí"──► yes(3)
//	              │  └──"no"────► no(4)
//	              └ (greet is a decision node)
//	end(5) with no outgoing edges
func testGraph() *botflow.Graph {
	return &botflow.Graph{
		Nodes: []botflow.Node{
			{ID: 1, BotID: 1, Kind: "start", Response: "¡Bienvenido!"},
			{ID: 2, BotID: 1, Kind: "decision", Trigger: "hola", Response: "¿Sí o no?"},
			{ID: 3, BotID: 1, Kind: "message", Trigger: "sí por favor", Response: "Dijiste que sí"},
			{ID: 4, BotID: 1, Kind: "message", Trigger: "no gracias", Response: "Dijiste que no"},
			{ID: 5, BotID: 1, Kind: "end", Response: "Adiós"},
		},
		Edges: []botflow.Edge{
			{ID: 10, BotID: 1, SourceID: 1, TargetID: 2},
			{ID: 11, BotID: 1, SourceID: 2, TargetID: 3, Condition: "sí"},
			{ID: 12, BotID: 1, SourceID: 2, TargetID: 4, Condition: "no"},
		},
	}
}

func TestStartNode_HopsThroughStartEdge(t *testing.T) {
	g := testGraph()
	start := botflow.StartNode(g)
	require.NotNil(t, start)
	assert.Equal(t, int64(2), start.ID, "start node hops to its first edge target")
}

func TestStartNode_NoOutgoingEdge(t *testing.T) {
	g := &botflow.Graph{
		Nodes: []botflow.Node{{ID: 1, Kind: "start", Response: "hola"}},
	}
	start := botflow.StartNode(g)
	require.NotNil(t, start)
	assert.Equal(t, int64(1), start.ID)
}

func TestStartNode_FallsBackToFirstMessageNode(t *testing.T) {
	g := &botflow.Graph{
		Nodes: []botflow.Node{
			{ID: 7, Kind: "menu_option"},
			{ID: 8, Kind: "message", Response: "primero"},
			{ID: 9, Kind: "message", Response: "segundo"},
		},
	}
	start := botflow.StartNode(g)
	require.NotNil(t, start)
	assert.Equal(t, int64(8), start.ID)
}

func TestStartNode_EmptyGraph(t *testing.T) {
	assert.Nil(t, botflow.StartNode(&botflow.Graph{}))
}

func TestNextNode_ExactMatchBeatsSubstring(t *testing.T) {
	g := testGraph()
	// "sí" is an exact match for edge 11 and a substring match for nothing
	// else; make edge 12's condition contain it to force the precedence.
	g.Edges[2].Condition = "sí claro que no"

	next := botflow.NextNode(g, 2, "sí")
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID, "exact condition match wins over substring")
}

func TestNextNode_ExactMatchCaseInsensitive(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 2, "SÍ")
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID)
}

func TestNextNode_SubstringMatch(t *testing.T) {
	g := testGraph()
	g.Edges[1].Condition = "sí, quiero continuar"

	next := botflow.NextNode(g, 2, "quiero")
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID, "message contained in condition selects the edge")
}

func TestNextNode_DefaultBranch(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 2, "algo sin relación")
	require.NotNil(t, next)
	assert.Equal(t, int64(3), next.ID, "first stored edge is the deterministic default branch")
}

func TestNextNode_EndNodeResets(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 5, "lo que sea")
	require.NotNil(t, next)
	assert.Equal(t, int64(2), next.ID, "end node loops back to the start state")
}

func TestNextNode_GlobalTriggerSearch(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 0, "no gracias")
	require.NotNil(t, next)
	assert.Equal(t, int64(4), next.ID, "trigger substring search finds the node without a pointer")
}

func TestNextNode_NoPointerFallsBackToStart(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 0, "zzz nada coincide zzz")
	require.NotNil(t, next)
	assert.Equal(t, int64(2), next.ID)
}

func TestNextNode_EmptyGraphReturnsNil(t *testing.T) {
	assert.Nil(t, botflow.NextNode(&botflow.Graph{}, 0, "hola"))
}

func TestNextNode_Deterministic(t *testing.T) {
	g := testGraph()
	first := botflow.NextNode(g, 2, "tal vez")
	for range 10 {
		next := botflow.NextNode(g, 2, "tal vez")
		require.NotNil(t, next)
		assert.Equal(t, first.ID, next.ID)
	}
}

func TestDecisionOptions(t *testing.T) {
	g := testGraph()
	opts := botflow.DecisionOptions(g, g.NodeByID(2))

	require.Len(t, opts, 2)
	assert.Equal(t, "sí", opts[0].Label)
	assert.Equal(t, int64(3), opts[0].ID)
	assert.Equal(t, "sí por favor", opts[0].Message)
	assert.Equal(t, "no", opts[1].Label)
}

func TestDecisionOptions_UnlabeledEdge(t *testing.T) {
	g := testGraph()
	g.Edges[1].Condition = ""
	opts := botflow.DecisionOptions(g, g.NodeByID(2))

	require.Len(t, opts, 2)
	assert.Equal(t, "Opción", opts[0].Label)
}

func TestBuildChatReply_Decision(t *testing.T) {
	g := testGraph()
	reply := botflow.BuildChatReply(g, g.NodeByID(2), nil, "hola")

	assert.Equal(t, "¿Sí o no?", reply.Response)
	assert.Equal(t, int64(2), reply.CurrentFlowID)
	assert.True(t, reply.IsDecision)
	assert.Len(t, reply.Options, 2)

	require.Len(t, reply.ConversationHistory, 2)
	assert.Equal(t, "user", reply.ConversationHistory[0].Role)
	assert.Equal(t, "hola", reply.ConversationHistory[0].Message)
	assert.Equal(t, "bot", reply.ConversationHistory[1].Role)
	assert.Equal(t, int64(2), reply.ConversationHistory[1].FlowID)
}

func TestBuildChatReply_TransitionOutOfDecision(t *testing.T) {
	g := testGraph()
	next := botflow.NextNode(g, 2, "no")
	require.NotNil(t, next)
	require.Equal(t, int64(4), next.ID)

	reply := botflow.BuildChatReply(g, next, nil, "no")
	assert.False(t, reply.IsDecision, "new current node is not itself a decision")
	assert.Empty(t, reply.Options)
}

func TestBuildChatReply_Fallback(t *testing.T) {
	history := []botflow.HistoryEntry{{Role: "user", Message: "antes"}}
	reply := botflow.BuildChatReply(&botflow.Graph{}, nil, history, "hola")

	assert.Equal(t, botflow.FallbackMessage, reply.Response)
	assert.Zero(t, reply.CurrentFlowID)
	assert.False(t, reply.IsDecision)
	assert.Len(t, reply.ConversationHistory, 3, "history is appended, not replaced")
}

func TestGraphSanitize(t *testing.T) {
	g := testGraph()
	g.Edges = append(g.Edges, botflow.Edge{ID: 99, SourceID: 2, TargetID: 12345})

	dropped := g.Sanitize()
	assert.Equal(t, 1, dropped)
	assert.Len(t, g.Edges, 3)
}

func TestFormatGraph_ReplaySafeIdentities(t *testing.T) {
	g := testGraph()
	g.Nodes[1].FrontendID = "node-greet"

	p := botflow.FormatGraph(g, "Mi bot")
	assert.Equal(t, "Mi bot", p.Name)
	require.Len(t, p.Nodes, 5)
	assert.Equal(t, "1", p.Nodes[0].ID, "storage id string when no frontend id")
	assert.Equal(t, "node-greet", p.Nodes[1].ID)

	require.Len(t, p.Edges, 3)
	assert.Equal(t, "1", p.Edges[0].Source)
	assert.Equal(t, "node-greet", p.Edges[0].Target)
	assert.Equal(t, "sí", p.Edges[1].Label, "condition rides the label field")
}

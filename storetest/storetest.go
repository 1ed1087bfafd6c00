// Package storetest exercises the botflow.Store contract against any
// backend. Each implementation's test file wires its constructor into
// Run, so all backends stay behaviorally interchangeable.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meikuraledutech/botflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, schema-initialized store for one subtest.
type Factory func(t *testing.T) botflow.Store

// Run executes the full conformance suite.
func Run(t *testing.T, factory Factory) {
	t.Run("BotLifecycle", func(t *testing.T) { testBotLifecycle(t, factory(t)) })
	t.Run("ReplaceGraphCreates", func(t *testing.T) { testReplaceGraphCreates(t, factory(t)) })
	t.Run("IdentityStability", func(t *testing.T) { testIdentityStability(t, factory(t)) })
	t.Run("DeletionCompleteness", func(t *testing.T) { testDeletionCompleteness(t, factory(t)) })
	t.Run("EdgeIntegrity", func(t *testing.T) { testEdgeIntegrity(t, factory(t)) })
	t.Run("RenameAndExtendScenario", func(t *testing.T) { testRenameAndExtend(t, factory(t)) })
	t.Run("ReplaceGraphUnknownBot", func(t *testing.T) { testReplaceUnknownBot(t, factory(t)) })
	t.Run("AddNodeOrdering", func(t *testing.T) { testAddNodeOrdering(t, factory(t)) })
	t.Run("ConversationState", func(t *testing.T) { testConversationState(t, factory(t)) })
	t.Run("PointerSurvivesNodeDeletion", func(t *testing.T) { testPointerSurvivesDeletion(t, factory(t)) })
	t.Run("BackupVersioningAndBound", func(t *testing.T) { testBackups(t, factory(t)) })
}

func newBot(t *testing.T, s botflow.Store, name string) int64 {
	t.Helper()
	id, err := s.CreateBot(context.Background(), &botflow.Bot{Name: name, WebchatEnabled: true})
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func node(id, kind, label, message string) botflow.NodePayload {
	return botflow.NodePayload{
		ID:   id,
		Type: kind,
		Data: botflow.NodeData{Label: label, Message: message},
	}
}

func edge(id, source, target, label string) botflow.EdgePayload {
	return botflow.EdgePayload{ID: id, Source: source, Target: target, Label: label, Type: "default"}
}

func findNode(g *botflow.Graph, frontendID string) *botflow.Node {
	for i := range g.Nodes {
		if g.Nodes[i].FrontendID == frontendID {
			return &g.Nodes[i]
		}
	}
	return nil
}

func testBotLifecycle(t *testing.T, s botflow.Store) {
	ctx := context.Background()

	_, err := s.GetBot(ctx, 9999)
	assert.ErrorIs(t, err, botflow.ErrBotNotFound)

	id := newBot(t, s, "Asistente")
	bot, err := s.GetBot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Asistente", bot.Name)
	assert.Zero(t, bot.MessageCount)

	require.NoError(t, s.RenameBot(ctx, id, "Vendedor"))
	require.NoError(t, s.BumpCounters(ctx, id, 3, 1))

	bot, err = s.GetBot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Vendedor", bot.Name)
	assert.Equal(t, int64(3), bot.MessageCount)
	assert.Equal(t, int64(1), bot.ConversationCount)

	assert.ErrorIs(t, s.RenameBot(ctx, 9999, "x"), botflow.ErrBotNotFound)
}

func testReplaceGraphCreates(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	res, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "start", "", "¡Hola!"),
			node("node-b", "message", "hola", "¿Qué necesitas?"),
		},
		Edges: []botflow.EdgePayload{
			edge("edge-ab", "node-a", "node-b", "hola"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NodesCreated)
	assert.Equal(t, 1, res.EdgesCreated)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)

	a := findNode(g, "node-a")
	b := findNode(g, "node-b")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.ID, g.Edges[0].SourceID)
	assert.Equal(t, b.ID, g.Edges[0].TargetID)
	assert.Equal(t, "hola", g.Edges[0].Condition)
}

func testIdentityStability(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	_, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "message", "hola", "primera versión")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	originalID := findNode(g, "node-a").ID

	res, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "decision", "hola", "segunda versión")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesUpdated)
	assert.Zero(t, res.NodesCreated)

	g, err = s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1, "same frontend id must never duplicate")
	assert.Equal(t, originalID, g.Nodes[0].ID)
	assert.Equal(t, "decision", g.Nodes[0].Kind)
	assert.Equal(t, "segunda versión", g.Nodes[0].Response)
}

func testDeletionCompleteness(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	_, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "message", "a", ""),
			node("node-b", "message", "b", ""),
		},
		Edges: []botflow.EdgePayload{edge("edge-ab", "node-a", "node-b", "")},
	})
	require.NoError(t, err)

	res, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "message", "a", "")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesDeleted)
	assert.Equal(t, 1, res.EdgesDeleted)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Nil(t, findNode(g, "node-b"))
	assert.Empty(t, g.Edges)
}

func testEdgeIntegrity(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	res, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "message", "", "")},
		Edges: []botflow.EdgePayload{
			edge("edge-ok", "node-a", "node-a", "loop"),
			edge("edge-bad", "node-a", "node-ghost", ""),
		},
	})
	require.NoError(t, err, "one bad connector must not block the save")
	assert.Equal(t, 1, res.EdgesCreated)
	assert.Equal(t, 1, res.DroppedEdges)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "edge-ok", g.Edges[0].FrontendID)
}

// testRenameAndExtend covers the documented editor scenario: rename a
// node through its stable identity and attach a new node in one save.
func testRenameAndExtend(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	_, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "start", "", "¡Hola!"),
			node("node-b", "message", "hola", "viejo texto"),
		},
		Edges: []botflow.EdgePayload{edge("edge-ab", "node-a", "node-b", "hola")},
	})
	require.NoError(t, err)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	oldB := findNode(g, "node-b").ID

	res, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "start", "", "¡Hola!"),
			node("node-b", "message", "hola", "texto renombrado"),
			node("node-c", "message", "sí", "nuevo nodo"),
		},
		Edges: []botflow.EdgePayload{
			edge("edge-ab", "node-a", "node-b", "hola"),
			edge("edge-bc", "node-b", "node-c", "sí"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NodesCreated)
	assert.Equal(t, 2, res.NodesUpdated)
	assert.Zero(t, res.DroppedEdges)

	g, err = s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)

	b := findNode(g, "node-b")
	c := findNode(g, "node-c")
	assert.Equal(t, oldB, b.ID, "renamed in place, not duplicated")
	assert.Equal(t, "texto renombrado", b.Response)
	require.NotNil(t, c)

	for _, e := range g.Edges {
		assert.NotNil(t, g.NodeByID(e.SourceID))
		assert.NotNil(t, g.NodeByID(e.TargetID))
	}
}

func testReplaceUnknownBot(t *testing.T, s botflow.Store) {
	_, err := s.ReplaceGraph(context.Background(), 424242, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
	})
	assert.ErrorIs(t, err, botflow.ErrBotNotFound)
}

func testAddNodeOrdering(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	// Menu expansion writes contiguous legacy positions; loads must come
	// back in that order.
	for i, label := range []string{"ventas", "soporte", "horarios"} {
		_, err := s.AddNode(ctx, &botflow.Node{
			BotID:    botID,
			Kind:     botflow.KindMenuOption,
			Trigger:  label,
			Response: fmt.Sprintf("Has seleccionado %s.", label),
			Position: i,
		})
		require.NoError(t, err)
	}

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "ventas", g.Nodes[0].Trigger)
	assert.Equal(t, "soporte", g.Nodes[1].Trigger)
	assert.Equal(t, "horarios", g.Nodes[2].Trigger)
}

func testConversationState(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	_, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "message", "a", ""),
			node("node-b", "message", "b", ""),
		},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	nodeA := findNode(g, "node-a").ID
	nodeB := findNode(g, "node-b").ID

	st, err := s.GetConversationState(ctx, botID, "+5491100000001")
	require.NoError(t, err)
	assert.Nil(t, st, "no pointer before the first message")

	created, err := s.SaveConversationState(ctx, botID, "+5491100000001", nodeA)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.SaveConversationState(ctx, botID, "+5491100000001", nodeB)
	require.NoError(t, err)
	assert.False(t, created, "second save updates the unique (bot, contact) row")

	st, err = s.GetConversationState(ctx, botID, "+5491100000001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, nodeB, st.CurrentNodeID)

	// Same contact on another bot is an independent pointer.
	otherBot := newBot(t, s, "other")
	st, err = s.GetConversationState(ctx, otherBot, "+5491100000001")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func testPointerSurvivesDeletion(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")

	_, err := s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "message", "hola", "")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	g, err := s.LoadGraph(ctx, botID)
	require.NoError(t, err)
	nodeID := g.Nodes[0].ID

	_, err = s.SaveConversationState(ctx, botID, "contact", nodeID)
	require.NoError(t, err)

	// Soft deletion must leave the in-flight pointer resolvable.
	_, err = s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	st, err := s.GetConversationState(ctx, botID, "contact")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, nodeID, st.CurrentNodeID)
}

func testBackups(t *testing.T, s botflow.Store) {
	ctx := context.Background()
	botID := newBot(t, s, "bot")
	otherBot := newBot(t, s, "other")

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < botflow.MaxBackups+3; i++ {
		b := &botflow.Backup{
			ID:        fmt.Sprintf("backup-%02d", i),
			BotID:     botID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Payload: botflow.GraphPayload{
				Nodes: []botflow.NodePayload{node("node-a", "message", "", fmt.Sprintf("versión %d", i))},
				Edges: []botflow.EdgePayload{},
			},
		}
		require.NoError(t, s.InsertBackup(ctx, b))
		assert.Equal(t, i+1, b.Version, "versions are monotonic per bot, starting at 1")
		ids = append(ids, b.ID)
	}

	list, err := s.ListBackups(ctx, botID)
	require.NoError(t, err)
	require.Len(t, list, botflow.MaxBackups, "bounded history keeps the 10 most recent")
	assert.Equal(t, botflow.MaxBackups+3, list[0].Version, "sorted by version descending")
	assert.Equal(t, 4, list[len(list)-1].Version, "oldest snapshots evicted first")

	// Evicted ids are gone; survivors keep their payload.
	_, err = s.GetBackup(ctx, botID, ids[0])
	assert.ErrorIs(t, err, botflow.ErrBackupNotFound)

	last, err := s.GetBackup(ctx, botID, ids[len(ids)-1])
	require.NoError(t, err)
	require.Len(t, last.Payload.Nodes, 1)
	assert.Contains(t, last.Payload.Nodes[0].Data.Message, "versión")

	// A backup id never resolves through a foreign bot.
	_, err = s.GetBackup(ctx, otherBot, ids[len(ids)-1])
	assert.ErrorIs(t, err, botflow.ErrBackupNotFound)

	// Other bots keep independent version sequences.
	b := &botflow.Backup{ID: "other-1", BotID: otherBot, Payload: botflow.GraphPayload{
		Nodes: []botflow.NodePayload{}, Edges: []botflow.EdgePayload{},
	}}
	require.NoError(t, s.InsertBackup(ctx, b))
	assert.Equal(t, 1, b.Version)
}

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/engine"
	"github.com/meikuraledutech/botflow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *memory.MemStore) {
	t.Helper()
	store := memory.New()
	return engine.New(store, opts...), store
}

func newBot(t *testing.T, e *engine.Engine, name string) int64 {
	t.Helper()
	bot, err := e.CreateBot(context.Background(), &botflow.Bot{Name: name, WebchatEnabled: true})
	require.NoError(t, err)
	return bot.ID
}

func node(id, kind, label, message string) botflow.NodePayload {
	return botflow.NodePayload{ID: id, Type: kind, Data: botflow.NodeData{Label: label, Message: message}}
}

func edge(id, source, target, label string) botflow.EdgePayload {
	return botflow.EdgePayload{ID: id, Source: source, Target: target, Label: label}
}

func TestCreateBotMenuExpansion(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	bot, err := e.CreateBot(ctx, &botflow.Bot{
		Name: "soporte",
		MenuOptions: []botflow.MenuOption{
			{Label: "Ventas"},
			{Label: "Soporte Técnico"},
		},
	})
	require.NoError(t, err)

	g, err := store.LoadGraph(ctx, bot.ID)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	assert.Equal(t, botflow.KindMenuOption, g.Nodes[0].Kind)
	assert.Equal(t, "ventas", g.Nodes[0].Trigger)
	assert.Equal(t, 0, g.Nodes[0].Position)
	assert.Equal(t, "soporte técnico", g.Nodes[1].Trigger)
	assert.Equal(t, 1, g.Nodes[1].Position)
	assert.Contains(t, g.Nodes[0].Response, "Has seleccionado Ventas")

	// A menu bot answers its quick replies before any editor session.
	reply, err := e.ChatStep(ctx, bot.ID, "+5491100000001", botflow.ChatRequest{Message: "Ventas"})
	require.NoError(t, err)
	assert.Contains(t, reply.Response, "Has seleccionado Ventas")
}

func TestGetFlowCachingAndInvalidation(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	first, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	require.Len(t, first.Nodes, 1)

	// A write that bypasses the engine is invisible while the cache is warm.
	_, err = store.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola"), node("node-b", "message", "chau", "adiós")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	cached, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, cached.Nodes, 1, "stale read served from cache")

	e.InvalidateBot(botID)
	fresh, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, fresh.Nodes, 2)
}

func TestSaveFlowInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	before, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	require.Len(t, before.Nodes, 1)

	_, err = e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "start", "", "hola"),
			node("node-b", "message", "precio", "cuesta $10"),
		},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	after, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, after.Nodes, 2, "read after write sees the write")
}

func TestSaveFlowTakesBackupFirst(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	backups, err := e.ListBackups(ctx, botID)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, 1, backups[0].Version)

	// The snapshot holds the pre-write graph, which was empty.
	full, err := e.RestoreBackup(ctx, botID, backups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, full.NodesDeleted)

	g, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

func TestSaveFlowValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{Edges: []botflow.EdgePayload{}})
	assert.ErrorIs(t, err, botflow.ErrInvalidPayload)

	_, err = e.SaveFlow(ctx, 999, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
	})
	assert.ErrorIs(t, err, botflow.ErrBotNotFound)
}

func TestSaveFlowRenamesBot(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	botID := newBot(t, e, "borrador")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
		Name:  "atención al cliente",
	})
	require.NoError(t, err)

	bot, err := store.GetBot(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, "atención al cliente", bot.Name)
}

func TestApplyDiff(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-a", "start", "", "hola"),
			node("node-b", "message", "precio", "cuesta $10"),
		},
		Edges: []botflow.EdgePayload{edge("edge-1", "node-a", "node-b", "")},
	})
	require.NoError(t, err)

	result, err := e.ApplyDiff(ctx, botID, engine.DiffPayload{
		NodesToCreate: []botflow.NodePayload{node("node-c", "message", "horario", "de 9 a 18")},
		NodesToUpdate: []botflow.NodePayload{node("node-b", "message", "precio", "cuesta $12")},
		NodesToDelete: []string{"node-a"},
		EdgesToCreate: []botflow.EdgePayload{edge("edge-2", "node-b", "node-c", "horario")},
		EdgesToDelete: []string{"edge-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodesCreated)
	assert.Equal(t, 1, result.NodesDeleted)
	assert.Equal(t, 1, result.EdgesCreated)
	assert.Equal(t, 1, result.EdgesDeleted)

	flow, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 2)

	byID := map[string]botflow.NodePayload{}
	for _, n := range flow.Nodes {
		byID[n.ID] = n
	}
	assert.NotContains(t, byID, "node-a")
	assert.Equal(t, "cuesta $12", byID["node-b"].Data.Message)
	assert.Equal(t, "de 9 a 18", byID["node-c"].Data.Message)

	require.Len(t, flow.Edges, 1)
	assert.Equal(t, "edge-2", flow.Edges[0].ID)
}

func chatGraph() botflow.GraphPayload {
	return botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			node("node-start", "start", "", ""),
			node("node-greet", "message", "hola", "¡Hola! ¿Querés ver precios?"),
			node("node-decision", "decision", "", "¿Te interesa?"),
			node("node-yes", "message", "sí", "¡Genial!"),
			node("node-end", "end", "", "Hasta luego"),
		},
		Edges: []botflow.EdgePayload{
			edge("edge-start", "node-start", "node-greet", ""),
			edge("edge-to-decision", "node-greet", "node-decision", ""),
			edge("edge-yes", "node-decision", "node-yes", "sí"),
			edge("edge-bye", "node-yes", "node-end", ""),
		},
	}
}

func TestChatStepCountersAndPointer(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	botID := newBot(t, e, "bot")
	_, err := e.SaveFlow(ctx, botID, chatGraph())
	require.NoError(t, err)

	contact := "+5491100000001"

	// First message: no stored pointer, start resolution hops to the greeting.
	reply, err := e.ChatStep(ctx, botID, contact, botflow.ChatRequest{Message: "buenas"})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Querés ver precios?", reply.Response)

	bot, err := store.GetBot(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bot.MessageCount)
	assert.Equal(t, int64(1), bot.ConversationCount)

	st, err := store.GetConversationState(ctx, botID, contact)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, reply.CurrentFlowID, st.CurrentNodeID)

	// Second message from the same contact: conversation counted once.
	reply, err = e.ChatStep(ctx, botID, contact, botflow.ChatRequest{Message: "lo que sea"})
	require.NoError(t, err)
	assert.True(t, reply.IsDecision)
	require.Len(t, reply.Options, 1)
	assert.Equal(t, "sí", reply.Options[0].Label)

	bot, err = store.GetBot(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bot.MessageCount)
	assert.Equal(t, int64(1), bot.ConversationCount)
}

func TestChatStepExplicitPointerWins(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	botID := newBot(t, e, "bot")
	_, err := e.SaveFlow(ctx, botID, chatGraph())
	require.NoError(t, err)

	g, err := store.LoadGraph(ctx, botID)
	require.NoError(t, err)
	var decisionID int64
	for _, n := range g.Nodes {
		if n.Kind == botflow.KindDecision {
			decisionID = n.ID
		}
	}
	require.NotZero(t, decisionID)

	reply, err := e.ChatStep(ctx, botID, "+5491100000002", botflow.ChatRequest{
		Message:       "sí",
		CurrentFlowID: decisionID,
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Genial!", reply.Response)
}

func TestChatStepFallbackKeepsPointer(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	botID := newBot(t, e, "bot")

	// A graph with no start and no matching trigger yields the fallback.
	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	contact := "+5491100000003"
	reply, err := e.ChatStep(ctx, botID, contact, botflow.ChatRequest{Message: "hola"})
	require.NoError(t, err)
	assert.Equal(t, botflow.FallbackMessage, reply.Response)
	assert.Zero(t, reply.CurrentFlowID)

	st, err := store.GetConversationState(ctx, botID, contact)
	require.NoError(t, err)
	assert.Nil(t, st, "fallback must not create or move the pointer")

	bot, err := store.GetBot(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bot.MessageCount, "fallback still counts the exchange")
	assert.Zero(t, bot.ConversationCount)
}

func TestRestoreBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "versión uno")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	snapshot, err := e.CreateBackup(ctx, botID)
	require.NoError(t, err)

	_, err = e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-b", "start", "", "versión dos")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	_, err = e.RestoreBackup(ctx, botID, snapshot.ID)
	require.NoError(t, err)

	flow, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 1)
	assert.Equal(t, "node-a", flow.Nodes[0].ID)
	assert.Equal(t, "versión uno", flow.Nodes[0].Data.Message)

	_, err = e.RestoreBackup(ctx, botID, "no-such-backup")
	assert.ErrorIs(t, err, botflow.ErrBackupNotFound)
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, engine.WithCacheTTL(10*time.Millisecond))
	botID := newBot(t, e, "bot")

	_, err := e.SaveFlow(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	_, err = e.GetFlow(ctx, botID)
	require.NoError(t, err)

	_, err = store.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{node("node-a", "start", "", "hola"), node("node-b", "message", "x", "y")},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	fresh, err := e.GetFlow(ctx, botID)
	require.NoError(t, err)
	assert.Len(t, fresh.Nodes, 2, "expired entry falls through to the store")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/engine"
	"github.com/meikuraledutech/botflow/memory"
)

func main() {
	ctx := context.Background()

	// The memory backend needs no external services; swap in
	// postgres.New(pool) or sqlite.New(path) for persistence.
	store := memory.New()
	eng := engine.New(store)

	// ── Create a bot with menu options ────────────────────────────────
	bot, err := eng.CreateBot(ctx, &botflow.Bot{
		Name: "Soporte Plubot",
		MenuOptions: []botflow.MenuOption{
			{Label: "Ventas"},
			{Label: "Soporte"},
		},
	})
	if err != nil {
		log.Fatalf("create bot: %v", err)
	}
	fmt.Printf("bot created: %d (%s)\n", bot.ID, bot.Name)

	// ── Save a flow as the editor would ───────────────────────────────
	result, err := eng.SaveFlow(ctx, bot.ID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{
			{ID: "node-start", Type: "start"},
			{ID: "node-greet", Type: "message", Data: botflow.NodeData{
				Label: "hola", Message: "¡Hola! ¿Querés ver nuestros precios?",
			}},
			{ID: "node-decision", Type: "decision", Data: botflow.NodeData{
				Message: "¿Te interesa?",
			}},
			{ID: "node-prices", Type: "message", Data: botflow.NodeData{
				Label: "sí", Message: "El plan básico cuesta $10 por mes.",
			}},
			{ID: "node-end", Type: "end", Data: botflow.NodeData{
				Message: "¡Gracias por escribirnos!",
			}},
		},
		Edges: []botflow.EdgePayload{
			{ID: "edge-1", Source: "node-start", Target: "node-greet"},
			{ID: "edge-2", Source: "node-greet", Target: "node-decision"},
			{ID: "edge-3", Source: "node-decision", Target: "node-prices", Label: "sí"},
			{ID: "edge-4", Source: "node-prices", Target: "node-end"},
		},
	})
	if err != nil {
		log.Fatalf("save flow: %v", err)
	}
	fmt.Println("flow saved:")
	printJSON(result)

	// ── Chat a few turns ──────────────────────────────────────────────
	contact := "+5491122334455"
	var history []botflow.HistoryEntry
	for _, msg := range []string{"buenas", "dale", "sí"} {
		reply, err := eng.ChatStep(ctx, bot.ID, contact, botflow.ChatRequest{
			Message:             msg,
			ConversationHistory: history,
		})
		if err != nil {
			log.Fatalf("chat: %v", err)
		}
		fmt.Printf("\nuser: %s\nbot:  %s\n", msg, reply.Response)
		if reply.IsDecision {
			for _, opt := range reply.Options {
				fmt.Printf("      [%s]\n", opt.Label)
			}
		}
		history = reply.ConversationHistory
	}

	// ── Backups ───────────────────────────────────────────────────────
	backups, err := eng.ListBackups(ctx, bot.ID)
	if err != nil {
		log.Fatalf("list backups: %v", err)
	}
	fmt.Printf("\nbackups (%d):\n", len(backups))
	printJSON(backups)

	restored, err := eng.RestoreBackup(ctx, bot.ID, backups[0].ID)
	if err != nil {
		log.Fatalf("restore: %v", err)
	}
	fmt.Println("\nlatest backup restored:")
	printJSON(restored)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

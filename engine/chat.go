package engine

import (
	"context"
	"time"

	"github.com/meikuraledutech/botflow"
)

// ChatStep advances one conversation by one user message. The current
// node comes from the request when the client tracks it, otherwise from
// the stored pointer for the contact. The pointer only moves when a next
// node resolves; a fallback reply leaves it untouched.
func (e *Engine) ChatStep(ctx context.Context, botID int64, contact string, req botflow.ChatRequest) (*botflow.ChatReply, error) {
	start := time.Now()

	g, err := e.store.LoadGraph(ctx, botID)
	if err != nil {
		return nil, err
	}

	currentID := req.CurrentFlowID
	if currentID == 0 && contact != "" {
		st, err := e.store.GetConversationState(ctx, botID, contact)
		if err != nil {
			return nil, err
		}
		if st != nil {
			currentID = st.CurrentNodeID
		}
	}

	next := botflow.NextNode(g, currentID, req.Message)

	var newConversations int64
	if next != nil && contact != "" {
		created, err := e.store.SaveConversationState(ctx, botID, contact, next.ID)
		if err != nil {
			return nil, err
		}
		if created {
			newConversations = 1
		}
	}

	if err := e.store.BumpCounters(ctx, botID, 1, newConversations); err != nil {
		return nil, err
	}

	reply := botflow.BuildChatReply(g, next, req.ConversationHistory, req.Message)

	e.metrics.RecordChatStep(ctx, botID, next != nil, time.Since(start))
	e.log.Debug("chat step",
		"bot_id", botID,
		"contact", contact,
		"from_node", currentID,
		"to_node", reply.CurrentFlowID,
		"matched", next != nil,
	)

	return &reply, nil
}

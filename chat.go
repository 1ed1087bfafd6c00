package botflow

// FallbackMessage is sent when the state machine cannot produce a next
// node for an inbound message.
const FallbackMessage = "Lo siento, no entiendo tu mensaje. ¿Puedes reformularlo?"

// HistoryEntry is one line of a chat transcript carried by the client
// across stateless requests.
type HistoryEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
	FlowID  int64  `json:"flow_id,omitempty"`
}

// ChatRequest is one inbound user message.
type ChatRequest struct {
	Message             string         `json:"message"`
	CurrentFlowID       int64          `json:"current_flow_id,omitempty"`
	ConversationHistory []HistoryEntry `json:"conversation_history,omitempty"`
}

// ChatOption is one branch button offered at a decision node.
type ChatOption struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// ChatReply is the outcome of one chat step.
type ChatReply struct {
	Response            string         `json:"response"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	CurrentFlowID       int64          `json:"current_flow_id"`
	IsDecision          bool           `json:"is_decision"`
	Options             []ChatOption   `json:"options"`
}

// DecisionOptions enumerates the outgoing edges of a decision node as
// labeled buttons. Edges whose target does not resolve are skipped.
func DecisionOptions(g *Graph, node *Node) []ChatOption {
	options := []ChatOption{}
	for _, e := range g.OutgoingEdges(node.ID) {
		target := g.NodeByID(e.TargetID)
		if target == nil {
			continue
		}
		label := e.Condition
		if label == "" {
			label = "Opción"
		}
		options = append(options, ChatOption{
			ID:      target.ID,
			Label:   label,
			Message: target.Trigger,
		})
	}
	return options
}

// BuildChatReply assembles the response payload for one exchange. A nil
// next node produces the fallback reply with no pointer movement.
func BuildChatReply(g *Graph, next *Node, history []HistoryEntry, userMessage string) ChatReply {
	reply := ChatReply{Options: []ChatOption{}}

	if next != nil {
		reply.Response = next.Response
		reply.CurrentFlowID = next.ID
		if next.Kind == KindDecision {
			reply.IsDecision = true
			reply.Options = DecisionOptions(g, next)
		}
	} else {
		reply.Response = FallbackMessage
	}

	appended := make([]HistoryEntry, 0, len(history)+2)
	appended = append(appended, history...)
	appended = append(appended, HistoryEntry{Role: "user", Message: userMessage})
	appended = append(appended, HistoryEntry{Role: "bot", Message: reply.Response, FlowID: reply.CurrentFlowID})
	reply.ConversationHistory = appended

	return reply
}

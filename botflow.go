package botflow

import "time"

// Node kinds understood by the traversal engine.
const (
	KindStart      = "start"
	KindMessage    = "message"
	KindDecision   = "decision"
	KindEnd        = "end"
	KindMenuOption = "menu_option"
)

// MaxBackups is the number of graph snapshots retained per bot.
// The oldest snapshot is evicted first once the bound is exceeded.
const MaxBackups = 10

// Bot is one conversational bot. Only the fields the flow engine touches
// live here; profile/billing data belongs to other services.
type Bot struct {
	ID                int64        `json:"id"`
	Name              string       `json:"name"`
	Tone              string       `json:"tone,omitempty"`
	InitialMessage    string       `json:"initial_message,omitempty"`
	MenuOptions       []MenuOption `json:"menu_options,omitempty"`
	WebchatEnabled    bool         `json:"is_webchat_enabled"`
	ConversationCount int64        `json:"conversation_count"`
	MessageCount      int64        `json:"message_count"`
	CreatedAt         time.Time    `json:"created_at,omitempty"`
}

// MenuOption is a quick-reply entry expanded into a menu_option node at
// bot creation time.
type MenuOption struct {
	Label  string `json:"label"`
	Action string `json:"action,omitempty"`
}

// Node is one step in a bot's conversation graph.
// FrontendID is the editor-assigned identity that survives edits; ID is
// the storage identity and is never reused.
type Node struct {
	ID         int64          `json:"id"`
	BotID      int64          `json:"bot_id"`
	FrontendID string         `json:"frontend_id,omitempty"`
	Kind       string         `json:"kind"`
	Trigger    string         `json:"trigger"`
	Response   string         `json:"response"`
	Position   int            `json:"position"` // legacy contiguous order, set at bot creation only
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Deleted    bool           `json:"-"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// Edge is a directed transition between two nodes of the same bot,
// optionally guarded by a condition string matched against user input.
type Edge struct {
	ID           int64          `json:"id"`
	BotID        int64          `json:"bot_id"`
	SourceID     int64          `json:"source_id"`
	TargetID     int64          `json:"target_id"`
	FrontendID   string         `json:"frontend_id,omitempty"`
	Condition    string         `json:"condition"`
	Type         string         `json:"type"`
	SourceHandle string         `json:"source_handle,omitempty"`
	TargetHandle string         `json:"target_handle,omitempty"`
	Animated     bool           `json:"animated"`
	Style        map[string]any `json:"style,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Deleted      bool           `json:"-"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
}

// Graph is the assembled live node/edge set for one bot.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given storage id, or nil.
func (g *Graph) NodeByID(id int64) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// OutgoingEdges returns the edges whose source is nodeID, in storage order.
func (g *Graph) OutgoingEdges(nodeID int64) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Sanitize drops edges whose endpoints are not both present in the node
// set and returns how many were dropped. A graph read must never fail
// over one corrupt edge.
func (g *Graph) Sanitize() int {
	ids := make(map[int64]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	kept := g.Edges[:0]
	dropped := 0
	for _, e := range g.Edges {
		if _, ok := ids[e.SourceID]; !ok {
			dropped++
			continue
		}
		if _, ok := ids[e.TargetID]; !ok {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return dropped
}

// ConversationState is the persisted "current node" pointer for one
// contact on one bot. Unique per (bot_id, contact).
type ConversationState struct {
	ID            int64     `json:"id"`
	BotID         int64     `json:"bot_id"`
	Contact       string    `json:"contact_identifier"`
	CurrentNodeID int64     `json:"current_node_id"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Backup is an immutable, versioned snapshot of a bot's graph taken
// before a destructive write. The payload uses frontend identities so it
// can be replayed through the sync path on any later state.
type Backup struct {
	ID        string       `json:"id"`
	BotID     int64        `json:"bot_id"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"timestamp"`
	Payload   GraphPayload `json:"payload,omitempty"`
}

package botflow

// Wire shapes exchanged with the visual editor. Node and edge identities
// here are frontend ids, falling back to the storage id rendered as a
// string when a row predates the editor (programmatic creation).

import "strconv"

// XY is a 2-D canvas position.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the editor-visible text of a node: the user trigger
// phrase (label) and the bot response (message).
type NodeData struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// NodePayload is one node as the editor sees it.
type NodePayload struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position XY             `json:"position"`
	Data     NodeData       `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EdgePayload is one edge as the editor sees it. Label doubles as the
// traversal condition.
type EdgePayload struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty"`
	Type         string         `json:"type"`
	Animated     bool           `json:"animated"`
	Label        string         `json:"label,omitempty"`
	Style        map[string]any `json:"style,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// GraphPayload is a complete editor submission or read-back of a bot's
// graph.
type GraphPayload struct {
	Nodes []NodePayload `json:"nodes"`
	Edges []EdgePayload `json:"edges"`
	Name  string        `json:"name,omitempty"`
}

// ExternalID returns a node's stable external identity, falling back to
// the storage id string.
func (n *Node) ExternalID() string {
	if n.FrontendID != "" {
		return n.FrontendID
	}
	return strconv.FormatInt(n.ID, 10)
}

// FormatGraph renders a live graph in editor shape. Edge endpoints are
// re-expressed through node frontend ids so the result is replay-safe;
// this is also the backup snapshot format.
func FormatGraph(g *Graph, name string) GraphPayload {
	byID := make(map[int64]*Node, len(g.Nodes))
	for i := range g.Nodes {
		byID[g.Nodes[i].ID] = &g.Nodes[i]
	}

	p := GraphPayload{
		Nodes: make([]NodePayload, 0, len(g.Nodes)),
		Edges: make([]EdgePayload, 0, len(g.Edges)),
		Name:  name,
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		kind := n.Kind
		if kind == "" {
			kind = KindMessage
		}
		p.Nodes = append(p.Nodes, NodePayload{
			ID:       n.ExternalID(),
			Type:     kind,
			Position: XY{X: n.X, Y: n.Y},
			Data:     NodeData{Label: n.Trigger, Message: n.Response},
			Metadata: n.Metadata,
		})
	}

	for _, e := range g.Edges {
		src, okS := byID[e.SourceID]
		dst, okT := byID[e.TargetID]
		if !okS || !okT {
			continue
		}
		typ := e.Type
		if typ == "" {
			typ = "default"
		}
		p.Edges = append(p.Edges, EdgePayload{
			ID:           edgeFrontendID(&e),
			Source:       src.ExternalID(),
			Target:       dst.ExternalID(),
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
			Type:         typ,
			Animated:     e.Animated,
			Label:        e.Condition,
			Style:        e.Style,
			Metadata:     e.Metadata,
		})
	}

	return p
}

func edgeFrontendID(e *Edge) string {
	if e.FrontendID != "" {
		return e.FrontendID
	}
	return strconv.FormatInt(e.ID, 10)
}

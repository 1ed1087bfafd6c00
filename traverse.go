package botflow

import "strings"

// Conversation state machine. States are nodes; there is no terminal
// state — an end node with nowhere to go loops back to the start state.
// All matching is case-insensitive. Given a fixed graph and a fixed
// (current node, message) pair the outcome is deterministic: edges and
// nodes are considered in storage order.

// StartNode resolves the initial state for a never-seen contact: the
// first start node, hopping to the target of its first outgoing edge when
// that target resolves; otherwise the first message node; nil when the
// graph has neither.
func StartNode(g *Graph) *Node {
	var start *Node
	for i := range g.Nodes {
		if g.Nodes[i].Kind == KindStart {
			start = &g.Nodes[i]
			break
		}
	}
	if start == nil {
		for i := range g.Nodes {
			if g.Nodes[i].Kind == KindMessage {
				return &g.Nodes[i]
			}
		}
		return nil
	}

	for _, e := range g.Edges {
		if e.SourceID != start.ID {
			continue
		}
		if target := g.NodeByID(e.TargetID); target != nil {
			return target
		}
		break
	}
	return start
}

// NextNode computes the transition for one inbound message. currentID is
// the persisted pointer, zero when the contact has none. A nil result
// means the graph could not produce a next state at all (empty graph);
// the caller replies with a generic fallback and must not move the
// pointer.
func NextNode(g *Graph, currentID int64, message string) *Node {
	var next *Node
	if currentID != 0 {
		next = nextFromNode(g, currentID, message)
		if next == nil {
			if cur := g.NodeByID(currentID); cur != nil && cur.Kind == KindEnd {
				next = StartNode(g)
			}
		}
	}
	if next == nil {
		next = nextGlobally(g, message)
	}
	return next
}

// nextFromNode walks the outgoing edges of the current node: exact
// condition match first, then substring match, then the first edge in
// storage order as the default branch.
func nextFromNode(g *Graph, currentID int64, message string) *Node {
	edges := g.OutgoingEdges(currentID)
	if len(edges) == 0 {
		return nil
	}

	lower := strings.ToLower(message)
	var match *Edge
	for i := range edges {
		if edges[i].Condition != "" && lower == strings.ToLower(edges[i].Condition) {
			match = &edges[i]
			break
		}
	}
	if match == nil {
		for i := range edges {
			if edges[i].Condition != "" && strings.Contains(strings.ToLower(edges[i].Condition), lower) {
				match = &edges[i]
				break
			}
		}
	}
	if match == nil {
		match = &edges[0]
	}
	return g.NodeByID(match.TargetID)
}

// nextGlobally searches every node's trigger phrase for the message and
// falls back to the start state.
func nextGlobally(g *Graph, message string) *Node {
	lower := strings.ToLower(message)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Trigger != "" && strings.Contains(strings.ToLower(n.Trigger), lower) {
			return n
		}
	}
	return StartNode(g)
}

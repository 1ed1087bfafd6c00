// Package memory implements botflow.Store in process memory. It backs
// tests and ephemeral single-process deployments; data is lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meikuraledutech/botflow"
)

type stateKey struct {
	botID   int64
	contact string
}

// MemStore is an in-memory botflow.Store safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	seq     int64
	bots    map[int64]*botflow.Bot
	nodes   map[int64]*botflow.Node
	edges   map[int64]*botflow.Edge
	states  map[stateKey]*botflow.ConversationState
	backups map[string]*botflow.Backup
}

// New creates an empty MemStore.
func New() *MemStore {
	s := &MemStore{}
	s.reset()
	return s
}

func (s *MemStore) reset() {
	s.bots = make(map[int64]*botflow.Bot)
	s.nodes = make(map[int64]*botflow.Node)
	s.edges = make(map[int64]*botflow.Edge)
	s.states = make(map[stateKey]*botflow.ConversationState)
	s.backups = make(map[string]*botflow.Backup)
}

func (s *MemStore) nextID() int64 {
	s.seq++
	return s.seq
}

// CreateSchema is a no-op; the maps exist from New.
func (s *MemStore) CreateSchema(ctx context.Context) error { return nil }

// DropSchema discards all stored data.
func (s *MemStore) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// ── Bots ─────────────────────────────────────────────────────────────

func (s *MemStore) CreateBot(ctx context.Context, bot *botflow.Bot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := *bot
	b.ID = s.nextID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	s.bots[b.ID] = &b
	bot.ID = b.ID
	return b.ID, nil
}

func (s *MemStore) GetBot(ctx context.Context, botID int64) (*botflow.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bots[botID]
	if !ok {
		return nil, botflow.ErrBotNotFound
	}
	out := *b
	return &out, nil
}

func (s *MemStore) RenameBot(ctx context.Context, botID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[botID]
	if !ok {
		return botflow.ErrBotNotFound
	}
	b.Name = name
	return nil
}

func (s *MemStore) BumpCounters(ctx context.Context, botID int64, messages, conversations int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bots[botID]
	if !ok {
		return botflow.ErrBotNotFound
	}
	b.MessageCount += messages
	b.ConversationCount += conversations
	return nil
}

// ── Graph ────────────────────────────────────────────────────────────

func (s *MemStore) LoadGraph(ctx context.Context, botID int64) (*botflow.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &botflow.Graph{Nodes: []botflow.Node{}, Edges: []botflow.Edge{}}
	for _, n := range s.nodes {
		if n.BotID == botID && !n.Deleted {
			g.Nodes = append(g.Nodes, *n)
		}
	}
	for _, e := range s.edges {
		if e.BotID == botID && !e.Deleted {
			g.Edges = append(g.Edges, *e)
		}
	}

	// Legacy contiguous position first, storage order within it.
	sort.Slice(g.Nodes, func(i, j int) bool {
		if g.Nodes[i].Position != g.Nodes[j].Position {
			return g.Nodes[i].Position < g.Nodes[j].Position
		}
		return g.Nodes[i].ID < g.Nodes[j].ID
	})
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })

	g.Sanitize()
	return g, nil
}

func (s *MemStore) ReplaceGraph(ctx context.Context, botID int64, incoming botflow.GraphPayload) (*botflow.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bots[botID]; !ok {
		return nil, botflow.ErrBotNotFound
	}

	existingNodes := s.botNodes(botID)
	nodePlan := botflow.PlanNodes(botID, existingNodes, incoming.Nodes)

	now := time.Now().UTC()
	nodeIDs := make(map[string]int64, len(nodePlan.Creates)+len(nodePlan.Updates))

	for i := range nodePlan.Creates {
		n := nodePlan.Creates[i]
		n.ID = s.nextID()
		n.CreatedAt = now
		n.UpdatedAt = now
		s.nodes[n.ID] = &n
		nodeIDs[n.FrontendID] = n.ID
	}
	for i := range nodePlan.Updates {
		n := nodePlan.Updates[i]
		n.UpdatedAt = now
		s.nodes[n.ID] = &n
		nodeIDs[n.FrontendID] = n.ID
	}
	for _, id := range nodePlan.DeleteIDs {
		if n, ok := s.nodes[id]; ok {
			n.Deleted = true
			n.UpdatedAt = now
		}
	}

	existingEdges := s.botEdges(botID)
	edgePlan := botflow.PlanEdges(botID, existingEdges, incoming.Edges, nodeIDs)

	for i := range edgePlan.Creates {
		e := edgePlan.Creates[i]
		e.ID = s.nextID()
		e.CreatedAt = now
		e.UpdatedAt = now
		s.edges[e.ID] = &e
	}
	for i := range edgePlan.Updates {
		e := edgePlan.Updates[i]
		e.UpdatedAt = now
		s.edges[e.ID] = &e
	}
	for _, id := range edgePlan.DeleteIDs {
		if e, ok := s.edges[id]; ok {
			e.Deleted = true
			e.UpdatedAt = now
		}
	}

	return botflow.TallyResult(nodePlan, edgePlan), nil
}

func (s *MemStore) AddNode(ctx context.Context, node *botflow.Node) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bots[node.BotID]; !ok {
		return 0, botflow.ErrBotNotFound
	}
	n := *node
	n.ID = s.nextID()
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	s.nodes[n.ID] = &n
	node.ID = n.ID
	return n.ID, nil
}

// botNodes returns all rows for a bot, live and soft-deleted, in storage
// order. Callers must hold the lock.
func (s *MemStore) botNodes(botID int64) []botflow.Node {
	var out []botflow.Node
	for _, n := range s.nodes {
		if n.BotID == botID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) botEdges(botID int64) []botflow.Edge {
	var out []botflow.Edge
	for _, e := range s.edges {
		if e.BotID == botID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── Conversation state ───────────────────────────────────────────────

func (s *MemStore) GetConversationState(ctx context.Context, botID int64, contact string) (*botflow.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[stateKey{botID, contact}]
	if !ok {
		return nil, nil
	}
	out := *st
	return &out, nil
}

func (s *MemStore) SaveConversationState(ctx context.Context, botID int64, contact string, nodeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey{botID, contact}
	now := time.Now().UTC()
	if st, ok := s.states[key]; ok {
		st.CurrentNodeID = nodeID
		st.UpdatedAt = now
		return false, nil
	}
	s.states[key] = &botflow.ConversationState{
		ID:            s.nextID(),
		BotID:         botID,
		Contact:       contact,
		CurrentNodeID: nodeID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return true, nil
}

// ── Backups ──────────────────────────────────────────────────────────

func (s *MemStore) InsertBackup(ctx context.Context, b *botflow.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := 0
	for _, existing := range s.backups {
		if existing.BotID == b.BotID && existing.Version > version {
			version = existing.Version
		}
	}

	stored := *b
	stored.Version = version + 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.backups[stored.ID] = &stored
	b.Version = stored.Version
	b.CreatedAt = stored.CreatedAt

	// Evict the single oldest snapshot once the bound is exceeded.
	var botBackups []*botflow.Backup
	for _, bk := range s.backups {
		if bk.BotID == b.BotID {
			botBackups = append(botBackups, bk)
		}
	}
	if len(botBackups) > botflow.MaxBackups {
		oldest := botBackups[0]
		for _, bk := range botBackups[1:] {
			if bk.CreatedAt.Before(oldest.CreatedAt) ||
				(bk.CreatedAt.Equal(oldest.CreatedAt) && bk.Version < oldest.Version) {
				oldest = bk
			}
		}
		delete(s.backups, oldest.ID)
	}

	return nil
}

func (s *MemStore) ListBackups(ctx context.Context, botID int64) ([]botflow.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []botflow.Backup{}
	for _, b := range s.backups {
		if b.BotID != botID {
			continue
		}
		meta := *b
		meta.Payload = botflow.GraphPayload{}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s *MemStore) GetBackup(ctx context.Context, botID int64, backupID string) (*botflow.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.backups[backupID]
	if !ok || b.BotID != botID {
		return nil, botflow.ErrBackupNotFound
	}
	out := *b
	return &out, nil
}

var _ botflow.Store = (*MemStore)(nil)

package botflow

import "context"

// SyncResult reports what a graph reconciliation did. DroppedEdges counts
// incoming edges skipped because an endpoint could not be resolved; the
// skip is deliberate and non-fatal.
type SyncResult struct {
	NodesCreated int `json:"nodes_created"`
	NodesUpdated int `json:"nodes_updated"`
	NodesDeleted int `json:"nodes_deleted"`
	EdgesCreated int `json:"edges_created"`
	EdgesUpdated int `json:"edges_updated"`
	EdgesDeleted int `json:"edges_deleted"`
	DroppedEdges int `json:"dropped_edges"`
}

// Store defines the contract for persisting bots, their flow graphs,
// conversation pointers, and graph backups.
//
// ReplaceGraph must be atomic: either the whole reconciliation commits or
// the stored graph is left untouched. InsertBackup must assign the next
// version for the bot and evict beyond MaxBackups within the same unit of
// work, so concurrent writers cannot corrupt the accounting.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Bots
	CreateBot(ctx context.Context, bot *Bot) (int64, error)
	GetBot(ctx context.Context, botID int64) (*Bot, error)
	RenameBot(ctx context.Context, botID int64, name string) error
	// BumpCounters adds to the bot's message and conversation counters.
	BumpCounters(ctx context.Context, botID int64, messages, conversations int64) error

	// Graph
	// LoadGraph returns only live rows; edges with unresolvable endpoints
	// are dropped, never surfaced as an error.
	LoadGraph(ctx context.Context, botID int64) (*Graph, error)
	// ReplaceGraph reconciles a complete editor submission against the
	// persisted graph by frontend identity (see PlanNodes/PlanEdges).
	ReplaceGraph(ctx context.Context, botID int64, incoming GraphPayload) (*SyncResult, error)
	// AddNode inserts a single node outside the sync path (menu/template
	// expansion at bot creation).
	AddNode(ctx context.Context, node *Node) (int64, error)

	// Conversation state
	// GetConversationState returns nil, nil when the contact has none yet.
	GetConversationState(ctx context.Context, botID int64, contact string) (*ConversationState, error)
	// SaveConversationState creates or updates the pointer and reports
	// whether a new row was created.
	SaveConversationState(ctx context.Context, botID int64, contact string, nodeID int64) (bool, error)

	// Backups
	InsertBackup(ctx context.Context, b *Backup) error
	// ListBackups returns snapshot metadata (no payload) sorted by
	// version descending.
	ListBackups(ctx context.Context, botID int64) ([]Backup, error)
	// GetBackup returns ErrBackupNotFound if the id is unknown or the
	// backup belongs to a different bot.
	GetBackup(ctx context.Context, botID int64, backupID string) (*Backup, error)
}

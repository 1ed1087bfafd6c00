package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/botflow"
)

// GetConversationState returns the traversal pointer for a contact,
// or nil when the contact has no state yet.
func (s *PGStore) GetConversationState(ctx context.Context, botID int64, contact string) (*botflow.ConversationState, error) {
	var st botflow.ConversationState
	err := s.db.QueryRow(ctx,
		`SELECT id, bot_id, contact_identifier, current_node_id, created_at, updated_at
		 FROM conversation_states
		 WHERE bot_id = $1 AND contact_identifier = $2`,
		botID, contact,
	).Scan(&st.ID, &st.BotID, &st.Contact, &st.CurrentNodeID, &st.CreatedAt, &st.UpdatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("botflow: get conversation state: %w", err)
	}

	return &st, nil
}

// SaveConversationState upserts the traversal pointer and reports
// whether a new row was created. xmax is zero only for freshly
// inserted tuples, which distinguishes insert from update.
func (s *PGStore) SaveConversationState(ctx context.Context, botID int64, contact string, nodeID int64) (bool, error) {
	var created bool
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversation_states (bot_id, contact_identifier, current_node_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (bot_id, contact_identifier)
		 DO UPDATE SET current_node_id = EXCLUDED.current_node_id, updated_at = NOW()
		 RETURNING (xmax = 0)`,
		botID, contact, nodeID,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("botflow: save conversation state: %w", err)
	}

	return created, nil
}

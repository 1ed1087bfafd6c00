package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/meikuraledutech/botflow"
)

// GetConversationState returns the traversal pointer for a contact,
// or nil when the contact has no state yet.
func (s *SQLiteStore) GetConversationState(ctx context.Context, botID int64, contact string) (*botflow.ConversationState, error) {
	var st botflow.ConversationState
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, bot_id, contact_identifier, current_node_id, created_at, updated_at
		 FROM conversation_states
		 WHERE bot_id = ? AND contact_identifier = ?`,
		botID, contact,
	).Scan(&st.ID, &st.BotID, &st.Contact, &st.CurrentNodeID, &createdAt, &updatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("botflow: get conversation state: %w", err)
	}

	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

// SaveConversationState upserts the traversal pointer and reports
// whether a new row was created.
func (s *SQLiteStore) SaveConversationState(ctx context.Context, botID int64, contact string, nodeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := fmtTime(time.Now().UTC())

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET current_node_id = ?, updated_at = ?
		 WHERE bot_id = ? AND contact_identifier = ?`,
		nodeID, now, botID, contact)
	if err != nil {
		return false, fmt.Errorf("botflow: save conversation state: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_states (bot_id, contact_identifier, current_node_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		botID, contact, nodeID, now, now); err != nil {
		return false, fmt.Errorf("botflow: save conversation state: %w", err)
	}

	return true, nil
}

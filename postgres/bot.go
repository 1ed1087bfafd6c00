package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/botflow"
)

// CreateBot inserts a bot row and returns its storage id.
func (s *PGStore) CreateBot(ctx context.Context, bot *botflow.Bot) (int64, error) {
	menu := bot.MenuOptions
	if menu == nil {
		menu = []botflow.MenuOption{}
	}
	menuJSON, err := json.Marshal(menu)
	if err != nil {
		return 0, fmt.Errorf("botflow: marshal menu options: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO bots (name, tone, initial_message, menu_options, is_webchat_enabled)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		bot.Name, bot.Tone, bot.InitialMessage, menuJSON, bot.WebchatEnabled,
	).Scan(&bot.ID, &bot.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("botflow: insert bot: %w", err)
	}

	return bot.ID, nil
}

// GetBot fetches a bot by id.
// Returns ErrBotNotFound if it doesn't exist.
func (s *PGStore) GetBot(ctx context.Context, botID int64) (*botflow.Bot, error) {
	var b botflow.Bot
	var menuJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, name, tone, initial_message, menu_options, is_webchat_enabled,
		        conversation_count, message_count, created_at
		 FROM bots WHERE id = $1`, botID,
	).Scan(&b.ID, &b.Name, &b.Tone, &b.InitialMessage, &menuJSON, &b.WebchatEnabled,
		&b.ConversationCount, &b.MessageCount, &b.CreatedAt)

	if err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBotNotFound
		}
		return nil, fmt.Errorf("botflow: get bot: %w", err)
	}

	if len(menuJSON) > 0 {
		if err := json.Unmarshal(menuJSON, &b.MenuOptions); err != nil {
			return nil, fmt.Errorf("botflow: unmarshal menu options: %w", err)
		}
	}

	return &b, nil
}

// RenameBot updates a bot's display name.
func (s *PGStore) RenameBot(ctx context.Context, botID int64, name string) error {
	ct, err := s.db.Exec(ctx, `UPDATE bots SET name = $1 WHERE id = $2`, name, botID)
	if err != nil {
		return fmt.Errorf("botflow: rename bot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return botflow.ErrBotNotFound
	}
	return nil
}

// BumpCounters adds to the bot's message and conversation counters.
func (s *PGStore) BumpCounters(ctx context.Context, botID int64, messages, conversations int64) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE bots
		 SET message_count = message_count + $1,
		     conversation_count = conversation_count + $2
		 WHERE id = $3`,
		messages, conversations, botID)
	if err != nil {
		return fmt.Errorf("botflow: bump counters: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return botflow.ErrBotNotFound
	}
	return nil
}

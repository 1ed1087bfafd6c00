package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meikuraledutech/botflow"
)

func (s *SQLiteStore) CreateBot(ctx context.Context, bot *botflow.Bot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	menu := bot.MenuOptions
	if menu == nil {
		menu = []botflow.MenuOption{}
	}
	menuJSON, err := json.Marshal(menu)
	if err != nil {
		return 0, fmt.Errorf("botflow: marshal menu options: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bots (name, tone, initial_message, menu_options, is_webchat_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bot.Name, bot.Tone, bot.InitialMessage, string(menuJSON), bot.WebchatEnabled, fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("botflow: insert bot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("botflow: insert bot: %w", err)
	}
	bot.ID = id
	bot.CreatedAt = now

	return id, nil
}

func (s *SQLiteStore) GetBot(ctx context.Context, botID int64) (*botflow.Bot, error) {
	var b botflow.Bot
	var menuJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tone, initial_message, menu_options, is_webchat_enabled,
		        conversation_count, message_count, created_at
		 FROM bots WHERE id = ?`, botID,
	).Scan(&b.ID, &b.Name, &b.Tone, &b.InitialMessage, &menuJSON, &b.WebchatEnabled,
		&b.ConversationCount, &b.MessageCount, &createdAt)

	if err != nil {
		if isNoRows(err) {
			return nil, botflow.ErrBotNotFound
		}
		return nil, fmt.Errorf("botflow: get bot: %w", err)
	}

	b.CreatedAt = parseTime(createdAt)
	if menuJSON != "" {
		if err := json.Unmarshal([]byte(menuJSON), &b.MenuOptions); err != nil {
			return nil, fmt.Errorf("botflow: unmarshal menu options: %w", err)
		}
	}

	return &b, nil
}

func (s *SQLiteStore) RenameBot(ctx context.Context, botID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE bots SET name = ? WHERE id = ?`, name, botID)
	if err != nil {
		return fmt.Errorf("botflow: rename bot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return botflow.ErrBotNotFound
	}
	return nil
}

func (s *SQLiteStore) BumpCounters(ctx context.Context, botID int64, messages, conversations int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE bots
		 SET message_count = message_count + ?,
		     conversation_count = conversation_count + ?
		 WHERE id = ?`,
		messages, conversations, botID)
	if err != nil {
		return fmt.Errorf("botflow: bump counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return botflow.ErrBotNotFound
	}
	return nil
}

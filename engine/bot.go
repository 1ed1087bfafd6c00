package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/meikuraledutech/botflow"
)

// CreateBot inserts a bot and expands its menu options into
// menu_option nodes with contiguous legacy positions, so a bot answers
// its quick replies before anyone opens the editor.
func (e *Engine) CreateBot(ctx context.Context, bot *botflow.Bot) (*botflow.Bot, error) {
	if _, err := e.store.CreateBot(ctx, bot); err != nil {
		return nil, err
	}

	for i, opt := range bot.MenuOptions {
		node := &botflow.Node{
			BotID:    bot.ID,
			Kind:     botflow.KindMenuOption,
			Trigger:  strings.ToLower(opt.Label),
			Response: fmt.Sprintf("Has seleccionado %s. ¿Cómo puedo ayudarte con esto?", opt.Label),
			Position: i,
		}
		if _, err := e.store.AddNode(ctx, node); err != nil {
			return nil, fmt.Errorf("botflow: expand menu option %q: %w", opt.Label, err)
		}
	}

	e.log.Info("bot created",
		"bot_id", bot.ID,
		"name", bot.Name,
		"menu_options", len(bot.MenuOptions),
	)

	return bot, nil
}

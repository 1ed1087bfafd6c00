package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/meikuraledutech/botflow"
	"github.com/meikuraledutech/botflow/memory"
	"github.com/meikuraledutech/botflow/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) botflow.Store {
		return memory.New()
	})
}

func TestMemStore_DropSchema(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	id, err := s.CreateBot(ctx, &botflow.Bot{Name: "bot"})
	require.NoError(t, err)

	require.NoError(t, s.DropSchema(ctx))
	_, err = s.GetBot(ctx, id)
	assert.ErrorIs(t, err, botflow.ErrBotNotFound)
}

func TestMemStore_ConcurrentChatTraffic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	botID, err := s.CreateBot(ctx, &botflow.Bot{Name: "bot"})
	require.NoError(t, err)

	_, err = s.ReplaceGraph(ctx, botID, botflow.GraphPayload{
		Nodes: []botflow.NodePayload{{ID: "node-a", Type: "start"}},
		Edges: []botflow.EdgePayload{},
	})
	require.NoError(t, err)

	const contacts = 50
	var wg sync.WaitGroup
	wg.Add(contacts)
	for i := 0; i < contacts; i++ {
		go func(i int) {
			defer wg.Done()
			contact := fmt.Sprintf("+54911%08d", i)
			for j := 0; j < 20; j++ {
				_, _ = s.GetConversationState(ctx, botID, contact)
				_, _ = s.SaveConversationState(ctx, botID, contact, int64(j+1))
				_ = s.BumpCounters(ctx, botID, 1, 0)
				_, _ = s.LoadGraph(ctx, botID)
			}
		}(i)
	}
	wg.Wait()

	bot, err := s.GetBot(ctx, botID)
	require.NoError(t, err)
	assert.Equal(t, int64(contacts*20), bot.MessageCount)
}

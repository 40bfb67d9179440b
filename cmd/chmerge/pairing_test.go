package main

import (
	"testing"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestPairChats_MatchesByTypeAndName(t *testing.T) {
	master := []model.Chat{
		{ID: 1, Type: model.ChatTypePersonal, Name: strp("Alice")},
		{ID: 2, Type: model.ChatTypePrivateGroup, Name: strp("Team")},
	}
	slave := []model.Chat{
		{ID: 10, Type: model.ChatTypePersonal, Name: strp("alice")},
		{ID: 20, Type: model.ChatTypePersonal, Name: strp("Bob")},
	}

	pairs := pairChats(master, slave)
	assert.Equal(t, []pairOfIDs{{1, 10}}, toIDPairs(pairs))
}

func TestPairChats_EachSlaveChatUsedOnce(t *testing.T) {
	master := []model.Chat{
		{ID: 1, Type: model.ChatTypePersonal, Name: strp("Alice")},
		{ID: 2, Type: model.ChatTypePersonal, Name: strp("Alice")},
	}
	slave := []model.Chat{
		{ID: 10, Type: model.ChatTypePersonal, Name: strp("Alice")},
	}

	pairs := pairChats(master, slave)
	assert.Len(t, pairs, 1)
}

func TestPairChats_NoMatchOnNilName(t *testing.T) {
	master := []model.Chat{{ID: 1, Type: model.ChatTypePersonal}}
	slave := []model.Chat{{ID: 10, Type: model.ChatTypePersonal}}

	pairs := pairChats(master, slave)
	assert.Empty(t, pairs)
}

type pairOfIDs struct {
	Master, Slave model.ChatID
}

func toIDPairs(pairs []merge.ChatPair) []pairOfIDs {
	out := make([]pairOfIDs, len(pairs))
	for i, p := range pairs {
		out[i] = pairOfIDs{p.MasterChatID, p.SlaveChatID}
	}
	return out
}

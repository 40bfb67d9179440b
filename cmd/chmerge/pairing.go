package main

import (
	"strings"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
)

// pairChats heuristically matches master and slave chats for Analyze: a
// pair is formed when a master and a slave chat share a type and a
// case-folded name, with each side consumed at most once. Chats analyze
// doesn't see a pair for still get a decision, just Keep/Add instead of
// Combine, so an unmatched chat is never silently dropped.
func pairChats(masterChats, slaveChats []model.Chat) []merge.ChatPair {
	usedSlave := make(map[model.ChatID]bool, len(slaveChats))
	var pairs []merge.ChatPair
	for _, mc := range masterChats {
		for _, sc := range slaveChats {
			if usedSlave[sc.ID] {
				continue
			}
			if mc.Type == sc.Type && sameChatName(mc.Name, sc.Name) {
				usedSlave[sc.ID] = true
				pairs = append(pairs, merge.ChatPair{MasterChatID: mc.ID, SlaveChatID: sc.ID})
				break
			}
		}
	}
	return pairs
}

func sameChatName(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(*a, *b)
}

// Package merge is the public API surface of the merge engine (spec §6):
// Analyze diffs a master/slave dataset pair into ChatMergeOptions, Merge
// executes a reviewed set of options against a target DAO. The option and
// decision types are aliases of internal/mergeexec's so a caller never
// needs to import the internal package to build or inspect them.
package merge

import (
	"github.com/frozenspider/chat-history-manager-backend/internal/mergeexec"
	"github.com/frozenspider/chat-history-manager-backend/model"
)

type (
	UserLabel             = mergeexec.UserLabel
	UserMergeOption       = mergeexec.UserMergeOption
	ChatLabel             = mergeexec.ChatLabel
	ChatMergeOption       = mergeexec.ChatMergeOption
	DecisionLabel         = mergeexec.DecisionLabel
	MessagesMergeDecision = mergeexec.MessagesMergeDecision
	Progress              = mergeexec.Progress
	Summary               = mergeexec.Summary
)

// NullProgress discards every progress callback.
type NullProgress = mergeexec.NullProgress

const (
	UserKeep    = mergeexec.UserKeep
	UserAdd     = mergeexec.UserAdd
	UserReplace = mergeexec.UserReplace

	ChatKeep    = mergeexec.ChatKeep
	ChatAdd     = mergeexec.ChatAdd
	ChatCombine = mergeexec.ChatCombine

	DecisionRetain      = mergeexec.DecisionRetain
	DecisionAdd         = mergeexec.DecisionAdd
	DecisionReplace     = mergeexec.DecisionReplace
	DecisionDontReplace = mergeexec.DecisionDontReplace
	DecisionMatch       = mergeexec.DecisionMatch
)

// ChatPair names a chat present in both datasets, to be analyzed together
// into a ChatCombine option.
type ChatPair struct {
	MasterChatID model.ChatID
	SlaveChatID  model.ChatID
}

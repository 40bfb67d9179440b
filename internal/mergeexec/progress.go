package mergeexec

import "github.com/frozenspider/chat-history-manager-backend/model"

// Progress receives callbacks as Execute works through a merge, mirroring
// the wesm-msgvault importer's ImportProgress callback interface. A nil
// Executor.Progress field is treated as NullProgress{}.
type Progress interface {
	OnChatStart(chatID model.ChatID, label string)
	// OnSegment reports one resolved decision applied while combining a
	// chat: segmentLabel is one of "match"/"retain"/"add"/"replace"/
	// "dont_replace", count is the number of messages it carried.
	OnSegment(segmentLabel string, count int)
	OnChatComplete(chatID model.ChatID)
	// OnComplete fires once after every chat in the run has been
	// reconciled, carrying the same Summary LastSummary would return.
	OnComplete(summary Summary)
	OnError(err error)
}

// NullProgress discards every callback. It is the Executor default.
type NullProgress struct{}

func (NullProgress) OnChatStart(model.ChatID, string) {}
func (NullProgress) OnSegment(string, int)            {}
func (NullProgress) OnChatComplete(model.ChatID)      {}
func (NullProgress) OnComplete(Summary)               {}
func (NullProgress) OnError(error)                    {}

// Summary totals what a single Execute call did, returned to the caller
// alongside the new dataset id so a CLI or admin endpoint can report it
// without re-deriving it from the target DAO. Modeled on wesm-msgvault's
// ImportSummary.
type Summary struct {
	ChatsMerged              int
	MessagesCopiedFromMaster int
	MessagesCopiedFromSlave  int
	FilesCopied              int
	ConflictsReplaced        int
	ConflictsKept            int
}

func (s *Summary) addMessages(root string, masterRoot string, n int) {
	if root == masterRoot {
		s.MessagesCopiedFromMaster += n
	} else {
		s.MessagesCopiedFromSlave += n
	}
}

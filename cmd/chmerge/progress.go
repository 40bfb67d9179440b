package main

import (
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/internal/metrics"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
)

// cliProgress prints merge.Progress callbacks to stdout, one line per
// event, for a human watching the terminal during a synchronous merge run.
type cliProgress struct{}

func (cliProgress) OnChatStart(chatID model.ChatID, label string) {
	fmt.Printf("chat %s (#%d): merging...\n", label, chatID)
}

func (cliProgress) OnSegment(segmentLabel string, count int) {
	fmt.Printf("  %s: %d messages\n", segmentLabel, count)
	metrics.IncrementSegmentsEmitted(segmentLabel, count)
}

func (cliProgress) OnChatComplete(chatID model.ChatID) {
	fmt.Printf("chat #%d: done\n", chatID)
}

func (cliProgress) OnComplete(summary merge.Summary) {
	fmt.Printf("merge complete: %d chats, %d+%d messages copied, %d files, %d conflicts replaced, %d kept\n",
		summary.ChatsMerged, summary.MessagesCopiedFromMaster, summary.MessagesCopiedFromSlave,
		summary.FilesCopied, summary.ConflictsReplaced, summary.ConflictsKept)
	metrics.AddFilesCopied(summary.FilesCopied)
}

func (cliProgress) OnError(err error) {
	fmt.Printf("error: %v\n", err)
}

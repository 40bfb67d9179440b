// Package mergeexec implements the merge executor (spec §4.4): it takes a
// reviewed set of user/chat merge decisions and writes the result to a
// target DAO, handling personal-chat renaming, member-name fixup, and
// backup bracketing.
package mergeexec

import (
	"github.com/frozenspider/chat-history-manager-backend/internal/diff"
	"github.com/frozenspider/chat-history-manager-backend/model"
)

// UserLabel tags how a user should be carried into the merged dataset.
type UserLabel int

const (
	UserKeep UserLabel = iota
	UserAdd
	UserReplace
)

// UserMergeOption decides the fate of one user across master and slave.
type UserMergeOption struct {
	Label  UserLabel
	Master *model.User
	Slave  *model.User
}

// ChatLabel tags how a chat should be carried into the merged dataset.
type ChatLabel int

const (
	ChatKeep ChatLabel = iota
	ChatAdd
	ChatCombine
)

// ChatMergeOption decides the fate of one chat. Resolutions is only
// populated for ChatCombine.
type ChatMergeOption struct {
	Label       ChatLabel
	Master      *model.Chat
	Slave       *model.Chat
	Resolutions []MessagesMergeDecision
}

// chatIdentity returns the chat id and a human label for progress
// reporting, preferring whichever side's metadata is present.
func (o ChatMergeOption) chatIdentity() (model.ChatID, string) {
	c := o.Master
	if c == nil {
		c = o.Slave
	}
	if c == nil {
		return 0, "?"
	}
	return c.ID, chatLabel(*c)
}

// DecisionLabel mirrors a diff.Label, plus the user-overridable
// DontReplace variant: a Replace segment the caller chose to resolve in
// master's favor instead of the default slave-wins.
type DecisionLabel int

const (
	DecisionRetain DecisionLabel = iota
	DecisionAdd
	DecisionReplace
	DecisionDontReplace
	DecisionMatch
)

// MessagesMergeDecision is one entry of a Combine resolution list.
type MessagesMergeDecision struct {
	Label                                          DecisionLabel
	FirstMaster, LastMaster, FirstSlave, LastSlave *model.Message
}

// DecisionFromSegment applies spec §4.4's default resolution: Replace
// segments default to slave-wins (DecisionReplace); everything else maps
// onto its same-named decision.
func DecisionFromSegment(seg diff.Segment) MessagesMergeDecision {
	d := MessagesMergeDecision{
		FirstMaster: seg.FirstMaster, LastMaster: seg.LastMaster,
		FirstSlave: seg.FirstSlave, LastSlave: seg.LastSlave,
	}
	switch seg.Label {
	case diff.Match:
		d.Label = DecisionMatch
	case diff.Retain:
		d.Label = DecisionRetain
	case diff.Add:
		d.Label = DecisionAdd
	case diff.Replace:
		d.Label = DecisionReplace
	}
	return d
}

package mergeexec

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/internal/mergeerr"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/frozenspider/chat-history-manager-backend/stream"
)

// taggedMessage pairs a message ready for insertion with the dataset root
// its referenced files should be copied from.
type taggedMessage struct {
	msg  model.Message
	root string
}

func (e *Executor) reconcileChat(
	ctx context.Context,
	opt ChatMergeOption,
	fc model.FileComparator,
	masterDAO storage.DAO, masterDS model.DatasetID, masterRoot string,
	slaveDAO storage.DAO, slaveDS model.DatasetID, slaveRoot string,
	target storage.DAO, newDS model.DatasetID,
	finalByID map[model.UserID]model.User, selfID model.UserID,
	remap map[model.UserID]model.UserID, nameIndex map[string]string,
) error {
	switch opt.Label {
	case ChatKeep:
		return e.copyWholeChat(ctx, opt.Master, masterDAO, masterDS, masterRoot, target, newDS, finalByID, selfID, nil, nameIndex, true)
	case ChatAdd:
		return e.copyWholeChat(ctx, opt.Slave, slaveDAO, slaveDS, slaveRoot, target, newDS, finalByID, selfID, remap, nameIndex, false)
	case ChatCombine:
		return e.combineChat(ctx, opt, fc, masterDAO, masterDS, masterRoot, slaveDAO, slaveDS, slaveRoot, target, newDS, finalByID, selfID, remap, nameIndex)
	default:
		return fmt.Errorf("unknown chat label %d", opt.Label)
	}
}

// copyWholeChat handles ChatKeep/ChatAdd: copy every message of one source
// chat into target, batch by batch, fixing up member-name and from_id
// fields as it goes.
func (e *Executor) copyWholeChat(
	ctx context.Context,
	src *model.Chat,
	srcDAO storage.DAO, srcDS model.DatasetID, srcRoot string,
	target storage.DAO, newDS model.DatasetID,
	finalByID map[model.UserID]model.User, selfID model.UserID,
	remap map[model.UserID]model.UserID, nameIndex map[string]string,
	fromMaster bool,
) error {
	if src == nil {
		return fmt.Errorf("chat option missing its source chat")
	}
	chat := *src
	chat.DatasetID = newDS
	chat.MemberIDs = remapUserIDs(chat.MemberIDs, remap)
	renamePersonalChat(&chat, finalByID, selfID)

	if err := validateMembers(chat.ID, chat.MemberIDs, finalByID); err != nil {
		return err
	}
	if err := target.InsertChat(ctx, srcRoot, chat); err != nil {
		return fmt.Errorf("inserting chat %q: %w", chatLabel(chat), err)
	}

	ref := storage.ChatRef{DatasetID: srcDS, ChatID: src.ID}
	targetRef := storage.ChatRef{DatasetID: newDS, ChatID: chat.ID}
	for batch, err := range stream.New(srcDAO, ref, stream.DefaultBatchSize).Batches(ctx) {
		if err != nil {
			return fmt.Errorf("reading chat %q: %w", chatLabel(chat), err)
		}
		fixed := fixupMessages(batch, nameIndex, remap)
		if err := target.InsertMessages(ctx, srcRoot, targetRef, fixed); err != nil {
			return fmt.Errorf("inserting messages into chat %q: %w", chatLabel(chat), err)
		}
		if fromMaster {
			e.summary.MessagesCopiedFromMaster += len(fixed)
		} else {
			e.summary.MessagesCopiedFromSlave += len(fixed)
		}
		e.summary.FilesCopied += countFileRefs(fixed)
	}
	return nil
}

// countFileRefs counts how many of msgs reference at least one file, for
// Summary.FilesCopied. A message with both a content path and a thumbnail
// still counts once: the DAO copies both as part of the same InsertMessages
// call, so "files copied" here tracks messages carrying a copy, not paths.
func countFileRefs(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if path, thumb, ok := model.ContentPaths(m.Typed); ok && (path != nil || thumb != nil) {
			n++
		}
	}
	return n
}

// combineChat handles ChatCombine: walk the resolution list and, for each
// decision, copy the appropriate message range, zipping Match ranges by
// per-message file presence (spec §4.4).
func (e *Executor) combineChat(
	ctx context.Context,
	opt ChatMergeOption,
	fc model.FileComparator,
	masterDAO storage.DAO, masterDS model.DatasetID, masterRoot string,
	slaveDAO storage.DAO, slaveDS model.DatasetID, slaveRoot string,
	target storage.DAO, newDS model.DatasetID,
	finalByID map[model.UserID]model.User, selfID model.UserID,
	remap map[model.UserID]model.UserID, nameIndex map[string]string,
) error {
	base := opt.Master
	baseRoot := masterRoot
	if base == nil {
		base = opt.Slave
		baseRoot = slaveRoot
	}
	if base == nil {
		return fmt.Errorf("combine option missing both Master and Slave chat metadata")
	}
	chat := *base
	chat.DatasetID = newDS
	memberSet := make(map[model.UserID]bool)
	var members []model.UserID
	for _, id := range chat.MemberIDs {
		if !memberSet[id] {
			memberSet[id] = true
			members = append(members, id)
		}
	}
	if opt.Slave != nil {
		for _, id := range remapUserIDs(opt.Slave.MemberIDs, remap) {
			if !memberSet[id] {
				memberSet[id] = true
				members = append(members, id)
			}
		}
	}
	chat.MemberIDs = members
	renamePersonalChat(&chat, finalByID, selfID)

	if err := validateMembers(chat.ID, chat.MemberIDs, finalByID); err != nil {
		return err
	}
	if err := target.InsertChat(ctx, baseRoot, chat); err != nil {
		return fmt.Errorf("inserting chat %q: %w", chatLabel(chat), err)
	}

	masterRef := storage.ChatRef{DatasetID: masterDS, ChatID: chatIDOr(opt.Master)}
	slaveRef := storage.ChatRef{DatasetID: slaveDS, ChatID: chatIDOr(opt.Slave)}
	targetRef := storage.ChatRef{DatasetID: newDS, ChatID: chat.ID}

	var tagged []taggedMessage
	for _, d := range opt.Resolutions {
		batch, err := e.resolveDecision(ctx, d, fc, masterDAO, masterRef, masterRoot, slaveDAO, slaveRef, slaveRoot)
		if err != nil {
			return fmt.Errorf("resolving decision in chat %q: %w", chatLabel(chat), err)
		}
		tagged = append(tagged, batch...)
		switch d.Label {
		case DecisionReplace:
			e.summary.ConflictsReplaced++
		case DecisionDontReplace:
			e.summary.ConflictsKept++
		}
		e.progress().OnSegment(decisionSegmentLabel(d.Label), len(batch))
	}

	return e.flushRuns(ctx, target, targetRef, tagged, remap, nameIndex, masterRoot)
}

// validateMembers fails with a data integrity error if memberIDs names a
// user absent from finalByID (spec §7's "chat member set referencing
// unknown users" fatal case). It must run after remapping and before the
// chat is inserted, since a dangling reference would otherwise be written
// silently.
func validateMembers(chatID model.ChatID, memberIDs []model.UserID, finalByID map[model.UserID]model.User) error {
	for _, id := range memberIDs {
		if _, ok := finalByID[id]; !ok {
			return mergeerr.NewDataIntegrityError(chatID, "chat member %d not present among merged users", id)
		}
	}
	return nil
}

func chatIDOr(c *model.Chat) model.ChatID {
	if c == nil {
		return 0
	}
	return c.ID
}

// decisionSegmentLabel names a resolved decision for progress reporting,
// matching the diff engine's own Match/Retain/Add/Replace vocabulary.
func decisionSegmentLabel(l DecisionLabel) string {
	switch l {
	case DecisionRetain:
		return "retain"
	case DecisionAdd:
		return "add"
	case DecisionReplace:
		return "replace"
	case DecisionDontReplace:
		return "dont_replace"
	case DecisionMatch:
		return "match"
	default:
		return "unknown"
	}
}

// resolveDecision returns the tagged messages one MessagesMergeDecision
// contributes, per spec §4.4's Combine rules.
func (e *Executor) resolveDecision(
	ctx context.Context,
	d MessagesMergeDecision,
	fc model.FileComparator,
	masterDAO storage.DAO, masterRef storage.ChatRef, masterRoot string,
	slaveDAO storage.DAO, slaveRef storage.ChatRef, slaveRoot string,
) ([]taggedMessage, error) {
	switch d.Label {
	case DecisionRetain, DecisionDontReplace:
		msgs, err := masterDAO.MessagesBetween(ctx, masterRef, *d.FirstMaster, *d.LastMaster)
		if err != nil {
			return nil, err
		}
		return tagAll(msgs, masterRoot), nil
	case DecisionAdd, DecisionReplace:
		msgs, err := slaveDAO.MessagesBetween(ctx, slaveRef, *d.FirstSlave, *d.LastSlave)
		if err != nil {
			return nil, err
		}
		return tagAll(msgs, slaveRoot), nil
	case DecisionMatch:
		masterMsgs, err := masterDAO.MessagesBetween(ctx, masterRef, *d.FirstMaster, *d.LastMaster)
		if err != nil {
			return nil, err
		}
		slaveMsgs, err := slaveDAO.MessagesBetween(ctx, slaveRef, *d.FirstSlave, *d.LastSlave)
		if err != nil {
			return nil, err
		}
		if len(masterMsgs) != len(slaveMsgs) {
			return nil, fmt.Errorf("match segment length mismatch: master=%d slave=%d", len(masterMsgs), len(slaveMsgs))
		}
		out := make([]taggedMessage, len(masterMsgs))
		for i := range masterMsgs {
			masterOK, err := filesExist(fc, masterMsgs[i], masterRoot)
			if err != nil {
				return nil, err
			}
			if masterOK {
				out[i] = taggedMessage{masterMsgs[i], masterRoot}
			} else {
				out[i] = taggedMessage{slaveMsgs[i], slaveRoot}
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unresolved decision label %d", d.Label)
	}
}

func tagAll(msgs []model.Message, root string) []taggedMessage {
	out := make([]taggedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = taggedMessage{m, root}
	}
	return out
}

// filesExist reports whether every file a message references exists under
// root; a message with no file references vacuously passes.
func filesExist(fc model.FileComparator, msg model.Message, root string) (bool, error) {
	path, thumb, ok := model.ContentPaths(msg.Typed)
	if !ok {
		return true, nil
	}
	if path != nil {
		exists, err := fc.Exists(model.FileRef{Root: root, Path: path})
		if err != nil || !exists {
			return false, err
		}
	}
	if thumb != nil {
		exists, err := fc.Exists(model.FileRef{Root: root, Path: thumb})
		if err != nil || !exists {
			return false, err
		}
	}
	return true, nil
}

// flushRuns segments tagged messages into maximal runs of equal root and
// inserts each run in one DAO call, for efficient bulk file copy.
func (e *Executor) flushRuns(ctx context.Context, target storage.DAO, ref storage.ChatRef, tagged []taggedMessage, remap map[model.UserID]model.UserID, nameIndex map[string]string, masterRoot string) error {
	i := 0
	for i < len(tagged) {
		root := tagged[i].root
		j := i + 1
		for j < len(tagged) && tagged[j].root == root {
			j++
		}
		run := make([]model.Message, j-i)
		for k := range run {
			run[k] = tagged[i+k].msg
		}
		fixed := fixupMessages(run, nameIndex, remap)
		if err := target.InsertMessages(ctx, root, ref, fixed); err != nil {
			return err
		}
		e.summary.addMessages(root, masterRoot, len(fixed))
		e.summary.FilesCopied += countFileRefs(fixed)
		i = j
	}
	return nil
}

// fixupMessages returns copies of msgs with from_id remapped into the
// target user-id space and service member lists rewritten to post-merge
// pretty names (spec §4.4), ready for insertion.
func fixupMessages(msgs []model.Message, nameIndex map[string]string, remap map[model.UserID]model.UserID) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m.InternalID = model.NoInternalID
		if remap != nil {
			if newID, ok := remap[m.FromID]; ok {
				m.FromID = newID
			}
		}
		if ts, ok := m.Typed.(model.TypedService); ok {
			if members, ok := model.ServiceMembers(ts.Content); ok {
				rewritten := make([]string, len(members))
				for j, name := range members {
					if mapped, ok := nameIndex[name]; ok {
						rewritten[j] = mapped
					} else {
						rewritten[j] = name
					}
				}
				if newContent, ok := model.WithServiceMembers(ts.Content, rewritten); ok {
					m.Typed = model.TypedService{Content: newContent}
				}
			}
		}
		out[i] = m
	}
	return out
}

func remapUserIDs(ids []model.UserID, remap map[model.UserID]model.UserID) []model.UserID {
	if remap == nil {
		return ids
	}
	out := make([]model.UserID, len(ids))
	for i, id := range ids {
		if newID, ok := remap[id]; ok {
			out[i] = newID
		} else {
			out[i] = id
		}
	}
	return out
}

// renamePersonalChat implements spec §4.4's personal-chat naming rule.
func renamePersonalChat(chat *model.Chat, finalByID map[model.UserID]model.User, selfID model.UserID) {
	if chat.Type != model.ChatTypePersonal {
		return
	}
	nonSelfID, ok := chat.NonSelfMember(selfID)
	if !ok {
		return
	}
	if u, ok := finalByID[nonSelfID]; ok {
		name := u.PrettyName()
		chat.Name = &name
	}
}

func chatLabel(c model.Chat) string {
	if c.Name != nil {
		return *c.Name
	}
	return fmt.Sprintf("#%d", c.ID)
}

package merge

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/internal/diff"
	"github.com/frozenspider/chat-history-manager-backend/internal/mergeexec"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/frozenspider/chat-history-manager-backend/stream"
	"github.com/sirupsen/logrus"
)

// Analyze runs the diff engine over every pair in chatPairs and returns the
// complete ChatMergeOption list for the dataset pair: a ChatCombine entry
// (with resolutions filled in) for each pair, plus a ChatKeep for every
// master chat not named by a pair and a ChatAdd for every slave chat not
// named by a pair, so the caller always gets a decision for every chat
// (spec §6; the explicit chat_pairs argument is taken to name only the
// chats the caller wants compared, mirroring how user reconciliation
// augments an explicit list with an implicit Keep for everything else).
func Analyze(
	ctx context.Context,
	logger *logrus.Logger,
	fc model.FileComparator,
	masterDAO storage.DAO,
	masterDS model.DatasetID,
	slaveDAO storage.DAO,
	slaveDS model.DatasetID,
	chatPairs []ChatPair,
) ([]ChatMergeOption, error) {
	masterChats, err := masterDAO.Chats(ctx, masterDS)
	if err != nil {
		return nil, fmt.Errorf("loading master chats: %w", err)
	}
	slaveChats, err := slaveDAO.Chats(ctx, slaveDS)
	if err != nil {
		return nil, fmt.Errorf("loading slave chats: %w", err)
	}
	masterRoot, err := masterDAO.DatasetRoot(ctx, masterDS)
	if err != nil {
		return nil, fmt.Errorf("resolving master dataset root: %w", err)
	}
	slaveRoot, err := slaveDAO.DatasetRoot(ctx, slaveDS)
	if err != nil {
		return nil, fmt.Errorf("resolving slave dataset root: %w", err)
	}

	masterByID := make(map[model.ChatID]model.Chat, len(masterChats))
	for _, c := range masterChats {
		masterByID[c.ID] = c
	}
	slaveByID := make(map[model.ChatID]model.Chat, len(slaveChats))
	for _, c := range slaveChats {
		slaveByID[c.ID] = c
	}

	pairedMaster := make(map[model.ChatID]bool, len(chatPairs))
	pairedSlave := make(map[model.ChatID]bool, len(chatPairs))

	var options []ChatMergeOption
	for _, pair := range chatPairs {
		mc, ok := masterByID[pair.MasterChatID]
		if !ok {
			return nil, fmt.Errorf("master chat %d named in chat pair not found", pair.MasterChatID)
		}
		sc, ok := slaveByID[pair.SlaveChatID]
		if !ok {
			return nil, fmt.Errorf("slave chat %d named in chat pair not found", pair.SlaveChatID)
		}
		pairedMaster[pair.MasterChatID] = true
		pairedSlave[pair.SlaveChatID] = true

		if logger != nil {
			logger.WithFields(logrus.Fields{"master_chat": mc.ID, "slave_chat": sc.ID}).Debug("analyzing chat pair")
		}
		resolutions, err := combineChat(ctx, fc,
			masterDAO, storage.ChatRef{DatasetID: masterDS, ChatID: mc.ID}, masterRoot,
			slaveDAO, storage.ChatRef{DatasetID: slaveDS, ChatID: sc.ID}, slaveRoot)
		if err != nil {
			return nil, fmt.Errorf("combining chat %d/%d: %w", mc.ID, sc.ID, err)
		}
		mcCopy, scCopy := mc, sc
		options = append(options, ChatMergeOption{Label: ChatCombine, Master: &mcCopy, Slave: &scCopy, Resolutions: resolutions})
	}

	for _, mc := range masterChats {
		if !pairedMaster[mc.ID] {
			mcCopy := mc
			options = append(options, ChatMergeOption{Label: ChatKeep, Master: &mcCopy})
		}
	}
	for _, sc := range slaveChats {
		if !pairedSlave[sc.ID] {
			scCopy := sc
			options = append(options, ChatMergeOption{Label: ChatAdd, Slave: &scCopy})
		}
	}
	return options, nil
}

func combineChat(
	ctx context.Context,
	fc model.FileComparator,
	masterDAO storage.DAO, masterRef storage.ChatRef, masterRoot string,
	slaveDAO storage.DAO, slaveRef storage.ChatRef, slaveRoot string,
) ([]mergeexec.MessagesMergeDecision, error) {
	masterSeq := stream.New(masterDAO, masterRef, stream.DefaultBatchSize).Messages(ctx)
	slaveSeq := stream.New(slaveDAO, slaveRef, stream.DefaultBatchSize).Messages(ctx)

	var decisions []mergeexec.MessagesMergeDecision
	for seg, err := range diff.Diff(ctx, masterRef.ChatID, fc, masterRoot, masterSeq, slaveRoot, slaveSeq) {
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, mergeexec.DecisionFromSegment(seg))
	}
	return decisions, nil
}

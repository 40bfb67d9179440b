package merge

import (
	"context"

	"github.com/frozenspider/chat-history-manager-backend/internal/mergeexec"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/sirupsen/logrus"
)

// Merge executes a reviewed set of user/chat merge decisions against
// target, returning the id of the freshly created dataset plus a summary
// of what was copied (spec §6). progress may be nil.
func Merge(
	ctx context.Context,
	logger *logrus.Logger,
	fc model.FileComparator,
	masterDAO storage.DAO, masterDS model.DatasetID,
	slaveDAO storage.DAO, slaveDS model.DatasetID,
	users []UserMergeOption,
	chats []ChatMergeOption,
	target storage.DAO,
	progress Progress,
) (model.DatasetID, Summary, error) {
	executor := mergeexec.NewExecutor(logger)
	if progress != nil {
		executor.Progress = progress
	}
	newDS, err := executor.Execute(ctx, fc, masterDAO, masterDS, slaveDAO, slaveDS, users, chats, target)
	return newDS, executor.LastSummary(), err
}

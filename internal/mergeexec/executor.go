package mergeexec

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/sirupsen/logrus"
)

// Executor runs the merge executor algorithm of spec §4.4 against a target
// DAO. Its only state between calls is the summary of the most recent
// Execute, so one Executor can run many merges sequentially.
type Executor struct {
	logger   *logrus.Logger
	Progress Progress
	summary  Summary
}

func NewExecutor(logger *logrus.Logger) *Executor {
	return &Executor{logger: logger, Progress: NullProgress{}}
}

// LastSummary reports the Summary of the most recent Execute call. Before
// the first call it is the zero Summary; Execute resets it when it starts
// and adds to it as it goes, so while a call is in flight, or after one
// has failed, it holds the counts reached so far.
func (e *Executor) LastSummary() Summary {
	return e.summary
}

func (e *Executor) progress() Progress {
	if e.Progress == nil {
		return NullProgress{}
	}
	return e.Progress
}

// Execute reconciles users and chats per the given options and writes the
// result into target, returning the freshly minted dataset id.
func (e *Executor) Execute(
	ctx context.Context,
	fc model.FileComparator,
	masterDAO storage.DAO, masterDS model.DatasetID,
	slaveDAO storage.DAO, slaveDS model.DatasetID,
	users []UserMergeOption, chats []ChatMergeOption,
	target storage.DAO,
) (model.DatasetID, error) {
	e.summary = Summary{}
	masterRoot, err := masterDAO.DatasetRoot(ctx, masterDS)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("resolving master dataset root: %w", err)
	}
	slaveRoot, err := slaveDAO.DatasetRoot(ctx, slaveDS)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("resolving slave dataset root: %w", err)
	}

	finalUsers, remap, selfID, err := e.reconcileUsers(ctx, masterDAO, masterDS, users)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("reconciling users: %w", err)
	}
	nameIndex := buildNameIndex(users, finalUsers, remap)

	existingDatasets, err := target.Datasets(ctx)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("listing target datasets: %w", err)
	}
	if len(existingDatasets) > 0 {
		if err := target.Backup(ctx); err != nil {
			return model.DatasetID{}, fmt.Errorf("pre-merge backup: %w", err)
		}
	}
	target.DisableBackups()
	defer target.EnableBackups()

	newDS := model.NewDatasetID()
	masterDatasets, err := masterDAO.Datasets(ctx)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("listing master datasets: %w", err)
	}
	sourceType := ""
	for _, d := range masterDatasets {
		if d.ID == masterDS {
			sourceType = d.SourceType
			break
		}
	}
	if err := target.InsertDataset(ctx, model.Dataset{ID: newDS, Alias: "merged", SourceType: sourceType}); err != nil {
		return model.DatasetID{}, fmt.Errorf("creating target dataset: %w", err)
	}

	finalByID := make(map[model.UserID]model.User, len(finalUsers))
	for _, u := range finalUsers {
		u.DatasetID = newDS
		isSelf := u.ID == selfID
		u.IsSelf = isSelf
		finalByID[u.ID] = u
		if err := target.InsertUser(ctx, newDS, u, isSelf); err != nil {
			return model.DatasetID{}, fmt.Errorf("inserting user %d: %w", u.ID, err)
		}
	}

	for _, opt := range chats {
		chatID, label := opt.chatIdentity()
		e.progress().OnChatStart(chatID, label)
		if err := e.reconcileChat(ctx, opt, fc, masterDAO, masterDS, masterRoot, slaveDAO, slaveDS, slaveRoot, target, newDS, finalByID, selfID, remap, nameIndex); err != nil {
			e.progress().OnError(err)
			return model.DatasetID{}, fmt.Errorf("reconciling chat: %w", err)
		}
		e.summary.ChatsMerged++
		e.progress().OnChatComplete(chatID)
	}

	e.progress().OnComplete(e.summary)
	return newDS, nil
}

// reconcileUsers implements spec §4.4's user reconciliation: the explicit
// list is augmented by a Keep for every master user not mentioned, ids are
// preserved for Keep/Replace, and Add users get a fresh id outside the
// master id space (returned via remap, keyed by the slave-side id).
func (e *Executor) reconcileUsers(ctx context.Context, masterDAO storage.DAO, masterDS model.DatasetID, users []UserMergeOption) (final []model.User, remap map[model.UserID]model.UserID, selfID model.UserID, err error) {
	masterUsers, err := masterDAO.Users(ctx, masterDS)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("loading master users: %w", err)
	}
	covered := make(map[model.UserID]bool, len(users))
	var nextID model.UserID
	for _, u := range masterUsers {
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}

	remap = make(map[model.UserID]model.UserID)
	full := append([]UserMergeOption(nil), users...)
	for _, opt := range full {
		if opt.Master != nil {
			covered[opt.Master.ID] = true
		}
	}
	for _, mu := range masterUsers {
		if !covered[mu.ID] {
			muCopy := mu
			full = append(full, UserMergeOption{Label: UserKeep, Master: &muCopy})
		}
	}

	for _, opt := range full {
		switch opt.Label {
		case UserKeep:
			if opt.Master == nil {
				return nil, nil, 0, fmt.Errorf("UserKeep option missing Master")
			}
			final = append(final, *opt.Master)
		case UserReplace:
			if opt.Master == nil || opt.Slave == nil {
				return nil, nil, 0, fmt.Errorf("UserReplace option missing Master or Slave")
			}
			u := *opt.Slave
			u.ID = opt.Master.ID
			final = append(final, u)
			remap[opt.Slave.ID] = opt.Master.ID
		case UserAdd:
			if opt.Slave == nil {
				return nil, nil, 0, fmt.Errorf("UserAdd option missing Slave")
			}
			u := *opt.Slave
			u.ID = nextID
			remap[opt.Slave.ID] = nextID
			nextID++
			final = append(final, u)
		}
	}

	masterSelf, err := masterDAO.Myself(ctx, masterDS)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("loading master self user: %w", err)
	}
	for _, opt := range full {
		if opt.Master != nil && opt.Master.ID == masterSelf.ID {
			selfID = opt.Master.ID
			return final, remap, selfID, nil
		}
	}
	return nil, nil, 0, fmt.Errorf("no final user covers master self id %d", masterSelf.ID)
}

// buildNameIndex maps every pre-merge name form (pretty name, username) a
// user was known by to that user's post-merge pretty name, for the
// member-name fixup rule. Only the explicit options need walking: every
// master user not named by one was a Keep with its id unchanged, so its
// pre- and post-merge name are already identical and no entry is needed.
func buildNameIndex(options []UserMergeOption, final []model.User, remap map[model.UserID]model.UserID) map[string]string {
	finalByID := make(map[model.UserID]model.User, len(final))
	for _, u := range final {
		finalByID[u.ID] = u
	}

	idx := make(map[string]string)
	for _, opt := range options {
		switch opt.Label {
		case UserKeep:
			if opt.Master != nil {
				if fu, ok := finalByID[opt.Master.ID]; ok {
					addNameIndexEntries(idx, *opt.Master, fu)
				}
			}
		case UserReplace:
			if opt.Master != nil && opt.Slave != nil {
				if fu, ok := finalByID[opt.Master.ID]; ok {
					addNameIndexEntries(idx, *opt.Master, fu)
					addNameIndexEntries(idx, *opt.Slave, fu)
				}
			}
		case UserAdd:
			if opt.Slave != nil {
				if fu, ok := finalByID[remap[opt.Slave.ID]]; ok {
					addNameIndexEntries(idx, *opt.Slave, fu)
				}
			}
		}
	}
	return idx
}

func addNameIndexEntries(idx map[string]string, old model.User, final model.User) {
	pretty := final.PrettyName()
	idx[old.PrettyName()] = pretty
	if old.Username != nil {
		idx[*old.Username] = pretty
	}
}

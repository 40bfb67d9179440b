package mergeexec

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
)

// fakeDAO is a minimal in-memory storage.DAO shared by this package's
// tests: it records inserts and backup calls so tests can assert on the
// executor's write sequence, and serves messages well enough for
// stream.Source to paginate over.
type fakeDAO struct {
	root      string
	datasets  []model.Dataset
	usersByDS map[model.DatasetID][]model.User
	selfByDS  map[model.DatasetID]model.UserID
	chatsByDS map[model.DatasetID][]model.Chat
	messages  map[storage.ChatRef][]model.Message

	nextInternalID   model.InternalID
	insertedChats    []insertedChat
	insertedUsers    []insertedUser
	insertedMessages []insertedMessageBatch
	backupCalls      int
	backupsDisabled  bool
	disableCalls     int
	enableCalls      int
}

type insertedMessageBatch struct {
	srcRoot string
	chat    storage.ChatRef
	msgs    []model.Message
}

type insertedChat struct {
	srcRoot string
	chat    model.Chat
}

type insertedUser struct {
	datasetID model.DatasetID
	user      model.User
	isSelf    bool
}

func newFakeDAO(root string) *fakeDAO {
	return &fakeDAO{
		root:      root,
		usersByDS: make(map[model.DatasetID][]model.User),
		selfByDS:  make(map[model.DatasetID]model.UserID),
		chatsByDS: make(map[model.DatasetID][]model.Chat),
		messages:  make(map[storage.ChatRef][]model.Message),
	}
}

func (d *fakeDAO) Datasets(context.Context) ([]model.Dataset, error) { return d.datasets, nil }

func (d *fakeDAO) Myself(_ context.Context, datasetID model.DatasetID) (model.User, error) {
	selfID, ok := d.selfByDS[datasetID]
	if !ok {
		return model.User{}, fmt.Errorf("no self user for dataset %v", datasetID)
	}
	for _, u := range d.usersByDS[datasetID] {
		if u.ID == selfID {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("self user %d not found", selfID)
}

func (d *fakeDAO) Users(_ context.Context, datasetID model.DatasetID) ([]model.User, error) {
	return d.usersByDS[datasetID], nil
}

func (d *fakeDAO) Chats(_ context.Context, datasetID model.DatasetID) ([]model.Chat, error) {
	return d.chatsByDS[datasetID], nil
}

func (d *fakeDAO) DatasetRoot(context.Context, model.DatasetID) (string, error) {
	return d.root, nil
}

func (d *fakeDAO) ScrollMessages(_ context.Context, chat storage.ChatRef, offset, limit int) ([]model.Message, error) {
	msgs := d.messages[chat]
	if offset >= len(msgs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return append([]model.Message(nil), msgs[offset:end]...), nil
}

func (d *fakeDAO) LastMessages(_ context.Context, chat storage.ChatRef, limit int) ([]model.Message, error) {
	msgs := d.messages[chat]
	if len(msgs) <= limit {
		return append([]model.Message(nil), msgs...), nil
	}
	return append([]model.Message(nil), msgs[len(msgs)-limit:]...), nil
}

func (d *fakeDAO) MessagesBefore(context.Context, storage.ChatRef, model.Message, int) ([]model.Message, error) {
	panic("unused")
}

func (d *fakeDAO) MessagesAfter(_ context.Context, chat storage.ChatRef, anchor model.Message, limit int) ([]model.Message, error) {
	msgs := d.messages[chat]
	idx := -1
	for i, m := range msgs {
		if m.InternalID == anchor.InternalID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	end := idx + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return append([]model.Message(nil), msgs[idx:end]...), nil
}

func (d *fakeDAO) MessagesBetween(_ context.Context, chat storage.ChatRef, m1, m2 model.Message) ([]model.Message, error) {
	msgs := d.messages[chat]
	start, end := -1, -1
	for i, m := range msgs {
		if m.InternalID == m1.InternalID {
			start = i
		}
		if m.InternalID == m2.InternalID {
			end = i
		}
	}
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("range not found in fake dao")
	}
	return append([]model.Message(nil), msgs[start:end+1]...), nil
}

func (d *fakeDAO) CountMessagesBetween(context.Context, storage.ChatRef, model.Message, model.Message) (int, error) {
	panic("unused")
}

func (d *fakeDAO) MessageOption(context.Context, storage.ChatRef, model.SourceID) (*model.Message, error) {
	panic("unused")
}

func (d *fakeDAO) MessageOptionByInternalID(context.Context, storage.ChatRef, model.InternalID) (*model.Message, error) {
	panic("unused")
}

func (d *fakeDAO) InsertDataset(_ context.Context, ds model.Dataset) error {
	d.datasets = append(d.datasets, ds)
	return nil
}

func (d *fakeDAO) InsertUser(_ context.Context, datasetID model.DatasetID, user model.User, isSelf bool) error {
	d.insertedUsers = append(d.insertedUsers, insertedUser{datasetID, user, isSelf})
	d.usersByDS[datasetID] = append(d.usersByDS[datasetID], user)
	if isSelf {
		d.selfByDS[datasetID] = user.ID
	}
	return nil
}

func (d *fakeDAO) InsertChat(_ context.Context, srcRoot string, chat model.Chat) error {
	d.insertedChats = append(d.insertedChats, insertedChat{srcRoot, chat})
	d.chatsByDS[chat.DatasetID] = append(d.chatsByDS[chat.DatasetID], chat)
	return nil
}

func (d *fakeDAO) InsertMessages(_ context.Context, srcRoot string, chat storage.ChatRef, msgs []model.Message) error {
	stored := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m.InternalID = d.nextInternalID
		d.nextInternalID++
		d.messages[chat] = append(d.messages[chat], m)
		stored[i] = m
	}
	d.insertedMessages = append(d.insertedMessages, insertedMessageBatch{srcRoot, chat, stored})
	return nil
}

func (d *fakeDAO) Backup(context.Context) error {
	d.backupCalls++
	return nil
}

func (d *fakeDAO) DisableBackups() {
	d.disableCalls++
	d.backupsDisabled = true
}

func (d *fakeDAO) EnableBackups() {
	d.enableCalls++
	d.backupsDisabled = false
}

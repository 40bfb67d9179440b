package merge

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
)

// fakeDAO is a minimal in-memory storage.DAO for this package's tests.
// It mirrors internal/mergeexec's own test double; the two aren't shared
// across package boundaries since neither exports its test helpers.
type fakeDAO struct {
	root      string
	datasets  []model.Dataset
	usersByDS map[model.DatasetID][]model.User
	selfByDS  map[model.DatasetID]model.UserID
	chatsByDS map[model.DatasetID][]model.Chat
	messages  map[storage.ChatRef][]model.Message
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

func (d *fakeDAO) LastMessages(context.Context, storage.ChatRef, int) ([]model.Message, error) {
	panic("unused")
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

func (d *fakeDAO) InsertDataset(context.Context, model.Dataset) error { panic("unused") }
func (d *fakeDAO) InsertUser(context.Context, model.DatasetID, model.User, bool) error {
	panic("unused")
}
func (d *fakeDAO) InsertChat(context.Context, string, model.Chat) error { panic("unused") }
func (d *fakeDAO) InsertMessages(context.Context, string, storage.ChatRef, []model.Message) error {
	panic("unused")
}
func (d *fakeDAO) Backup(context.Context) error { panic("unused") }
func (d *fakeDAO) DisableBackups()              {}
func (d *fakeDAO) EnableBackups()               {}

package merge

import (
	"context"
	"testing"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writableFakeDAO extends fakeDAO with the insert/backup methods Merge's
// target needs; master and slave DAOs in these tests stay read-only.
type writableFakeDAO struct {
	*fakeDAO
	datasets       []model.Dataset
	insertedUsers  []model.User
	insertedChats  []model.Chat
	disableCalls   int
	enableCalls    int
	backupCalls    int
	nextInternalID model.InternalID
}

func newWritableFakeDAO(root string) *writableFakeDAO {
	return &writableFakeDAO{fakeDAO: newFakeDAO(root)}
}

func (d *writableFakeDAO) Datasets(context.Context) ([]model.Dataset, error) { return d.datasets, nil }

func (d *writableFakeDAO) InsertDataset(_ context.Context, ds model.Dataset) error {
	d.datasets = append(d.datasets, ds)
	return nil
}

func (d *writableFakeDAO) InsertUser(_ context.Context, _ model.DatasetID, user model.User, _ bool) error {
	d.insertedUsers = append(d.insertedUsers, user)
	return nil
}

func (d *writableFakeDAO) InsertChat(_ context.Context, _ string, chat model.Chat) error {
	d.insertedChats = append(d.insertedChats, chat)
	return nil
}

func (d *writableFakeDAO) InsertMessages(_ context.Context, _ string, chat storage.ChatRef, msgs []model.Message) error {
	for _, m := range msgs {
		m.InternalID = d.nextInternalID
		d.nextInternalID++
		d.messages[chat] = append(d.messages[chat], m)
	}
	return nil
}

func (d *writableFakeDAO) Backup(context.Context) error { d.backupCalls++; return nil }
func (d *writableFakeDAO) DisableBackups()              { d.disableCalls++ }
func (d *writableFakeDAO) EnableBackups()               { d.enableCalls++ }

func TestMerge_KeepOnlyChatProducesNewDataset(t *testing.T) {
	masterDS := model.NewDatasetID()
	masterDAO := newFakeDAO("/master")
	self := model.User{ID: 1, FirstName: strp("Self")}
	masterDAO.usersByDS[masterDS] = []model.User{self}
	masterDAO.selfByDS[masterDS] = self.ID

	chat := model.Chat{ID: 10, DatasetID: masterDS, Type: model.ChatTypePrivateGroup, Name: strp("Group"), MemberIDs: []model.UserID{1}}
	masterDAO.chatsByDS[masterDS] = []model.Chat{chat}
	masterDAO.messages[storage.ChatRef{DatasetID: masterDS, ChatID: chat.ID}] = []model.Message{
		{InternalID: 0, FromID: 1, Typed: model.TypedRegular{}},
	}

	slaveDS := model.NewDatasetID()
	slaveDAO := newFakeDAO("/slave")

	target := newWritableFakeDAO("/target")

	newDS, summary, err := Merge(context.Background(), nil, nil, masterDAO, masterDS, slaveDAO, slaveDS,
		nil, []ChatMergeOption{{Label: ChatKeep, Master: &chat}}, target, nil)
	require.NoError(t, err)

	require.Len(t, target.datasets, 1)
	assert.Equal(t, newDS, target.datasets[0].ID)
	assert.Len(t, target.insertedUsers, 1)
	require.Len(t, target.insertedChats, 1)
	assert.Equal(t, 1, target.disableCalls)
	assert.Equal(t, 1, target.enableCalls)
	assert.Equal(t, 1, summary.ChatsMerged)
	assert.Equal(t, 1, summary.MessagesCopiedFromMaster)

	targetRef := storage.ChatRef{DatasetID: newDS, ChatID: target.insertedChats[0].ID}
	assert.Len(t, target.messages[targetRef], 1)
}

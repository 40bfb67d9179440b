package stream

import (
	"context"
	"testing"
	"time"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDAO is a minimal in-memory storage.DAO sufficient to exercise the
// stream source's pagination logic; methods outside that surface panic if
// called, since the stream package should never touch them.
type fakeDAO struct {
	messages []model.Message
}

func newFakeDAO(n int) *fakeDAO {
	d := &fakeDAO{}
	for i := 0; i < n; i++ {
		d.messages = append(d.messages, model.Message{
			InternalID: model.InternalID(i),
			Timestamp:  time.Unix(int64(i), 0),
		})
	}
	return d
}

func (d *fakeDAO) ScrollMessages(_ context.Context, _ storage.ChatRef, offset, limit int) ([]model.Message, error) {
	if offset >= len(d.messages) {
		return nil, nil
	}
	end := offset + limit
	if end > len(d.messages) {
		end = len(d.messages)
	}
	return append([]model.Message(nil), d.messages[offset:end]...), nil
}

func (d *fakeDAO) MessagesAfter(_ context.Context, _ storage.ChatRef, anchor model.Message, limit int) ([]model.Message, error) {
	idx := -1
	for i, m := range d.messages {
		if m.InternalID == anchor.InternalID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	end := idx + limit
	if end > len(d.messages) {
		end = len(d.messages)
	}
	return append([]model.Message(nil), d.messages[idx:end]...), nil
}

func (d *fakeDAO) Datasets(context.Context) ([]model.Dataset, error) { panic("unused") }
func (d *fakeDAO) Myself(context.Context, model.DatasetID) (model.User, error) {
	panic("unused")
}
func (d *fakeDAO) Users(context.Context, model.DatasetID) ([]model.User, error) { panic("unused") }
func (d *fakeDAO) Chats(context.Context, model.DatasetID) ([]model.Chat, error) { panic("unused") }
func (d *fakeDAO) DatasetRoot(context.Context, model.DatasetID) (string, error) {
	panic("unused")
}
func (d *fakeDAO) LastMessages(context.Context, storage.ChatRef, int) ([]model.Message, error) {
	panic("unused")
}
func (d *fakeDAO) MessagesBefore(context.Context, storage.ChatRef, model.Message, int) ([]model.Message, error) {
	panic("unused")
}
func (d *fakeDAO) MessagesBetween(context.Context, storage.ChatRef, model.Message, model.Message) ([]model.Message, error) {
	panic("unused")
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

func collectMessages(t *testing.T, seq func(yield func(model.Message, error) bool)) []model.Message {
	t.Helper()
	var out []model.Message
	for m, err := range seq {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestSource_Messages_ShortChatSingleBatch(t *testing.T) {
	dao := newFakeDAO(3)
	s := New(dao, storage.ChatRef{}, 10)
	got := collectMessages(t, s.Messages(context.Background()))
	assert.Len(t, got, 3)
	assert.Equal(t, model.InternalID(0), got[0].InternalID)
	assert.Equal(t, model.InternalID(2), got[2].InternalID)
}

func TestSource_Messages_MultipleBatches(t *testing.T) {
	dao := newFakeDAO(25)
	s := New(dao, storage.ChatRef{}, 10)
	got := collectMessages(t, s.Messages(context.Background()))
	require.Len(t, got, 25)
	for i, m := range got {
		assert.Equal(t, model.InternalID(i), m.InternalID)
	}
}

func TestSource_MessagesFrom_ExcludesAnchorItself(t *testing.T) {
	dao := newFakeDAO(12)
	s := New(dao, storage.ChatRef{}, 5)
	anchor := dao.messages[3]
	got := collectMessages(t, s.MessagesFrom(context.Background(), anchor))
	require.Len(t, got, 8)
	assert.Equal(t, model.InternalID(4), got[0].InternalID)
	assert.Equal(t, model.InternalID(11), got[len(got)-1].InternalID)
}

func TestSource_Messages_Empty(t *testing.T) {
	dao := newFakeDAO(0)
	s := New(dao, storage.ChatRef{}, 10)
	got := collectMessages(t, s.Messages(context.Background()))
	assert.Empty(t, got)
}

func TestSource_Messages_StopsEarlyOnConsumerBreak(t *testing.T) {
	dao := newFakeDAO(100)
	s := New(dao, storage.ChatRef{}, 10)
	count := 0
	for range s.Messages(context.Background()) {
		count++
		if count == 15 {
			break
		}
	}
	assert.Equal(t, 15, count)
}

func TestSource_Messages_CancelledContext(t *testing.T) {
	dao := newFakeDAO(5)
	s := New(dao, storage.ChatRef{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sawErr bool
	for _, err := range s.Messages(ctx) {
		if err != nil {
			sawErr = true
		}
	}
	assert.True(t, sawErr)
}

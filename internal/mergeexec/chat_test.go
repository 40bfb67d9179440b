package mergeexec

import (
	"context"
	"errors"
	"testing"

	"github.com/frozenspider/chat-history-manager-backend/internal/mergeerr"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFC is a minimal in-memory model.FileComparator for this package's
// tests: a path "exists" if it was registered via put.
type memFC struct {
	present map[string]bool
}

func newMemFC() *memFC { return &memFC{present: make(map[string]bool)} }

func (m *memFC) put(root, path string) { m.present[root+"/"+path] = true }

func (m *memFC) Exists(ref model.FileRef) (bool, error) {
	if ref.Path == nil {
		return false, nil
	}
	return m.present[ref.Root+"/"+*ref.Path], nil
}

func (m *memFC) BytesEqual(model.FileRef, model.FileRef) (bool, error) {
	panic("unused")
}

func TestRenamePersonalChat_RenamesToNonSelfMember(t *testing.T) {
	name := "Old Name"
	chat := &model.Chat{Type: model.ChatTypePersonal, Name: &name, MemberIDs: []model.UserID{1, 2}}
	finalByID := map[model.UserID]model.User{
		1: {ID: 1, FirstName: strp("Self")},
		2: {ID: 2, FirstName: strp("Bob")},
	}
	renamePersonalChat(chat, finalByID, 1)
	assert.Equal(t, "Bob", *chat.Name)
}

func TestRenamePersonalChat_LeavesGroupChatsAlone(t *testing.T) {
	name := "Group"
	chat := &model.Chat{Type: model.ChatTypePrivateGroup, Name: &name, MemberIDs: []model.UserID{1, 2, 3}}
	renamePersonalChat(chat, map[model.UserID]model.User{}, 1)
	assert.Equal(t, "Group", *chat.Name)
}

func TestFixupMessages_RemapsFromIDAndBlanksInternalID(t *testing.T) {
	remap := map[model.UserID]model.UserID{20: 2}
	msgs := []model.Message{{InternalID: 5, FromID: 20}}
	out := fixupMessages(msgs, nil, remap)
	require.Len(t, out, 1)
	assert.Equal(t, model.UserID(2), out[0].FromID)
	assert.Equal(t, model.NoInternalID, out[0].InternalID)
}

func TestFixupMessages_RewritesServiceMembers(t *testing.T) {
	nameIndex := map[string]string{"Old Bob": "New Bob"}
	msgs := []model.Message{{
		Typed: model.TypedService{Content: model.ServiceGroupCreate{Title: "g", Members: []string{"Old Bob", "Unknown"}}},
	}}
	out := fixupMessages(msgs, nameIndex, nil)
	content := out[0].Typed.(model.TypedService).Content.(model.ServiceGroupCreate)
	assert.Equal(t, []string{"New Bob", "Unknown"}, content.Members)
}

func TestFilesExist_VacuouslyTrueForTextMessage(t *testing.T) {
	fc := newMemFC()
	ok, err := filesExist(fc, model.Message{Typed: model.TypedRegular{}}, "/root")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFilesExist_FalseWhenPathMissing(t *testing.T) {
	fc := newMemFC()
	path := "photo.jpg"
	msg := model.Message{Typed: model.TypedRegular{Content: model.ContentPhoto{Path: &path}}}
	ok, err := filesExist(fc, msg, "/root")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilesExist_TrueWhenPathPresent(t *testing.T) {
	fc := newMemFC()
	fc.put("/root", "photo.jpg")
	path := "photo.jpg"
	msg := model.Message{Typed: model.TypedRegular{Content: model.ContentPhoto{Path: &path}}}
	ok, err := filesExist(fc, msg, "/root")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveDecision_RetainReturnsMasterRange(t *testing.T) {
	masterDAO := newFakeDAO("/master")
	ref := storage.ChatRef{ChatID: 1}
	m0 := model.Message{InternalID: 0}
	m1 := model.Message{InternalID: 1}
	m2 := model.Message{InternalID: 2}
	masterDAO.messages[ref] = []model.Message{m0, m1, m2}

	e := &Executor{}
	d := MessagesMergeDecision{Label: DecisionRetain, FirstMaster: &m0, LastMaster: &m1}
	out, err := e.resolveDecision(context.Background(), d, newMemFC(), masterDAO, ref, "/master", nil, storage.ChatRef{}, "/slave")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "/master", out[0].root)
}

func TestResolveDecision_MatchPrefersSlaveWhenMasterFileMissing(t *testing.T) {
	masterDAO := newFakeDAO("/master")
	slaveDAO := newFakeDAO("/slave")
	masterRef := storage.ChatRef{ChatID: 1}
	slaveRef := storage.ChatRef{ChatID: 2}

	path := "photo.jpg"
	masterMsg := model.Message{InternalID: 0, Typed: model.TypedRegular{Content: model.ContentPhoto{Path: &path}}}
	slaveMsg := model.Message{InternalID: 0, Typed: model.TypedRegular{Content: model.ContentPhoto{Path: &path}}}
	masterDAO.messages[masterRef] = []model.Message{masterMsg}
	slaveDAO.messages[slaveRef] = []model.Message{slaveMsg}

	fc := newMemFC()
	fc.put("/slave", "photo.jpg") // master's copy absent, slave's present

	e := &Executor{}
	d := MessagesMergeDecision{Label: DecisionMatch, FirstMaster: &masterMsg, LastMaster: &masterMsg, FirstSlave: &slaveMsg, LastSlave: &slaveMsg}
	out, err := e.resolveDecision(context.Background(), d, fc, masterDAO, masterRef, "/master", slaveDAO, slaveRef, "/slave")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/slave", out[0].root)
}

func TestValidateMembers_UnknownMemberFails(t *testing.T) {
	finalByID := map[model.UserID]model.User{1: {ID: 1}}
	err := validateMembers(42, []model.UserID{1, 99}, finalByID)
	require.Error(t, err)
	var diErr *mergeerr.DataIntegrityError
	require.True(t, errors.As(err, &diErr))
	assert.Equal(t, model.ChatID(42), diErr.ChatID)
	assert.Contains(t, diErr.Error(), "chat member 99")
}

func TestValidateMembers_AllKnownSucceeds(t *testing.T) {
	finalByID := map[model.UserID]model.User{1: {ID: 1}, 2: {ID: 2}}
	err := validateMembers(42, []model.UserID{1, 2}, finalByID)
	require.NoError(t, err)
}

func TestFlushRuns_SegmentsByRoot(t *testing.T) {
	target := newFakeDAO("/target")
	ref := storage.ChatRef{ChatID: 1}
	tagged := []taggedMessage{
		{msg: model.Message{InternalID: 0}, root: "/master"},
		{msg: model.Message{InternalID: 1}, root: "/master"},
		{msg: model.Message{InternalID: 2}, root: "/slave"},
		{msg: model.Message{InternalID: 3}, root: "/master"},
	}
	e := &Executor{}
	err := e.flushRuns(context.Background(), target, ref, tagged, nil, nil, "/master")
	require.NoError(t, err)
	require.Len(t, target.insertedMessages, 3, "three maximal same-root runs")
	assert.Equal(t, "/master", target.insertedMessages[0].srcRoot)
	assert.Len(t, target.insertedMessages[0].msgs, 2)
	assert.Equal(t, "/slave", target.insertedMessages[1].srcRoot)
	assert.Len(t, target.insertedMessages[1].msgs, 1)
	assert.Equal(t, "/master", target.insertedMessages[2].srcRoot)
	assert.Len(t, target.insertedMessages[2].msgs, 1)
}

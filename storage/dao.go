// Package storage defines the minimal DAO contract the merge engine and
// merge executor depend on (spec §4.1). Any storage backend - the bundled
// SQLite implementation in storage/sqlite, or a caller's own - satisfies
// this interface to be usable as a merge source or target.
package storage

import (
	"context"

	"github.com/frozenspider/chat-history-manager-backend/model"
)

// ChatRef identifies a chat within a specific dataset; it is the unit the
// paginated message-read methods operate on.
type ChatRef struct {
	DatasetID model.DatasetID
	ChatID    model.ChatID
}

// DAO is the storage contract consumed by the diff engine and merge
// executor. Implementations must honor the ordering contract of spec §4.1:
// within a chat, messages are totally ordered consistently with
// (timestamp ASC, source_id ASC) when source ids are present, with ties
// under identical timestamp and searchable_string considered equal for
// ordering purposes.
type DAO interface {
	// Datasets returns every dataset this DAO knows about.
	Datasets(ctx context.Context) ([]model.Dataset, error)
	// Myself returns the self user of a dataset.
	Myself(ctx context.Context, datasetID model.DatasetID) (model.User, error)
	// Users returns a dataset's users, self first, then in stable order.
	Users(ctx context.Context, datasetID model.DatasetID) ([]model.User, error)
	// Chats returns a dataset's chats.
	Chats(ctx context.Context, datasetID model.DatasetID) ([]model.Chat, error)
	// DatasetRoot returns the filesystem directory holding a dataset's
	// media files; every path inside a message resolves relative to it.
	DatasetRoot(ctx context.Context, datasetID model.DatasetID) (string, error)

	// ScrollMessages skips `offset` then takes up to `limit` messages, in
	// forward time order.
	ScrollMessages(ctx context.Context, chat ChatRef, offset, limit int) ([]model.Message, error)
	// LastMessages returns the last `limit` messages, in forward time
	// order.
	LastMessages(ctx context.Context, chat ChatRef, limit int) ([]model.Message, error)
	// MessagesBefore returns at least one and at most `limit` messages
	// ending at (inclusive of) anchor, such that the last result is
	// practically equal to anchor.
	MessagesBefore(ctx context.Context, chat ChatRef, anchor model.Message, limit int) ([]model.Message, error)
	// MessagesAfter returns at least one and at most `limit` messages
	// starting at (inclusive of) anchor, such that the first result is
	// practically equal to anchor.
	MessagesAfter(ctx context.Context, chat ChatRef, anchor model.Message, limit int) ([]model.Message, error)
	// MessagesBetween returns every message between m1 and m2 inclusive on
	// both ends.
	MessagesBetween(ctx context.Context, chat ChatRef, m1, m2 model.Message) ([]model.Message, error)
	// CountMessagesBetween counts messages strictly between m1 and m2,
	// exclusive on both ends.
	CountMessagesBetween(ctx context.Context, chat ChatRef, m1, m2 model.Message) (int, error)
	// MessageOption looks a message up by its dataset-stable source id.
	MessageOption(ctx context.Context, chat ChatRef, sourceID model.SourceID) (*model.Message, error)
	// MessageOptionByInternalID looks a message up by the storage's own
	// opaque ordering handle. Never compare an InternalID obtained from one
	// DAO against another DAO.
	MessageOptionByInternalID(ctx context.Context, chat ChatRef, id model.InternalID) (*model.Message, error)

	// InsertDataset creates a new, empty dataset.
	InsertDataset(ctx context.Context, ds model.Dataset) error
	// InsertUser adds a user to a dataset, optionally marking it self.
	InsertUser(ctx context.Context, datasetID model.DatasetID, user model.User, isSelf bool) error
	// InsertChat adds a chat to a dataset. srcRoot is where this DAO should
	// look for any avatar file the chat references, to copy it under its
	// own dataset root.
	InsertChat(ctx context.Context, srcRoot string, chat model.Chat) error
	// InsertMessages appends messages (and copies any files they
	// reference from srcRoot) to a chat, assigning fresh, monotonically
	// increasing InternalIDs in the order given.
	InsertMessages(ctx context.Context, srcRoot string, chat ChatRef, msgs []model.Message) error

	// Backup snapshots the DAO's current state.
	Backup(ctx context.Context) error
	// DisableBackups suppresses implicit automatic backups until
	// re-enabled. Safe to call when already disabled.
	DisableBackups()
	// EnableBackups re-enables implicit automatic backups.
	EnableBackups()
}

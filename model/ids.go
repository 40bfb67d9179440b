// Package model defines the dataset/user/chat/message entity graph the merge
// engine operates on, and the practical-equality predicate used to compare
// messages produced by different storage backends.
package model

import "github.com/google/uuid"

// DatasetID identifies a Dataset. Equality is by value only.
type DatasetID uuid.UUID

func NewDatasetID() DatasetID {
	return DatasetID(uuid.New())
}

func (id DatasetID) String() string {
	return uuid.UUID(id).String()
}

// ParseDatasetID parses the string form produced by DatasetID.String.
func ParseDatasetID(s string) (DatasetID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DatasetID{}, err
	}
	return DatasetID(u), nil
}

// UserID is a dataset-unique numeric user id. It is only comparable within
// the same dataset.
type UserID int64

// ChatID is a dataset-unique numeric chat id. It is only comparable within
// the same dataset.
type ChatID int64

// SourceID is a dataset-stable identifier assigned by the originating
// export. Present on a Message as *SourceID; nil means the source never
// assigned one.
type SourceID int64

// InternalID is a storage-assigned, opaque, monotonically increasing handle
// used for ordering and pagination only. It is never comparable across two
// different DAOs - that is a bug, which is why it gets its own type instead
// of being a plain int64.
type InternalID int64

// NoInternalID marks a message that has not been saved to a DAO yet.
const NoInternalID InternalID = -1

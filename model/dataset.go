package model

// Dataset is a collection of users, chats and messages imported from one
// source. Equality is by UUID only - alias and source type are cosmetic.
type Dataset struct {
	ID         DatasetID
	Alias      string
	SourceType string
}

func (d Dataset) Equal(other Dataset) bool {
	return d.ID == other.ID
}

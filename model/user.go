package model

import "strings"

// UnnamedPlaceholder is the sentinel pretty name for a user with neither a
// first nor a last name.
const UnnamedPlaceholder = "[unnamed]"

// User belongs to exactly one dataset. Exactly one user per dataset must be
// designated self (see Dataset-level invariants enforced by the DAO).
type User struct {
	DatasetID   DatasetID
	ID          UserID
	FirstName   *string
	LastName    *string
	Username    *string
	PhoneNumber *string
	IsSelf      bool
}

// PrettyName joins first and last name with a space, or falls back to the
// unnamed sentinel if both are empty.
func (u User) PrettyName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != nil && strings.TrimSpace(*u.FirstName) != "" {
		parts = append(parts, strings.TrimSpace(*u.FirstName))
	}
	if u.LastName != nil && strings.TrimSpace(*u.LastName) != "" {
		parts = append(parts, strings.TrimSpace(*u.LastName))
	}
	if len(parts) == 0 {
		return UnnamedPlaceholder
	}
	return strings.Join(parts, " ")
}

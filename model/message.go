package model

import "time"

// Message is the unit the merge engine diffs and copies. See spec §3 for
// the field invariants; InternalID and ForwardFromName are explicitly
// excluded from practical equality.
type Message struct {
	InternalID       InternalID
	SourceID         *SourceID
	Timestamp        time.Time
	FromID           UserID
	Text             []RichTextElement
	SearchableString string
	Typed            MessageTyped
}

// MessageTyped is the Regular/Service sum type.
type MessageTyped interface {
	isMessageTyped()
}

// TypedRegular is a user-authored message, optionally carrying Content.
type TypedRegular struct {
	EditTime        *time.Time
	ForwardFromName *string
	ReplyToSourceID *SourceID
	Content         Content // nil means no attachment
}

func (TypedRegular) isMessageTyped() {}

// TypedService wraps one of the ServiceContent variants below.
type TypedService struct {
	Content ServiceContent
}

func (TypedService) isMessageTyped() {}

// ServiceContent is the closed set of system/service message sub-variants.
type ServiceContent interface {
	isServiceContent()
	Kind() string
}

type ServicePhoneCall struct {
	DurationSec   *int
	DiscardReason *string
}

func (ServicePhoneCall) isServiceContent() {}
func (ServicePhoneCall) Kind() string      { return "phone_call" }

type ServicePinMessage struct {
	MessageSourceID SourceID
}

func (ServicePinMessage) isServiceContent() {}
func (ServicePinMessage) Kind() string      { return "pin_message" }

type ServiceClearHistory struct{}

func (ServiceClearHistory) isServiceContent() {}
func (ServiceClearHistory) Kind() string      { return "clear_history" }

type ServiceStatusTextChanged struct{}

func (ServiceStatusTextChanged) isServiceContent() {}
func (ServiceStatusTextChanged) Kind() string      { return "status_text_changed" }

type ServiceNotice struct{}

func (ServiceNotice) isServiceContent() {}
func (ServiceNotice) Kind() string      { return "notice" }

type ServiceGroupCreate struct {
	Title   string
	Members []string
}

func (ServiceGroupCreate) isServiceContent() {}
func (ServiceGroupCreate) Kind() string      { return "group_create" }

type ServiceGroupEditTitle struct {
	Title string
}

func (ServiceGroupEditTitle) isServiceContent() {}
func (ServiceGroupEditTitle) Kind() string      { return "group_edit_title" }

// ServiceGroupEditPhoto carries the new group photo path, subject to the
// same new-content diff rule as Regular path-bearing content (spec §4.3).
type ServiceGroupEditPhoto struct {
	Path *string
}

func (ServiceGroupEditPhoto) isServiceContent() {}
func (ServiceGroupEditPhoto) Kind() string      { return "group_edit_photo" }

type ServiceGroupDeletePhoto struct{}

func (ServiceGroupDeletePhoto) isServiceContent() {}
func (ServiceGroupDeletePhoto) Kind() string      { return "group_delete_photo" }

type ServiceGroupInviteMembers struct {
	Members []string
}

func (ServiceGroupInviteMembers) isServiceContent() {}
func (ServiceGroupInviteMembers) Kind() string      { return "group_invite_members" }

type ServiceGroupRemoveMembers struct {
	Members []string
}

func (ServiceGroupRemoveMembers) isServiceContent() {}
func (ServiceGroupRemoveMembers) Kind() string      { return "group_remove_members" }

// ServiceGroupMigrateFrom records the title of the chat being migrated
// from. Member-id widening handling for this variant lives in the diff
// engine (spec §4.3 rule 3), keyed off the owning Message.FromID.
type ServiceGroupMigrateFrom struct {
	Title string
}

func (ServiceGroupMigrateFrom) isServiceContent() {}
func (ServiceGroupMigrateFrom) Kind() string      { return "group_migrate_from" }

type ServiceGroupMigrateTo struct{}

func (ServiceGroupMigrateTo) isServiceContent() {}
func (ServiceGroupMigrateTo) Kind() string      { return "group_migrate_to" }

type ServiceGroupCall struct {
	Members []string
}

func (ServiceGroupCall) isServiceContent() {}
func (ServiceGroupCall) Kind() string      { return "group_call" }

type ServiceSuggestProfilePhoto struct {
	Path *string
}

func (ServiceSuggestProfilePhoto) isServiceContent() {}
func (ServiceSuggestProfilePhoto) Kind() string      { return "suggest_profile_photo" }

type ServiceBlockUser struct {
	IsBlocked bool
}

func (ServiceBlockUser) isServiceContent() {}
func (ServiceBlockUser) Kind() string      { return "block_user" }

// ServiceMembers returns the member list carried by service sub-variants
// that have one, per spec §3's searchable-string rule and §4.4's
// member-name fixup rule. ok is false for variants without a member list.
func ServiceMembers(s ServiceContent) (members []string, ok bool) {
	switch v := s.(type) {
	case ServiceGroupCreate:
		return v.Members, true
	case ServiceGroupInviteMembers:
		return v.Members, true
	case ServiceGroupRemoveMembers:
		return v.Members, true
	case ServiceGroupCall:
		return v.Members, true
	default:
		return nil, false
	}
}

// WithServiceMembers returns a copy of s with its member list replaced, for
// variants that carry one. ok mirrors ServiceMembers.
func WithServiceMembers(s ServiceContent, members []string) (ServiceContent, bool) {
	switch v := s.(type) {
	case ServiceGroupCreate:
		v.Members = members
		return v, true
	case ServiceGroupInviteMembers:
		v.Members = members
		return v, true
	case ServiceGroupRemoveMembers:
		v.Members = members
		return v, true
	case ServiceGroupCall:
		v.Members = members
		return v, true
	default:
		return s, false
	}
}

// BuildSearchableString derives Message.SearchableString per spec §3: the
// normalized concatenation of rich-text span texts and link hrefs, plus any
// member list on a service message, plus the migrated title for
// GroupMigrateFrom.
func BuildSearchableString(text []RichTextElement, typed MessageTyped) string {
	var extra []string
	if svc, ok := typed.(TypedService); ok {
		if members, ok := ServiceMembers(svc.Content); ok {
			extra = append(extra, members...)
		}
		if mf, ok := svc.Content.(ServiceGroupMigrateFrom); ok {
			extra = append(extra, mf.Title)
		}
	}
	return SearchableString(text, extra...)
}

package model

import (
	"reflect"
	"time"
)

// FileRef points at a dataset-root-relative path on a specific dataset
// root. Path == nil means "no file referenced".
type FileRef struct {
	Root string
	Path *string
}

// FileComparator resolves file references to bytes. Implementations (see
// pkg/digestcache) should cache digests per run, keyed by (Root, Path).
type FileComparator interface {
	// Exists reports whether ref.Path names a file that is actually
	// present under ref.Root. Callers only invoke this when ref.Path is
	// non-nil.
	Exists(ref FileRef) (bool, error)
	// BytesEqual reports whether two existing files have identical
	// contents. Callers only invoke this after confirming both exist.
	BytesEqual(a, b FileRef) (bool, error)
}

// FileRefsEqual implements spec §3's file-reference equality: both
// resolve to existing files with identical bytes, or both resolve to
// nothing.
func FileRefsEqual(fc FileComparator, a, b FileRef) (bool, error) {
	aExists, err := resolvedExists(fc, a)
	if err != nil {
		return false, err
	}
	bExists, err := resolvedExists(fc, b)
	if err != nil {
		return false, err
	}
	if !aExists && !bExists {
		return true, nil
	}
	if aExists != bExists {
		return false, nil
	}
	return fc.BytesEqual(a, b)
}

func resolvedExists(fc FileComparator, ref FileRef) (bool, error) {
	if ref.Path == nil {
		return false, nil
	}
	return fc.Exists(ref)
}

// ContentPaths extracts the path-bearing fields out of a message's typed
// payload, for every variant the diff engine's new-content rule must treat
// uniformly (spec §9 open question): Regular content and the two
// path-bearing service variants.
func ContentPaths(typed MessageTyped) (path, thumbnail *string, ok bool) {
	switch t := typed.(type) {
	case TypedRegular:
		if t.Content == nil {
			return nil, nil, false
		}
		p, th := t.Content.Paths()
		return p, th, true
	case TypedService:
		switch s := t.Content.(type) {
		case ServiceGroupEditPhoto:
			return s.Path, nil, true
		case ServiceSuggestProfilePhoto:
			return s.Path, nil, true
		}
	}
	return nil, nil, false
}

func contentsEqual(fc FileComparator, a Content, aRoot string, b Content, bRoot string) (bool, error) {
	if a == nil && b == nil {
		return true, nil
	}
	if a == nil || b == nil {
		return false, nil
	}
	if a.Kind() != b.Kind() {
		return false, nil
	}
	pathA, thumbA := a.Paths()
	pathB, thumbB := b.Paths()
	eq, err := FileRefsEqual(fc, FileRef{aRoot, pathA}, FileRef{bRoot, pathB})
	if err != nil || !eq {
		return false, err
	}
	eq, err = FileRefsEqual(fc, FileRef{aRoot, thumbA}, FileRef{bRoot, thumbB})
	if err != nil || !eq {
		return false, err
	}
	return reflect.DeepEqual(a.withBlankPaths(), b.withBlankPaths()), nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sourceIDPtrEqual(a, b *SourceID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// typedEqual compares two MessageTyped values ignoring ForwardFromName
// (explicitly excluded by spec §3) and resolving Content/path-bearing
// service fields through fc.
func typedEqual(fc FileComparator, a MessageTyped, aRoot string, b MessageTyped, bRoot string) (bool, error) {
	switch av := a.(type) {
	case TypedRegular:
		bv, ok := b.(TypedRegular)
		if !ok {
			return false, nil
		}
		if !timePtrEqual(av.EditTime, bv.EditTime) {
			return false, nil
		}
		if !sourceIDPtrEqual(av.ReplyToSourceID, bv.ReplyToSourceID) {
			return false, nil
		}
		return contentsEqual(fc, av.Content, aRoot, bv.Content, bRoot)
	case TypedService:
		bv, ok := b.(TypedService)
		if !ok {
			return false, nil
		}
		return serviceContentEqual(fc, av.Content, aRoot, bv.Content, bRoot)
	default:
		return false, nil
	}
}

func serviceContentEqual(fc FileComparator, a ServiceContent, aRoot string, b ServiceContent, bRoot string) (bool, error) {
	if a.Kind() != b.Kind() {
		return false, nil
	}
	switch av := a.(type) {
	case ServiceGroupEditPhoto:
		bv := b.(ServiceGroupEditPhoto)
		return FileRefsEqual(fc, FileRef{aRoot, av.Path}, FileRef{bRoot, bv.Path})
	case ServiceSuggestProfilePhoto:
		bv := b.(ServiceSuggestProfilePhoto)
		return FileRefsEqual(fc, FileRef{aRoot, av.Path}, FileRef{bRoot, bv.Path})
	default:
		return reflect.DeepEqual(a, b), nil
	}
}

// blankMessageContentPaths returns a copy of msg with every content path
// field zeroed, for the diff engine's content-aware Match equality, which
// treats re-encoded or relocated media as unchanged.
func blankMessageContentPaths(msg Message) Message {
	switch t := msg.Typed.(type) {
	case TypedRegular:
		if t.Content != nil {
			t.Content = t.Content.withBlankPaths()
			msg.Typed = t
		}
	case TypedService:
		switch s := t.Content.(type) {
		case ServiceGroupEditPhoto:
			s.Path = nil
			msg.Typed = TypedService{Content: s}
		case ServiceSuggestProfilePhoto:
			s.Path = nil
			msg.Typed = TypedService{Content: s}
		}
	}
	return msg
}

// ContentAwareEqualMessages implements the diff engine's Match equality
// (spec §4.3): a file that exists only on the slave side is a "new content"
// case and makes the pair non-equal so the merger picks it up as a
// Replace; otherwise the messages are compared with their content paths
// blanked out, so unrelated re-encodes or relocations of the same
// attachment don't block a Match.
func ContentAwareEqualMessages(fc FileComparator, master Message, masterRoot string, slave Message, slaveRoot string) (bool, error) {
	masterPath, _, masterOk := ContentPaths(master.Typed)
	slavePath, _, slaveOk := ContentPaths(slave.Typed)
	if masterOk && slaveOk {
		masterExists, err := resolvedExists(fc, FileRef{masterRoot, masterPath})
		if err != nil {
			return false, err
		}
		slaveExists, err := resolvedExists(fc, FileRef{slaveRoot, slavePath})
		if err != nil {
			return false, err
		}
		if !masterExists && slaveExists {
			return false, nil
		}
	}
	return PracticalEqualMessages(fc, blankMessageContentPaths(master), masterRoot, blankMessageContentPaths(slave), slaveRoot)
}

// PracticalEqualMessages implements the =~= relation of spec §3: structural
// equality after blanking InternalID and ForwardFromName, with content
// compared via fc. aRoot/bRoot are the dataset roots the two messages'
// paths resolve against (they may be the same root, or differ when
// comparing messages from two different DAOs).
func PracticalEqualMessages(fc FileComparator, a Message, aRoot string, b Message, bRoot string) (bool, error) {
	if !sourceIDPtrEqual(a.SourceID, b.SourceID) {
		return false, nil
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return false, nil
	}
	if a.FromID != b.FromID {
		return false, nil
	}
	if !reflect.DeepEqual(a.Text, b.Text) {
		return false, nil
	}
	if a.SearchableString != b.SearchableString {
		return false, nil
	}
	return typedEqual(fc, a.Typed, aRoot, b.Typed, bRoot)
}

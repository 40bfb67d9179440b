package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFileComparator is an in-memory FileComparator for tests: files are
// registered as root/path -> bytes, anything unregistered "doesn't exist".
type memFileComparator struct {
	files map[string][]byte
}

func newMemFileComparator() *memFileComparator {
	return &memFileComparator{files: make(map[string][]byte)}
}

func (m *memFileComparator) put(root string, path string, data []byte) {
	m.files[root+"/"+path] = data
}

func (m *memFileComparator) Exists(ref FileRef) (bool, error) {
	if ref.Path == nil {
		return false, nil
	}
	_, ok := m.files[ref.Root+"/"+*ref.Path]
	return ok, nil
}

func (m *memFileComparator) BytesEqual(a, b FileRef) (bool, error) {
	da := m.files[a.Root+"/"+*a.Path]
	db := m.files[b.Root+"/"+*b.Path]
	if len(da) != len(db) {
		return false, nil
	}
	for i := range da {
		if da[i] != db[i] {
			return false, nil
		}
	}
	return true, nil
}

func strp(s string) *string { return &s }

func TestUserPrettyName(t *testing.T) {
	cases := []struct {
		name     string
		user     User
		expected string
	}{
		{"both names", User{FirstName: strp("Ada"), LastName: strp("Lovelace")}, "Ada Lovelace"},
		{"first only", User{FirstName: strp("Ada")}, "Ada"},
		{"last only", User{LastName: strp("Lovelace")}, "Lovelace"},
		{"neither", User{}, UnnamedPlaceholder},
		{"blank strings", User{FirstName: strp("  "), LastName: strp("")}, UnnamedPlaceholder},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, c.user.PrettyName())
		})
	}
}

func TestSearchableString(t *testing.T) {
	els := []RichTextElement{
		RTEPlain{Text: "hello   "},
		RTEBold{Text: "world"},
		RTELink{Text: "click", Href: "https://example.com"},
	}
	got := SearchableString(els)
	assert.Equal(t, "hello world click https://example.com", got)
}

func TestBuildSearchableStringAppendsMembers(t *testing.T) {
	typed := TypedService{Content: ServiceGroupCreate{Title: "t", Members: []string{"Alice", "Bob"}}}
	got := BuildSearchableString([]RichTextElement{RTEPlain{Text: "created"}}, typed)
	assert.Equal(t, "created Alice Bob", got)
}

func TestBuildSearchableStringAppendsMigrateTitle(t *testing.T) {
	typed := TypedService{Content: ServiceGroupMigrateFrom{Title: "Old Chat"}}
	got := BuildSearchableString(nil, typed)
	assert.Equal(t, "Old Chat", got)
}

func baseMessage(sourceID int64) Message {
	sid := SourceID(sourceID)
	return Message{
		InternalID:       NoInternalID,
		SourceID:         &sid,
		Timestamp:        time.Unix(1000, 0).UTC(),
		FromID:           1,
		Text:             []RichTextElement{RTEPlain{Text: "hi"}},
		SearchableString: "hi",
		Typed:            TypedRegular{},
	}
}

func TestPracticalEqualMessages_IgnoresInternalIDAndForwardFromName(t *testing.T) {
	fc := newMemFileComparator()
	a := baseMessage(1)
	a.InternalID = 5
	a.Typed = TypedRegular{ForwardFromName: strp("Alice")}
	b := baseMessage(1)
	b.InternalID = 999
	b.Typed = TypedRegular{ForwardFromName: strp("Bob")}

	eq, err := PracticalEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestPracticalEqualMessages_ContentPathBothAbsentIsEqual(t *testing.T) {
	fc := newMemFileComparator()
	a := baseMessage(7)
	a.Typed = TypedRegular{Content: ContentPhoto{Path: strp("missing.jpg")}}
	b := baseMessage(7)
	b.Typed = TypedRegular{Content: ContentPhoto{Path: strp("missing.jpg")}}

	eq, err := PracticalEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.True(t, eq, "both sides reference a file that exists nowhere: treated as equal")
}

func TestPracticalEqualMessages_OneSidedFilePresenceDiffers(t *testing.T) {
	fc := newMemFileComparator()
	fc.put("rootB", "p.jpg", []byte{1, 2, 3})
	a := baseMessage(7)
	a.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}
	b := baseMessage(7)
	b.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}

	eq, err := PracticalEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestPracticalEqualMessages_IdenticalFileBytes(t *testing.T) {
	fc := newMemFileComparator()
	fc.put("rootA", "p.jpg", []byte{1, 2, 3})
	fc.put("rootB", "p.jpg", []byte{1, 2, 3})
	a := baseMessage(7)
	a.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}
	b := baseMessage(7)
	b.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}

	eq, err := PracticalEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestContentAwareEqualMessages_NewContentOnSlaveIsNotEqual(t *testing.T) {
	fc := newMemFileComparator()
	fc.put("rootB", "p.jpg", []byte{1, 2, 3})
	a := baseMessage(7)
	a.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}
	b := baseMessage(7)
	b.Typed = TypedRegular{Content: ContentPhoto{Path: strp("p.jpg")}}

	eq, err := ContentAwareEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestContentAwareEqualMessages_IgnoresContentWhenNotNewContentCase(t *testing.T) {
	fc := newMemFileComparator()
	fc.put("rootA", "old.jpg", []byte{9, 9})
	fc.put("rootB", "new.jpg", []byte{1})
	a := baseMessage(7)
	a.Typed = TypedRegular{Content: ContentPhoto{Path: strp("old.jpg")}}
	b := baseMessage(7)
	b.Typed = TypedRegular{Content: ContentPhoto{Path: strp("new.jpg")}}

	eq, err := ContentAwareEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.True(t, eq, "both sides have a file present, so differing content is ignored outside the new-content case")
}

func TestContentAwareEqualMessages_GroupEditPhotoNewContent(t *testing.T) {
	fc := newMemFileComparator()
	fc.put("rootB", "g.jpg", []byte{1})
	a := baseMessage(3)
	a.Typed = TypedService{Content: ServiceGroupEditPhoto{}}
	b := baseMessage(3)
	b.Typed = TypedService{Content: ServiceGroupEditPhoto{Path: strp("g.jpg")}}

	eq, err := ContentAwareEqualMessages(fc, a, "rootA", b, "rootB")
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestContentPaths(t *testing.T) {
	path, thumb, ok := ContentPaths(TypedRegular{Content: ContentVideo{Path: strp("v.mp4"), ThumbnailPath: strp("v.jpg")}})
	require.True(t, ok)
	assert.Equal(t, "v.mp4", *path)
	assert.Equal(t, "v.jpg", *thumb)

	_, _, ok = ContentPaths(TypedRegular{})
	assert.False(t, ok)

	path, _, ok = ContentPaths(TypedService{Content: ServiceGroupEditPhoto{Path: strp("g.jpg")}})
	require.True(t, ok)
	assert.Equal(t, "g.jpg", *path)
}

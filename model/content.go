package model

// Content is the payload of a Regular message. The concrete types below
// form a closed set mirroring the source's sealed Content hierarchy.
type Content interface {
	isContent()
	// Kind returns a stable tag identifying the variant, used by practical
	// equality to check "same variant" before comparing fields.
	Kind() string
	// Paths returns the dataset-root-relative path and optional thumbnail
	// path this content references, or (nil, nil) if it carries none.
	Paths() (path *string, thumbnail *string)
	// withBlankPaths returns a copy of the content with path fields zeroed,
	// used by practical equality to compare everything except file refs.
	withBlankPaths() Content
}

type ContentSticker struct {
	Path          *string
	ThumbnailPath *string
	EmojiAlt      *string
}

func (ContentSticker) isContent()   {}
func (ContentSticker) Kind() string { return "sticker" }
func (c ContentSticker) Paths() (*string, *string) {
	return c.Path, c.ThumbnailPath
}
func (c ContentSticker) withBlankPaths() Content {
	c.Path, c.ThumbnailPath = nil, nil
	return c
}

type ContentPhoto struct {
	Path          *string
	Width, Height int
}

func (ContentPhoto) isContent()   {}
func (ContentPhoto) Kind() string { return "photo" }
func (c ContentPhoto) Paths() (*string, *string) {
	return c.Path, nil
}
func (c ContentPhoto) withBlankPaths() Content {
	c.Path = nil
	return c
}

type ContentVoiceMsg struct {
	Path        *string
	MimeType    *string
	DurationSec *int
}

func (ContentVoiceMsg) isContent()   {}
func (ContentVoiceMsg) Kind() string { return "voice_msg" }
func (c ContentVoiceMsg) Paths() (*string, *string) {
	return c.Path, nil
}
func (c ContentVoiceMsg) withBlankPaths() Content {
	c.Path = nil
	return c
}

type ContentAudio struct {
	Path            *string
	MimeType        *string
	DurationSec     *int
	Title, Performer *string
}

func (ContentAudio) isContent()   {}
func (ContentAudio) Kind() string { return "audio" }
func (c ContentAudio) Paths() (*string, *string) {
	return c.Path, nil
}
func (c ContentAudio) withBlankPaths() Content {
	c.Path = nil
	return c
}

type ContentVideoMsg struct {
	Path                  *string
	ThumbnailPath         *string
	MimeType              *string
	DurationSec           *int
	Width, Height         int
}

func (ContentVideoMsg) isContent()   {}
func (ContentVideoMsg) Kind() string { return "video_msg" }
func (c ContentVideoMsg) Paths() (*string, *string) {
	return c.Path, c.ThumbnailPath
}
func (c ContentVideoMsg) withBlankPaths() Content {
	c.Path, c.ThumbnailPath = nil, nil
	return c
}

type ContentVideo struct {
	Path          *string
	ThumbnailPath *string
	MimeType      *string
	DurationSec   *int
	Width, Height int
	IsAnimated    bool
}

func (ContentVideo) isContent()   {}
func (ContentVideo) Kind() string { return "video" }
func (c ContentVideo) Paths() (*string, *string) {
	return c.Path, c.ThumbnailPath
}
func (c ContentVideo) withBlankPaths() Content {
	c.Path, c.ThumbnailPath = nil, nil
	return c
}

type ContentAnimation struct {
	Path          *string
	ThumbnailPath *string
	MimeType      *string
	Width, Height int
}

func (ContentAnimation) isContent()   {}
func (ContentAnimation) Kind() string { return "animation" }
func (c ContentAnimation) Paths() (*string, *string) {
	return c.Path, c.ThumbnailPath
}
func (c ContentAnimation) withBlankPaths() Content {
	c.Path, c.ThumbnailPath = nil, nil
	return c
}

type ContentFile struct {
	Path     *string
	FileName *string
	MimeType *string
}

func (ContentFile) isContent()   {}
func (ContentFile) Kind() string { return "file" }
func (c ContentFile) Paths() (*string, *string) {
	return c.Path, nil
}
func (c ContentFile) withBlankPaths() Content {
	c.Path = nil
	return c
}

type ContentLocation struct {
	Title, Address *string
	Lat, Lon       float64
	DurationSec    *int
}

func (ContentLocation) isContent()   {}
func (ContentLocation) Kind() string { return "location" }
func (ContentLocation) Paths() (*string, *string) {
	return nil, nil
}
func (c ContentLocation) withBlankPaths() Content { return c }

type ContentPoll struct {
	Question string
}

func (ContentPoll) isContent()   {}
func (ContentPoll) Kind() string { return "poll" }
func (ContentPoll) Paths() (*string, *string) {
	return nil, nil
}
func (c ContentPoll) withBlankPaths() Content { return c }

// ContentSharedContact carries an optional vcard path, which is subject to
// the same file-presence rules as the path-bearing variants above, even
// though the struct's primary Path-like field is named VCardPath.
type ContentSharedContact struct {
	FirstName, LastName *string
	PhoneNumber         *string
	VCardPath           *string
}

func (ContentSharedContact) isContent()   {}
func (ContentSharedContact) Kind() string { return "shared_contact" }
func (c ContentSharedContact) Paths() (*string, *string) {
	return c.VCardPath, nil
}
func (c ContentSharedContact) withBlankPaths() Content {
	c.VCardPath = nil
	return c
}

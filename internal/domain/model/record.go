package model

import "time"

// ContentType classifies a captured clipboard payload.
type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeImage   ContentType = "image"
	ContentTypeFile    ContentType = "file"
	ContentTypeHTML    ContentType = "html"
	ContentTypeMermaid ContentType = "mermaid"
)

// ContentTypes lists every known content type in display order.
var ContentTypes = []ContentType{
	ContentTypeText,
	ContentTypeImage,
	ContentTypeFile,
	ContentTypeHTML,
	ContentTypeMermaid,
}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeImage, ContentTypeFile, ContentTypeHTML, ContentTypeMermaid:
		return true
	default:
		return false
	}
}

// Record is one captured clipboard entry. ID, Type, Content, Preview and Size
// are fixed at capture; Timestamp moves forward when the same content is
// captured again.
type Record struct {
	ID        string
	Type      ContentType
	Content   string
	Preview   string
	Timestamp time.Time
	Favorite  bool
	Tags      []string
	Size      int
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	if r.Tags != nil {
		tags := make([]string, len(r.Tags))
		copy(tags, r.Tags)
		r.Tags = tags
	}
	return r
}

// HasTag reports whether the record carries tag.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// OlderThan reports whether the record was last captured at or before
// cutoff.
func (r Record) OlderThan(cutoff time.Time) bool {
	return !r.Timestamp.After(cutoff)
}

// Stats summarizes the current history.
type Stats struct {
	TotalItems    int
	FavoriteItems int
	ByType        map[ContentType]int
	Oldest        time.Time
	Newest        time.Time
}

// Snapshot is a point-in-time copy of the full history, newest first.
type Snapshot struct {
	Records     []Record
	LastUpdated time.Time
}

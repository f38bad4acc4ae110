package content

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// PreviewMaxRunes is the length at which list previews are cut.
const PreviewMaxRunes = 100

var (
	htmlTagPattern   = regexp.MustCompile(`<[^>]*>`)
	pathSepPattern   = regexp.MustCompile(`[\\/]`)
	imagePreviewText = "Image"
)

// Preview derives the short list form of a payload of the given type.
func Preview(s string, t model.ContentType) string {
	switch t {
	case model.ContentTypeHTML:
		return truncate(strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, "")), PreviewMaxRunes)
	case model.ContentTypeFile:
		return "File: " + baseName(s)
	case model.ContentTypeImage:
		return imagePreviewText
	default:
		return truncate(s, PreviewMaxRunes)
	}
}

// baseName returns the last path element of a Windows or POSIX path, or the
// whole string when the path ends in a separator.
func baseName(s string) string {
	parts := pathSepPattern.Split(s, -1)
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

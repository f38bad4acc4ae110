// Package content classifies clipboard payloads and analyzes Markdown. Every
// function here is pure and best-effort: ambiguous input falls back to plain
// text or false rather than an error.
package content

import (
	"regexp"
	"strings"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

var (
	filePathPattern  = regexp.MustCompile(`^[a-zA-Z]:\\|^/`)
	imageExtPattern  = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|bmp|svg)$`)
	imageDataURIHead = "data:image/"
)

// DetectType maps raw clipboard text to a content type. Rules are checked in
// order and the first match wins: HTML, file path, image, then text.
func DetectType(s string) model.ContentType {
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		return model.ContentTypeHTML
	}

	if filePathPattern.MatchString(s) && strings.Contains(s, ".") {
		return model.ContentTypeFile
	}

	if strings.HasPrefix(s, imageDataURIHead) || imageExtPattern.MatchString(s) {
		return model.ContentTypeImage
	}

	return model.ContentTypeText
}

// Classify is DetectType with Mermaid detection in front of it. Capture uses
// this so standalone diagram sources are tagged as mermaid.
func Classify(s string) model.ContentType {
	if DetectMermaid(s) {
		return model.ContentTypeMermaid
	}
	return DetectType(s)
}

// IsImageDataURI reports whether s is an inline image data URI.
func IsImageDataURI(s string) bool {
	return strings.HasPrefix(s, imageDataURIHead)
}

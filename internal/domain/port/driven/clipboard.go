package driven

import (
	"context"
	"errors"
)

//go:generate mockgen -source=clipboard.go -destination=mocks/mock_clipboard.go -package=mocks

// ErrImageUnsupported is returned by Clipboard implementations that can only
// carry text.
var ErrImageUnsupported = errors.New("clipboard image data not supported")

// ErrEmptyClipboard is returned when blank content is offered for copying.
var ErrEmptyClipboard = errors.New("clipboard content is empty")

// Clipboard defines the driven port for OS clipboard access.
type Clipboard interface {
	// ReadText returns the current clipboard text, or "" when the clipboard
	// holds no text.
	ReadText(ctx context.Context) (string, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(ctx context.Context, text string) error

	// WriteImage replaces the clipboard contents with PNG-encoded image data.
	WriteImage(ctx context.Context, png []byte) error

	// Clear empties the clipboard.
	Clear(ctx context.Context) error
}

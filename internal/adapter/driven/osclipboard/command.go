package osclipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

var _ driven.Clipboard = Command{}

// ErrNoClipboardCommand is returned when no clipboard utility such as xclip,
// xsel or wl-copy is installed.
var ErrNoClipboardCommand = errors.New("no clipboard utility found")

// Command uses external clipboard utilities through atotto/clipboard. It
// carries text only.
type Command struct{}

// ReadText returns the clipboard text.
func (Command) ReadText(_ context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", ErrNoClipboardCommand
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// WriteText replaces the clipboard with text.
func (Command) WriteText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrNoClipboardCommand
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// WriteImage always fails with driven.ErrImageUnsupported.
func (Command) WriteImage(_ context.Context, _ []byte) error {
	return driven.ErrImageUnsupported
}

// Clear empties the clipboard.
func (c Command) Clear(ctx context.Context) error {
	return c.WriteText(ctx, "")
}

// Package osclipboard implements the clipboard port on top of the operating
// system clipboard.
package osclipboard

import (
	"context"
	"log/slog"

	"golang.design/x/clipboard"

	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

var _ driven.Clipboard = (*Native)(nil)

// Native talks to the system clipboard through golang.design/x/clipboard and
// supports both text and PNG images. Construct it with New.
type Native struct{}

// ReadText returns the clipboard text.
func (Native) ReadText(_ context.Context) (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// WriteText replaces the clipboard with text.
func (Native) WriteText(_ context.Context, text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteImage replaces the clipboard with PNG image data.
func (Native) WriteImage(_ context.Context, png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// Clear empties the clipboard.
func (Native) Clear(_ context.Context) error {
	clipboard.Write(clipboard.FmtText, []byte{})
	return nil
}

// New returns the best clipboard available on this machine: Native when the
// system clipboard can be initialized, otherwise Command.
func New(logger *slog.Logger) driven.Clipboard {
	if err := clipboard.Init(); err != nil {
		logger.Warn("native clipboard unavailable, falling back to external commands", "error", err)
		return Command{}
	}
	return Native{}
}

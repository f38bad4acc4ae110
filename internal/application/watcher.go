package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for data URIs
	_ "image/jpeg" // register decoder for data URIs
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/content"
	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

// monitorRequest asks the Run loop to switch state.
type monitorRequest struct {
	start bool
	done  chan bool
}

// Watcher polls the clipboard and records every change in the history.
// It is either idle or monitoring; Start and Stop switch between the two
// while Run owns the polling loop.
type Watcher struct {
	clipboard   driven.Clipboard
	history     *HistoryService
	broker      *Broker
	interval    time.Duration
	maxItemSize int
	logger      *slog.Logger
	now         func() time.Time

	monitoring atomic.Bool
	requests   chan monitorRequest

	mu       sync.Mutex
	lastSeen string
}

// NewWatcher creates an idle Watcher. maxItemSize of zero disables the size
// limit.
func NewWatcher(
	clipboard driven.Clipboard,
	history *HistoryService,
	broker *Broker,
	interval time.Duration,
	maxItemSize int,
	logger *slog.Logger,
) *Watcher {
	return &Watcher{
		clipboard:   clipboard,
		history:     history,
		broker:      broker,
		interval:    interval,
		maxItemSize: maxItemSize,
		logger:      logger,
		now:         time.Now,
		requests:    make(chan monitorRequest),
	}
}

// Init records the current clipboard text as already seen so that whatever
// was on the clipboard before startup is not captured.
func (w *Watcher) Init(ctx context.Context) error {
	text, err := w.clipboard.ReadText(ctx)
	if err != nil {
		return fmt.Errorf("read clipboard: %w", err)
	}
	w.setLastSeen(text)
	return nil
}

// Run serves Start and Stop requests and polls while monitoring. It blocks
// until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	var ticker *time.Ticker
	var tick <-chan time.Time

	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			w.monitoring.Store(false)
			w.logger.Info("clipboard watcher stopped")
			return
		case <-tick:
			w.Poll(ctx)
		case req := <-w.requests:
			switch {
			case req.start && ticker == nil:
				ticker = time.NewTicker(w.interval)
				tick = ticker.C
				w.monitoring.Store(true)
				w.logger.Info("clipboard monitoring started", "interval", w.interval)
				req.done <- true
			case !req.start && ticker != nil:
				stopTicker()
				w.monitoring.Store(false)
				w.logger.Info("clipboard monitoring stopped")
				req.done <- true
			default:
				req.done <- false
			}
		}
	}
}

// Start switches to monitoring. Returns false when already monitoring.
func (w *Watcher) Start(ctx context.Context) (bool, error) {
	return w.request(ctx, true)
}

// Stop switches to idle. Returns false when already idle. Once Stop returns
// no further poll will run.
func (w *Watcher) Stop(ctx context.Context) (bool, error) {
	return w.request(ctx, false)
}

func (w *Watcher) request(ctx context.Context, start bool) (bool, error) {
	req := monitorRequest{start: start, done: make(chan bool, 1)}

	select {
	case w.requests <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case changed := <-req.done:
		return changed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// IsMonitoring reports whether the watcher is polling.
func (w *Watcher) IsMonitoring() bool {
	return w.monitoring.Load()
}

// Poll runs a single capture cycle. Failures are logged and never
// propagate; the next tick acts as the retry.
func (w *Watcher) Poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("clipboard poll panicked", "panic", r)
		}
	}()

	text, err := w.clipboard.ReadText(ctx)
	if err != nil {
		w.logger.Warn("failed to read clipboard", "error", err)
		return
	}

	if text == w.getLastSeen() || strings.TrimSpace(text) == "" {
		return
	}
	w.setLastSeen(text)

	if w.maxItemSize > 0 && len(text) > w.maxItemSize {
		w.logger.Warn("clipboard content too large, skipped", "size", len(text), "max_item_size", w.maxItemSize)
		return
	}

	rec, kept := w.history.Add(NewRecord(text, w.now()))
	if !kept {
		w.logger.Warn("history full of favorites, capture dropped", "type", rec.Type, "size", rec.Size)
		return
	}
	w.logger.Debug("clipboard captured", "id", rec.ID, "type", rec.Type, "size", rec.Size)

	if w.broker != nil {
		w.broker.Publish(ctx, Event{Kind: EventCaptured, Record: &rec})
	}
}

// CopyContent puts text on the clipboard and records it. Image data URIs
// are written as image data when the clipboard supports it. Text larger than
// the item size limit is rejected with ErrContentTooLarge.
func (w *Watcher) CopyContent(ctx context.Context, text string) (model.Record, error) {
	if strings.TrimSpace(text) == "" {
		return model.Record{}, driven.ErrEmptyClipboard
	}
	if w.maxItemSize > 0 && len(text) > w.maxItemSize {
		return model.Record{}, ErrContentTooLarge
	}
	return w.copy(ctx, text)
}

// CopyRecord copies the content of a stored record back to the clipboard.
func (w *Watcher) CopyRecord(ctx context.Context, id string) (model.Record, error) {
	rec, ok := w.history.Get(id)
	if !ok {
		return model.Record{}, ErrRecordNotFound
	}
	return w.copy(ctx, rec.Content)
}

// copy writes text and records it. The returned record is not in the
// history when a full history of favorites evicted it straight away.
func (w *Watcher) copy(ctx context.Context, text string) (model.Record, error) {
	if err := w.write(ctx, text); err != nil {
		return model.Record{}, err
	}
	w.setLastSeen(text)

	rec, kept := w.history.Add(NewRecord(text, w.now()))
	if kept && w.broker != nil {
		w.broker.Publish(ctx, Event{Kind: EventHistoryChanged, Record: &rec})
	}
	return rec, nil
}

// Current returns a record built from the clipboard without storing it.
// A blank clipboard yields nil.
func (w *Watcher) Current(ctx context.Context) (*model.Record, error) {
	text, err := w.clipboard.ReadText(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clipboard: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	rec := NewRecord(text, w.now())
	return &rec, nil
}

// ClearClipboard empties the clipboard. The history is left untouched.
func (w *Watcher) ClearClipboard(ctx context.Context) error {
	if err := w.clipboard.Clear(ctx); err != nil {
		return fmt.Errorf("clear clipboard: %w", err)
	}
	w.setLastSeen("")
	return nil
}

func (w *Watcher) write(ctx context.Context, text string) error {
	if content.IsImageDataURI(text) {
		data, err := decodeImageDataURI(text)
		if err != nil {
			w.logger.Warn("image data URI not decodable, copying as text", "error", err)
		} else {
			err = w.clipboard.WriteImage(ctx, data)
			if err == nil {
				return nil
			}
			if !errors.Is(err, driven.ErrImageUnsupported) {
				return fmt.Errorf("write clipboard image: %w", err)
			}
		}
	}

	if err := w.clipboard.WriteText(ctx, text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

func (w *Watcher) getLastSeen() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Watcher) setLastSeen(text string) {
	w.mu.Lock()
	w.lastSeen = text
	w.mu.Unlock()
}

// decodeImageDataURI turns a base64 data:image URI into PNG bytes.
func decodeImageDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, errors.New("data URI has no payload")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

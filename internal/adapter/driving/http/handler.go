// Package httphandler serves the clipboard history over a local JSON API.
package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/clipview/internal/adapter/driven/jsonfile"
	"github.com/ericfisherdev/clipview/internal/application"
	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

const (
	healthPath = "/api/v1/health"

	maxImportBytes  = 64 << 20
	maxRequestBytes = 16 << 20

	eventBuffer       = 16
	keepaliveInterval = 30 * time.Second
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	history *application.HistoryService
	watcher *application.Watcher
	broker  *application.Broker
	logger  *slog.Logger

	streamsDone chan struct{}
	closeOnce   sync.Once
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	history *application.HistoryService,
	watcher *application.Watcher,
	broker *application.Broker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		history: history,
		watcher: watcher,
		broker:  broker,
		logger:  logger,

		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends every open event stream and refuses new ones. Register
// it with http.Server.RegisterOnShutdown, since Shutdown does not cancel the
// context of active requests.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with auth, logging and recovery middleware.
func NewServeMux(h *Handler, token string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)

	mux.HandleFunc("GET /api/v1/history", h.ListHistory)
	mux.HandleFunc("DELETE /api/v1/history", h.ClearHistory)
	mux.HandleFunc("GET /api/v1/history/{id}", h.GetRecord)
	mux.HandleFunc("DELETE /api/v1/history/{id}", h.DeleteRecord)
	mux.HandleFunc("POST /api/v1/history/{id}/favorite", h.ToggleFavorite)
	mux.HandleFunc("POST /api/v1/history/{id}/tags", h.AddTag)
	mux.HandleFunc("DELETE /api/v1/history/{id}/tags/{tag}", h.RemoveTag)
	mux.HandleFunc("POST /api/v1/history/{id}/copy", h.CopyRecord)
	mux.HandleFunc("GET /api/v1/history/{id}/preview", h.PreviewRecord)

	mux.HandleFunc("GET /api/v1/clipboard", h.CurrentClipboard)
	mux.HandleFunc("POST /api/v1/clipboard", h.WriteClipboard)
	mux.HandleFunc("DELETE /api/v1/clipboard", h.ClearClipboard)

	mux.HandleFunc("POST /api/v1/cleanup", h.Cleanup)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/export", h.Export)
	mux.HandleFunc("POST /api/v1/import", h.Import)

	mux.HandleFunc("GET /api/v1/monitor", h.MonitorStatus)
	mux.HandleFunc("POST /api/v1/monitor/start", h.StartMonitor)
	mux.HandleFunc("POST /api/v1/monitor/stop", h.StopMonitor)

	mux.HandleFunc("GET /api/v1/events", h.Events)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = authMiddleware(token, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports liveness. It is the only unauthenticated route.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Time:       formatTime(time.Now()),
		Monitoring: h.watcher.IsMonitoring(),
		Records:    h.history.Stats().TotalItems,
	})
}

// ListHistory returns the history newest first. Query parameters q, type,
// favorites=true and limit narrow the result.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var records []model.Record
	if q := query.Get("q"); q != "" {
		records = h.history.Search(q)
	} else {
		records = h.history.List()
	}

	if t := query.Get("type"); t != "" {
		kind := model.ContentType(strings.ToLower(t))
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "unknown content type")
			return
		}
		records = filterRecords(records, func(rec model.Record) bool { return rec.Type == kind })
	}

	if fav := query.Get("favorites"); fav != "" {
		want, err := strconv.ParseBool(fav)
		if err != nil {
			writeError(w, http.StatusBadRequest, "favorites must be a boolean")
			return
		}
		if want {
			records = filterRecords(records, func(rec model.Record) bool { return rec.Favorite })
		}
	}

	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit > 0 && limit < len(records) {
			records = records[:limit]
		}
	}

	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

func filterRecords(records []model.Record, keep func(model.Record) bool) []model.Record {
	out := records[:0]
	for _, rec := range records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// ClearHistory removes every record, favorites included.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.history.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetRecord returns a single record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.history.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// DeleteRecord removes a single record.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if !h.history.Remove(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite flips the favorite flag of a record.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	favorite, ok := h.history.ToggleFavorite(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{ID: id, Favorite: favorite})
}

// AddTag attaches a tag to a record.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req TagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	if !h.history.AddTag(r.Context(), id, req.Tag) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	h.writeRecord(w, id)
}

// RemoveTag detaches a tag from a record.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !h.history.RemoveTag(r.Context(), id, r.PathValue("tag")) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	h.writeRecord(w, id)
}

func (h *Handler) writeRecord(w http.ResponseWriter, id string) {
	rec, ok := h.history.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// CopyRecord puts a stored record back on the clipboard.
func (h *Handler) CopyRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.watcher.CopyRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeCopyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// PreviewRecord renders a record for display.
func (h *Handler) PreviewRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.history.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, RenderPreview(rec))
}

// CurrentClipboard returns what is on the clipboard right now without
// recording it. An empty clipboard answers 204.
func (h *Handler) CurrentClipboard(w http.ResponseWriter, r *http.Request) {
	rec, err := h.watcher.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to read clipboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read clipboard")
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(*rec))
}

// WriteClipboard copies arbitrary content to the clipboard and records it.
func (h *Handler) WriteClipboard(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.watcher.CopyContent(r.Context(), req.Content)
	if err != nil {
		h.writeCopyError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// ClearClipboard empties the clipboard.
func (h *Handler) ClearClipboard(w http.ResponseWriter, r *http.Request) {
	if err := h.watcher.ClearClipboard(r.Context()); err != nil {
		h.logger.Error("failed to clear clipboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear clipboard")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCopyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record not found")
	case errors.Is(err, driven.ErrEmptyClipboard):
		writeError(w, http.StatusBadRequest, "content is required")
	case errors.Is(err, application.ErrContentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "content exceeds max item size")
	default:
		h.logger.Error("failed to write clipboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write clipboard")
	}
}

// Cleanup removes non-favorite records older than the requested number of
// days.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Days < 1 {
		writeError(w, http.StatusBadRequest, "days must be at least 1")
		return
	}

	removed := h.history.Cleanup(r.Context(), req.Days)
	writeJSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}

// Stats summarizes the history.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatsResponse(h.history.Stats(), h.history.MaxItems()))
}

// Export returns the full history as a history-file document.
func (h *Handler) Export(w http.ResponseWriter, _ *http.Request) {
	data, err := jsonfile.Encode(h.history.Export())
	if err != nil {
		h.logger.Error("failed to encode export", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="clipview-history.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import loads a history-file document. With merge=true the records are
// folded into the existing history; otherwise they replace it.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	merge := false
	if m := r.URL.Query().Get("merge"); m != "" {
		parsed, err := strconv.ParseBool(m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "merge must be a boolean")
			return
		}
		merge = parsed
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "import document too large")
		return
	}

	if err := jsonfile.Validate(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := jsonfile.Decode(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total := h.history.Import(r.Context(), snap.Records, merge)
	h.logger.Info("history imported", "records", len(snap.Records), "merge", merge, "total", total)

	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(snap.Records), Total: total})
}

// MonitorStatus reports whether the clipboard is being watched.
func (h *Handler) MonitorStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MonitorResponse{Monitoring: h.watcher.IsMonitoring()})
}

// StartMonitor starts clipboard monitoring.
func (h *Handler) StartMonitor(w http.ResponseWriter, r *http.Request) {
	changed, err := h.watcher.Start(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "watcher not running")
		return
	}
	writeJSON(w, http.StatusOK, MonitorResponse{Monitoring: h.watcher.IsMonitoring(), Changed: changed})
}

// StopMonitor stops clipboard monitoring.
func (h *Handler) StopMonitor(w http.ResponseWriter, r *http.Request) {
	changed, err := h.watcher.Stop(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "watcher not running")
		return
	}
	writeJSON(w, http.StatusOK, MonitorResponse{Monitoring: h.watcher.IsMonitoring(), Changed: changed})
}

// Events streams broker events as server-sent events until the client goes
// away or CloseStreams is called.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.streamsDone:
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	default:
	}

	rc := http.NewResponseController(w)
	// The stream outlives any server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream unsupported", "error", err)
		return
	}

	events, cancel := h.broker.Subscribe(eventBuffer)
	defer cancel()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streamsDone:
			return
		case <-keepalive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
		case ev := <-events:
			payload := EventResponse{Kind: string(ev.Kind), At: ev.At.UnixMilli()}
			if ev.Record != nil {
				rec := toRecordResponse(*ev.Record)
				payload.Record = &rec
			}

			data, err := json.Marshal(payload)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

package httphandler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
	"github.com/ericfisherdev/clipview/internal/application"
	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven/mocks"
)

const testToken = "test-token"

// --- Mock implementations ---

type memStore struct {
	mu    sync.Mutex
	saved []model.Snapshot
}

func (m *memStore) Load(_ context.Context) ([]model.Record, error) { return nil, nil }

func (m *memStore) Save(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snap)
	return nil
}

// --- Test fixture ---

type fixture struct {
	mux     http.Handler
	handler *httphandler.Handler
	clip    *mocks.MockClipboard
	history *application.HistoryService
	broker  *application.Broker
	watcher *application.Watcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithItemLimit(t, 0)
}

func newFixtureWithItemLimit(t *testing.T, maxItemSize int) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clip := mocks.NewMockClipboard(gomock.NewController(t))
	broker := application.NewBroker(logger)
	history := application.NewHistoryService(&memStore{}, broker, 100, time.Millisecond, logger)
	watcher := application.NewWatcher(clip, history, broker, time.Hour, maxItemSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	h := httphandler.NewHandler(history, watcher, broker, logger)
	return &fixture{
		mux:     httphandler.NewServeMux(h, testToken, logger),
		handler: h,
		clip:    clip,
		history: history,
		broker:  broker,
		watcher: watcher,
	}
}

func (f *fixture) seed(text string, at time.Time) model.Record {
	return f.history.Upsert(application.NewRecord(text, at))
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// --- Tests ---

func TestAuth(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "health is public", path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "missing token", path: "/api/v1/history", wantStatus: http.StatusUnauthorized},
		{name: "wrong token", path: "/api/v1/history", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/api/v1/history", header: "Basic " + testToken, wantStatus: http.StatusUnauthorized},
		{name: "valid token", path: "/api/v1/history", header: "Bearer " + testToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			f.mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.seed("one", base)

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Records)
	assert.False(t, resp.Monitoring)
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	f.seed("Hello world", base)
	html := f.seed("<p>markup</p>", base.Add(time.Minute))
	f.seed("hello again", base.Add(2*time.Minute))
	f.history.ToggleFavorite(context.Background(), html.ID)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []string
	}{
		{name: "all newest first", query: "", wantStatus: http.StatusOK, want: []string{"hello again", "<p>markup</p>", "Hello world"}},
		{name: "search", query: "?q=HELLO", wantStatus: http.StatusOK, want: []string{"hello again", "Hello world"}},
		{name: "by type", query: "?type=html", wantStatus: http.StatusOK, want: []string{"<p>markup</p>"}},
		{name: "favorites", query: "?favorites=true", wantStatus: http.StatusOK, want: []string{"<p>markup</p>"}},
		{name: "search and limit", query: "?q=hello&limit=1", wantStatus: http.StatusOK, want: []string{"hello again"}},
		{name: "unknown type", query: "?type=video", wantStatus: http.StatusBadRequest},
		{name: "bad favorites", query: "?favorites=maybe", wantStatus: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/history"+tt.query, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp []httphandler.RecordResponse
			decodeJSON(t, rec, &resp)
			got := make([]string, len(resp))
			for i, r := range resp {
				got[i] = r.Content
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetRecord(t *testing.T) {
	f := newFixture(t)
	stored := f.seed("fetch me", base)

	rec := f.do(t, http.MethodGet, "/api/v1/history/"+stored.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.RecordResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, stored.ID, resp.ID)
	assert.Equal(t, "text", resp.Type)
	assert.Equal(t, base.UnixMilli(), resp.Timestamp)
	assert.Equal(t, []string{}, resp.Tags)

	rec = f.do(t, http.MethodGet, "/api/v1/history/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRecordAndClear(t *testing.T) {
	f := newFixture(t)
	a := f.seed("a", base)
	f.seed("b", base.Add(time.Second))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/history/"+a.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/history/"+a.ID, "").Code)
	assert.Len(t, f.history.List(), 1)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/history", "").Code)
	assert.Empty(t, f.history.List())
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)
	stored := f.seed("star me", base)

	rec := f.do(t, http.MethodPost, "/api/v1/history/"+stored.ID+"/favorite", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.FavoriteResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Favorite)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/history/nope/favorite", "").Code)
}

func TestTags(t *testing.T) {
	f := newFixture(t)
	stored := f.seed("tag me", base)
	path := "/api/v1/history/" + stored.ID + "/tags"

	rec := f.do(t, http.MethodPost, path, `{"tag": "work"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.RecordResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, []string{"work"}, resp.Tags)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `{"tag": "  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `not json`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/history/nope/tags", `{"tag": "x"}`).Code)

	rec = f.do(t, http.MethodDelete, path+"/work", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &resp)
	assert.Empty(t, resp.Tags)
}

func TestCopyRecord(t *testing.T) {
	f := newFixture(t)
	stored := f.seed("copy me", base)
	f.clip.EXPECT().WriteText(gomock.Any(), "copy me").Return(nil)

	rec := f.do(t, http.MethodPost, "/api/v1/history/"+stored.ID+"/copy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/history/nope/copy", "").Code)
}

func TestWriteClipboard(t *testing.T) {
	f := newFixture(t)
	f.clip.EXPECT().WriteText(gomock.Any(), "fresh text").Return(nil)

	rec := f.do(t, http.MethodPost, "/api/v1/clipboard", `{"content": "fresh text"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.RecordResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "fresh text", resp.Content)
	assert.Len(t, f.history.List(), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/clipboard", `{"content": ""}`).Code)
}

func TestWriteClipboard_TooLarge(t *testing.T) {
	f := newFixtureWithItemLimit(t, 8)

	rec := f.do(t, http.MethodPost, "/api/v1/clipboard", `{"content": "123456789"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, f.history.List())
}

func TestCurrentClipboard(t *testing.T) {
	f := newFixture(t)
	gomock.InOrder(
		f.clip.EXPECT().ReadText(gomock.Any()).Return("on the clipboard", nil),
		f.clip.EXPECT().ReadText(gomock.Any()).Return("", nil),
	)

	rec := f.do(t, http.MethodGet, "/api/v1/clipboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.RecordResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "on the clipboard", resp.Content)
	assert.Empty(t, f.history.List())

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/api/v1/clipboard", "").Code)
}

func TestClearClipboard(t *testing.T) {
	f := newFixture(t)
	f.clip.EXPECT().Clear(gomock.Any()).Return(nil)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/clipboard", "").Code)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	f.seed("ancient", time.Now().Add(-60*24*time.Hour))
	f.seed("today", time.Now())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/cleanup", `{"days": 0}`).Code)

	rec := f.do(t, http.MethodPost, "/api/v1/cleanup", `{"days": 30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.CleanupResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 1, resp.Removed)
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty httphandler.StatsResponse
	decodeJSON(t, rec, &empty)
	assert.Zero(t, empty.TotalItems)
	assert.Nil(t, empty.Oldest)
	assert.Equal(t, 100, empty.MaxItems)
	assert.Contains(t, empty.ByType, "mermaid")

	f.seed("a", base)
	f.seed("<b>b</b>", base.Add(time.Hour))

	rec = f.do(t, http.MethodGet, "/api/v1/stats", "")
	var resp httphandler.StatsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.TotalItems)
	assert.Equal(t, 1, resp.ByType["html"])
	require.NotNil(t, resp.Oldest)
	assert.Equal(t, base.UnixMilli(), *resp.Oldest)
}

func TestExportImport(t *testing.T) {
	src := newFixture(t)
	src.seed("exported one", base)
	src.seed("exported two", base.Add(time.Minute))

	rec := src.do(t, http.MethodGet, "/api/v1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	exported := rec.Body.String()

	dst := newFixture(t)
	dst.seed("local", base.Add(time.Hour))

	rec = dst.do(t, http.MethodPost, "/api/v1/import?merge=true", exported)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.ImportResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 3, resp.Total)

	rec = dst.do(t, http.MethodPost, "/api/v1/import", exported)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dst.history.List(), 2)
}

func TestImport_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "not json", path: "/api/v1/import", body: `{`},
		{name: "schema violation", path: "/api/v1/import", body: `{"items": [{"id": "x", "type": "video", "content": "c", "timestamp": 1}]}`},
		{name: "bad merge flag", path: "/api/v1/import?merge=perhaps", body: `{"items": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPreviewRecord(t *testing.T) {
	f := newFixture(t)
	md := f.seed("# Notes\n\n- one\n- two\n\n```go\nx := 1\n```", base)

	rec := f.do(t, http.MethodGet, "/api/v1/history/"+md.ID+"/preview", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.PreviewResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, httphandler.FormatMarkdown, resp.Format)
	assert.Contains(t, resp.HTML, "<h1")
	require.NotNil(t, resp.Document)
	assert.Equal(t, "Notes", resp.Document.Title)
	require.Len(t, resp.Code, 1)
	assert.Equal(t, "go", resp.Code[0].Language)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/history/nope/preview", "").Code)
}

func TestMonitor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/monitor/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.MonitorResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Monitoring)
	assert.True(t, resp.Changed)

	rec = f.do(t, http.MethodGet, "/api/v1/monitor", "")
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Monitoring)

	rec = f.do(t, http.MethodPost, "/api/v1/monitor/stop", "")
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.Monitoring)
	assert.True(t, resp.Changed)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return f.broker.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	stored := f.seed("watch me", base)
	f.history.ToggleFavorite(context.Background(), stored.ID)

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	require.NoError(t, scanner.Err())

	assert.Equal(t, "history_changed", event)
	var payload httphandler.EventResponse
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.Equal(t, "history_changed", payload.Kind)
	assert.Positive(t, payload.At)
}

func TestEvents_ShutdownClosesStreams(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewUnstartedServer(f.mux)
	srv.Config.RegisterOnShutdown(f.handler.CloseStreams)
	srv.Start()
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return f.broker.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()

	require.NoError(t, srv.Config.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)

	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Zero(t, f.broker.SubscriberCount())

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/v1/events", "").Code)
}

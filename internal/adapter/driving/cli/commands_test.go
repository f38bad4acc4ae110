package cli_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ericfisherdev/clipview/internal/adapter/driving/cli"
	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
	"github.com/ericfisherdev/clipview/internal/application"
	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven/mocks"
)

const testToken = "cli-token"

type nopStore struct{}

func (nopStore) Load(context.Context) ([]model.Record, error) { return nil, nil }
func (nopStore) Save(context.Context, model.Snapshot) error    { return nil }

type daemon struct {
	addr    string
	history *application.HistoryService
	clip    *mocks.MockClipboard
	connect cli.Connector
}

func newDaemon(t *testing.T) *daemon {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clip := mocks.NewMockClipboard(gomock.NewController(t))
	broker := application.NewBroker(logger)
	history := application.NewHistoryService(nopStore{}, broker, 50, time.Millisecond, logger)
	watcher := application.NewWatcher(clip, history, broker, time.Hour, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	h := httphandler.NewHandler(history, watcher, broker, logger)
	srv := httptest.NewServer(httphandler.NewServeMux(h, testToken, logger))
	t.Cleanup(srv.Close)

	addr := strings.TrimPrefix(srv.URL, "http://")
	return &daemon{
		addr:    addr,
		history: history,
		clip:    clip,
		connect: func() (*cli.Client, error) { return cli.NewClient(addr, testToken), nil },
	}
}

// run executes one subcommand and returns its stdout.
func (d *daemon) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "clipview", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(cli.NewCommands(d.connect)...)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (d *daemon) seed(text string, at time.Time) model.Record {
	return d.history.Upsert(application.NewRecord(text, at))
}

func TestList(t *testing.T) {
	d := newDaemon(t)
	d.seed("first entry", time.Now().Add(-time.Hour))
	d.seed("second entry", time.Now())

	out, err := d.run(t, "", "list")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "second entry"), strings.Index(out, "first entry"))
	assert.Contains(t, out, "1 hour ago")

	out, err = d.run(t, "", "list", "--limit", "1", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"content": "second entry"`)
	assert.NotContains(t, out, "first entry")
}

func TestList_Empty(t *testing.T) {
	d := newDaemon(t)

	out, err := d.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no records")
}

func TestSearch(t *testing.T) {
	d := newDaemon(t)
	d.seed("alpha beta", time.Now())
	d.seed("gamma", time.Now())

	out, err := d.run(t, "", "search", "ALPHA")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha beta")
	assert.NotContains(t, out, "gamma")
}

func TestShow_ByPrefix(t *testing.T) {
	d := newDaemon(t)
	rec := d.seed("show this one", time.Now())

	out, err := d.run(t, "", "show", rec.ID[:8])
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "show this one")

	_, err = d.run(t, "", "show", "zzzz")
	assert.ErrorContains(t, err, "no record matches")
}

func TestShow_Preview(t *testing.T) {
	d := newDaemon(t)
	rec := d.seed("# Plan\n\n## Step one\n\nDo it.", time.Now())

	out, err := d.run(t, "", "show", "--preview", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "format: markdown")
	assert.Contains(t, out, "- Plan")
	assert.Contains(t, out, "  - Step one")
}

func TestCopyAndPut(t *testing.T) {
	d := newDaemon(t)
	rec := d.seed("stored", time.Now().Add(-time.Minute))

	gomock.InOrder(
		d.clip.EXPECT().WriteText(gomock.Any(), "stored").Return(nil),
		d.clip.EXPECT().WriteText(gomock.Any(), "from stdin").Return(nil),
		d.clip.EXPECT().WriteText(gomock.Any(), "from args").Return(nil),
	)

	out, err := d.run(t, "", "copy", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "copied "+rec.ID[:8])

	_, err = d.run(t, "from stdin", "put")
	require.NoError(t, err)

	out, err = d.run(t, "", "put", "from args")
	require.NoError(t, err)
	assert.Contains(t, out, "(text)")

	assert.Len(t, d.history.List(), 3)
}

func TestFavoriteAndTags(t *testing.T) {
	d := newDaemon(t)
	rec := d.seed("keep me", time.Now())

	out, err := d.run(t, "", "fav", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "starred")

	out, err = d.run(t, "", "tag", "add", rec.ID, "work")
	require.NoError(t, err)
	assert.Contains(t, out, "tags: work")

	got, ok := d.history.Get(rec.ID)
	require.True(t, ok)
	assert.True(t, got.Favorite)
	assert.Equal(t, []string{"work"}, got.Tags)

	_, err = d.run(t, "", "tag", "rm", rec.ID, "work")
	require.NoError(t, err)
	got, _ = d.history.Get(rec.ID)
	assert.Empty(t, got.Tags)
}

func TestRemoveClearCleanup(t *testing.T) {
	d := newDaemon(t)
	a := d.seed("a", time.Now())
	d.seed("old", time.Now().Add(-40*24*time.Hour))
	d.seed("c", time.Now())

	_, err := d.run(t, "", "rm", a.ID)
	require.NoError(t, err)
	assert.Len(t, d.history.List(), 2)

	out, err := d.run(t, "", "cleanup", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 record(s)")

	_, err = d.run(t, "", "cleanup", "--days", "0")
	assert.Error(t, err)

	_, err = d.run(t, "", "clear")
	require.NoError(t, err)
	assert.Empty(t, d.history.List())
}

func TestStats(t *testing.T) {
	d := newDaemon(t)
	d.seed("<p>x</p>", time.Now())

	out, err := d.run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 50")
	assert.Contains(t, out, "html")
}

func TestExportImport(t *testing.T) {
	src := newDaemon(t)
	src.seed("portable", time.Now())

	path := filepath.Join(t.TempDir(), "export.json")
	_, err := src.run(t, "", "export", path)
	require.NoError(t, err)

	dst := newDaemon(t)
	dst.seed("local", time.Now().Add(-time.Minute))

	out, err := dst.run(t, "", "import", "--merge", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 record(s), history now holds 2")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"items": "nope"}`), 0o600))
	_, err = dst.run(t, "", "import", bad)
	assert.Error(t, err)
	assert.Len(t, dst.history.List(), 2)
}

func TestMonitor(t *testing.T) {
	d := newDaemon(t)

	out, err := d.run(t, "", "monitor")
	require.NoError(t, err)
	assert.Contains(t, out, "monitoring stopped")

	out, err = d.run(t, "", "monitor", "start")
	require.NoError(t, err)
	assert.Contains(t, out, "monitoring running")

	out, err = d.run(t, "", "monitor", "start")
	require.NoError(t, err)
	assert.Contains(t, out, "(unchanged)")

	_, err = d.run(t, "", "monitor", "pause")
	assert.Error(t, err)
}

func TestCurrent(t *testing.T) {
	d := newDaemon(t)
	gomock.InOrder(
		d.clip.EXPECT().ReadText(gomock.Any()).Return("now", nil),
		d.clip.EXPECT().ReadText(gomock.Any()).Return("", nil),
	)

	out, err := d.run(t, "", "current")
	require.NoError(t, err)
	assert.Equal(t, "now\n", out)

	_, err = d.run(t, "", "current")
	assert.ErrorContains(t, err, "clipboard is empty")
}

func TestSchema(t *testing.T) {
	root := &cobra.Command{Use: "clipview"}
	root.AddCommand(cli.NewCommands(func() (*cli.Client, error) {
		t.Fatal("schema must not contact the daemon")
		return nil, nil
	})...)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"schema"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"items"`)
}

func TestUnauthorized(t *testing.T) {
	d := newDaemon(t)

	c := cli.NewClient(d.addr, "wrong")
	_, err := c.Stats(context.Background())

	var apiErr *cli.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.False(t, cli.IsNotFound(err))
}

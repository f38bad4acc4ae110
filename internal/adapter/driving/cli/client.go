// Package cli is the command-line front end. Every command talks to a running
// clipview daemon over its local HTTP API using the token the daemon wrote to
// the data directory.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
)

const requestTimeout = 10 * time.Second

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the daemon API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client for the daemon listening on addr.
func NewClient(addr, token string) *Client {
	return &Client{
		baseURL: "http://" + addr + "/api/v1",
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// ListOptions narrows List.
type ListOptions struct {
	Query     string
	Type      string
	Favorites bool
	Limit     int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Query != "" {
		v.Set("q", o.Query)
	}
	if o.Type != "" {
		v.Set("type", o.Type)
	}
	if o.Favorites {
		v.Set("favorites", "true")
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

// List returns records newest first.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]httphandler.RecordResponse, error) {
	var out []httphandler.RecordResponse
	err := c.do(ctx, http.MethodGet, "/history?"+opts.values().Encode(), nil, &out)
	return out, err
}

// Get returns one record.
func (c *Client) Get(ctx context.Context, id string) (httphandler.RecordResponse, error) {
	var out httphandler.RecordResponse
	err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Preview returns the rendered view of one record.
func (c *Client) Preview(ctx context.Context, id string) (httphandler.PreviewResponse, error) {
	var out httphandler.PreviewResponse
	err := c.do(ctx, http.MethodGet, "/history/"+url.PathEscape(id)+"/preview", nil, &out)
	return out, err
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/history/"+url.PathEscape(id), nil, nil)
}

// Clear removes every record.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/history", nil, nil)
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (c *Client) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var out httphandler.FavoriteResponse
	err := c.do(ctx, http.MethodPost, "/history/"+url.PathEscape(id)+"/favorite", nil, &out)
	return out.Favorite, err
}

// AddTag attaches tag to a record.
func (c *Client) AddTag(ctx context.Context, id, tag string) (httphandler.RecordResponse, error) {
	var out httphandler.RecordResponse
	err := c.do(ctx, http.MethodPost, "/history/"+url.PathEscape(id)+"/tags", httphandler.TagRequest{Tag: tag}, &out)
	return out, err
}

// RemoveTag detaches tag from a record.
func (c *Client) RemoveTag(ctx context.Context, id, tag string) (httphandler.RecordResponse, error) {
	var out httphandler.RecordResponse
	err := c.do(ctx, http.MethodDelete, "/history/"+url.PathEscape(id)+"/tags/"+url.PathEscape(tag), nil, &out)
	return out, err
}

// Copy puts a stored record back on the clipboard.
func (c *Client) Copy(ctx context.Context, id string) (httphandler.RecordResponse, error) {
	var out httphandler.RecordResponse
	err := c.do(ctx, http.MethodPost, "/history/"+url.PathEscape(id)+"/copy", nil, &out)
	return out, err
}

// Put writes text to the clipboard and records it.
func (c *Client) Put(ctx context.Context, text string) (httphandler.RecordResponse, error) {
	var out httphandler.RecordResponse
	err := c.do(ctx, http.MethodPost, "/clipboard", httphandler.CopyRequest{Content: text}, &out)
	return out, err
}

// Current returns what is on the clipboard, or nil when it is empty.
func (c *Client) Current(ctx context.Context) (*httphandler.RecordResponse, error) {
	var out *httphandler.RecordResponse
	err := c.do(ctx, http.MethodGet, "/clipboard", nil, &out)
	return out, err
}

// ClearClipboard empties the clipboard.
func (c *Client) ClearClipboard(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/clipboard", nil, nil)
}

// Cleanup removes non-favorite records older than days.
func (c *Client) Cleanup(ctx context.Context, days int) (int, error) {
	var out httphandler.CleanupResponse
	err := c.do(ctx, http.MethodPost, "/cleanup", httphandler.CleanupRequest{Days: days}, &out)
	return out.Removed, err
}

// Stats summarizes the history.
func (c *Client) Stats(ctx context.Context) (httphandler.StatsResponse, error) {
	var out httphandler.StatsResponse
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

// Export returns the raw history document.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/export", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}

// Import uploads a history document.
func (c *Client) Import(ctx context.Context, doc []byte, merge bool) (httphandler.ImportResponse, error) {
	var out httphandler.ImportResponse

	resp, err := c.send(ctx, http.MethodPost, "/import?merge="+strconv.FormatBool(merge), bytes.NewReader(doc), "application/json")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode import response: %w", err)
	}
	return out, nil
}

// Monitor reports, starts or stops clipboard monitoring. action is "",
// "start" or "stop".
func (c *Client) Monitor(ctx context.Context, action string) (httphandler.MonitorResponse, error) {
	var out httphandler.MonitorResponse

	method, path := http.MethodGet, "/monitor"
	if action != "" {
		method, path = http.MethodPost, "/monitor/"+action
	}
	err := c.do(ctx, method, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		var apiErr httphandler.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	return resp, nil
}

package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RecordResponse is the JSON representation of a history record. Field names
// and the millisecond timestamp match the history file.
type RecordResponse struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	Preview   string   `json:"preview"`
	Timestamp int64    `json:"timestamp"`
	Favorite  bool     `json:"favorite"`
	Tags      []string `json:"tags"`
	Size      int      `json:"size"`
}

// StatsResponse summarizes the history.
type StatsResponse struct {
	TotalItems    int            `json:"total_items"`
	FavoriteItems int            `json:"favorite_items"`
	ByType        map[string]int `json:"by_type"`
	Oldest        *int64         `json:"oldest,omitempty"`
	Newest        *int64         `json:"newest,omitempty"`
	MaxItems      int            `json:"max_items"`
}

// MonitorResponse reports the watcher state.
type MonitorResponse struct {
	Monitoring bool `json:"monitoring"`
	Changed    bool `json:"changed"`
}

// FavoriteResponse is returned after toggling a favorite.
type FavoriteResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// CleanupRequest is the JSON body for the cleanup endpoint.
type CleanupRequest struct {
	Days int `json:"days"`
}

// CleanupResponse reports how many records a cleanup removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// ImportResponse reports the history size after an import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// TagRequest is the JSON body for the add tag endpoint.
type TagRequest struct {
	Tag string `json:"tag"`
}

// CopyRequest is the JSON body for writing arbitrary content to the clipboard.
type CopyRequest struct {
	Content string `json:"content"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	Monitoring bool   `json:"monitoring"`
	Records    int    `json:"records"`
}

// EventResponse is the data payload of one server-sent event.
type EventResponse struct {
	Kind   string          `json:"kind"`
	At     int64           `json:"at"`
	Record *RecordResponse `json:"record,omitempty"`
}

// toRecordResponse converts a domain Record to its JSON representation.
func toRecordResponse(r model.Record) RecordResponse {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	return RecordResponse{
		ID:        r.ID,
		Type:      string(r.Type),
		Content:   r.Content,
		Preview:   r.Preview,
		Timestamp: r.Timestamp.UnixMilli(),
		Favorite:  r.Favorite,
		Tags:      tags,
		Size:      r.Size,
	}
}

func toRecordResponses(records []model.Record) []RecordResponse {
	resp := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, toRecordResponse(r))
	}
	return resp
}

// toStatsResponse converts domain Stats to its JSON representation. Every
// known content type is present in by_type.
func toStatsResponse(s model.Stats, maxItems int) StatsResponse {
	byType := make(map[string]int, len(model.ContentTypes))
	for _, t := range model.ContentTypes {
		byType[string(t)] = s.ByType[t]
	}

	resp := StatsResponse{
		TotalItems:    s.TotalItems,
		FavoriteItems: s.FavoriteItems,
		ByType:        byType,
		MaxItems:      maxItems,
	}
	if s.TotalItems > 0 {
		oldest, newest := s.Oldest.UnixMilli(), s.Newest.UnixMilli()
		resp.Oldest, resp.Newest = &oldest, &newest
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

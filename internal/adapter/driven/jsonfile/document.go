package jsonfile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// FormatVersion is written into every history document.
const FormatVersion = "1.0.0"

// document is the on-disk shape of the history file.
type document struct {
	Items       []item `json:"items" jsonschema:"required"`
	LastUpdated int64  `json:"lastUpdated" jsonschema:"description=Unix milliseconds of the last write"`
	Version     string `json:"version"`
}

// item is one record inside a history document. Timestamps are Unix
// milliseconds.
type item struct {
	ID        string   `json:"id" jsonschema:"required,minLength=1"`
	Type      string   `json:"type" jsonschema:"required,enum=text,enum=image,enum=file,enum=html,enum=mermaid"`
	Content   string   `json:"content" jsonschema:"required"`
	Preview   string   `json:"preview"`
	Timestamp int64    `json:"timestamp" jsonschema:"required"`
	Favorite  bool     `json:"favorite"`
	Tags      []string `json:"tags"`
	Size      int      `json:"size"`
}

func toItem(r model.Record) item {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return item{
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

func (it item) toRecord() model.Record {
	return model.Record{
		ID:        it.ID,
		Type:      model.ContentType(it.Type),
		Content:   it.Content,
		Preview:   it.Preview,
		Timestamp: time.UnixMilli(it.Timestamp),
		Favorite:  it.Favorite,
		Tags:      it.Tags,
		Size:      it.Size,
	}
}

// Encode renders snap as an indented history document.
func Encode(snap model.Snapshot) ([]byte, error) {
	doc := document{
		Items:       make([]item, len(snap.Records)),
		LastUpdated: snap.LastUpdated.UnixMilli(),
		Version:     FormatVersion,
	}
	for i, r := range snap.Records {
		doc.Items[i] = toItem(r)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return data, nil
}

// Decode parses a history document. Records are returned in file order.
func Decode(data []byte) (model.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Snapshot{}, fmt.Errorf("unmarshal history: %w", err)
	}

	snap := model.Snapshot{
		Records: make([]model.Record, 0, len(doc.Items)),
	}
	if doc.LastUpdated > 0 {
		snap.LastUpdated = time.UnixMilli(doc.LastUpdated)
	}
	for _, it := range doc.Items {
		snap.Records = append(snap.Records, it.toRecord())
	}
	return snap, nil
}

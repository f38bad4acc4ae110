// Package application contains use-case orchestration services.
package application

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/content"
	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// ErrRecordNotFound is returned when an operation names an id that is not in
// the history.
var ErrRecordNotFound = errors.New("record not found")

// ErrContentTooLarge is returned when content exceeds the item size limit.
var ErrContentTooLarge = errors.New("content exceeds item size limit")

// NewRecord builds a history record for text captured at the given time. The
// timestamp is truncated to the millisecond precision history files keep,
// and the id hashes the content together with it.
func NewRecord(text string, at time.Time) model.Record {
	at = at.Truncate(time.Millisecond)
	kind := content.Classify(text)

	return model.Record{
		ID:        recordID(text, at),
		Type:      kind,
		Content:   text,
		Preview:   content.Preview(text, kind),
		Timestamp: at,
		Tags:      []string{},
		Size:      len(text),
	}
}

func recordID(text string, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte(strconv.FormatInt(at.UnixMilli(), 10)))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

package driven

import (
	"context"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// HistoryStore defines the driven port for history persistence. Save
// replaces everything previously stored with the snapshot. Load returns the
// stored records in any order; an absent store yields an empty slice.
type HistoryStore interface {
	Load(ctx context.Context) ([]model.Record, error)
	Save(ctx context.Context, snapshot model.Snapshot) error
}

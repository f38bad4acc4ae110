package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HistoryStore = (*HistoryRepo)(nil)

const metaLastUpdated = "last_updated"

// HistoryRepo is the SQLite implementation of the HistoryStore port interface.
// Each Save replaces the full table inside one transaction.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new HistoryRepo backed by the given DB.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Load returns every stored record, newest first.
func (r *HistoryRepo) Load(ctx context.Context) ([]model.Record, error) {
	const query = `SELECT id, type, content, preview, timestamp, favorite, tags, size
		FROM clipboard_records ORDER BY position ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query clipboard records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clipboard records: %w", err)
	}

	return records, nil
}

// LastUpdated returns the time of the last Save, or the zero time when
// nothing has been saved yet.
func (r *HistoryRepo) LastUpdated(ctx context.Context) (time.Time, error) {
	const query = `SELECT value FROM history_meta WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, metaLastUpdated).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last updated: %w", err)
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last updated %q: %w", value, err)
	}
	return time.UnixMilli(ms), nil
}

// Save replaces the stored history with snap.
func (r *HistoryRepo) Save(ctx context.Context, snap model.Snapshot) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM clipboard_records`); err != nil {
		return fmt.Errorf("clear clipboard records: %w", err)
	}

	const insert = `INSERT INTO clipboard_records
		(id, position, type, content, preview, timestamp, favorite, tags, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range snap.Records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", rec.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			rec.ID, i, string(rec.Type), rec.Content, rec.Preview,
			rec.Timestamp.UnixMilli(), boolToInt(rec.Favorite), string(tagsJSON), rec.Size,
		)
		if err != nil {
			return fmt.Errorf("insert clipboard record %s: %w", rec.ID, err)
		}
	}

	const upsertMeta = `INSERT INTO history_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	lastUpdated := strconv.FormatInt(snap.LastUpdated.UnixMilli(), 10)
	if _, err := tx.ExecContext(ctx, upsertMeta, metaLastUpdated, lastUpdated); err != nil {
		return fmt.Errorf("update last updated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}

	return nil
}

func scanRecord(rows *sql.Rows) (model.Record, error) {
	var (
		rec       model.Record
		kind      string
		timestamp int64
		favorite  int
		tagsJSON  string
	)

	err := rows.Scan(&rec.ID, &kind, &rec.Content, &rec.Preview, &timestamp, &favorite, &tagsJSON, &rec.Size)
	if err != nil {
		return model.Record{}, fmt.Errorf("scan clipboard record: %w", err)
	}

	rec.Type = model.ContentType(kind)
	rec.Timestamp = time.UnixMilli(timestamp)
	rec.Favorite = favorite != 0

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return model.Record{}, fmt.Errorf("unmarshal tags for %s: %w", rec.ID, err)
	}

	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

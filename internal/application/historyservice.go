package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/clipview/internal/domain/content"
	"github.com/ericfisherdev/clipview/internal/domain/model"
	"github.com/ericfisherdev/clipview/internal/domain/port/driven"
)

// maxCleanupDays bounds the cleanup age so the cutoff date stays
// representable. Nothing in a history is older than this.
const maxCleanupDays = 100 * 366

// HistoryService owns the in-memory clipboard history. Records are kept
// newest first, at most one per distinct content, and never more than the
// configured maximum. Every mutation queues a snapshot for the persistence
// loop in Run; mutations never wait on disk I/O.
type HistoryService struct {
	store      driven.HistoryStore
	broker     *Broker
	retryDelay time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	records  []model.Record
	maxItems int

	pending chan model.Snapshot
}

// NewHistoryService creates an empty HistoryService. Call Load to populate
// it from the store and Run to start persisting.
func NewHistoryService(
	store driven.HistoryStore,
	broker *Broker,
	maxItems int,
	retryDelay time.Duration,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		store:      store,
		broker:     broker,
		retryDelay: retryDelay,
		logger:     logger,
		maxItems:   maxItems,
		pending:    make(chan model.Snapshot, 1),
	}
}

// Load replaces the in-memory history with the stored one. A store error
// leaves the history empty; startup never fails on a bad history file.
// Returns the number of records loaded.
func (s *HistoryService) Load(ctx context.Context) int {
	records, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load history, starting empty", "error", err)
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = normalize(records)
	if s.evictLocked() > 0 {
		s.enqueueLocked()
	}

	return len(s.records)
}

// Run writes queued snapshots until ctx is canceled. The newest queued
// snapshot replaces any older one that has not been written yet.
func (s *HistoryService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.pending:
			if err := s.write(ctx, snap); err != nil {
				s.logger.Error("history write dropped", "error", err, "records", len(snap.Records))
			}
		}
	}
}

// Flush synchronously writes the current history, discarding any queued
// snapshot.
func (s *HistoryService) Flush(ctx context.Context) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	select {
	case <-s.pending:
	default:
	}
	s.mu.Unlock()

	return s.write(ctx, snap)
}

// write saves snap, retrying once after retryDelay on failure.
func (s *HistoryService) write(ctx context.Context, snap model.Snapshot) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), 1),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		s.logger.Warn("history write failed, retrying", "error", err, "retry_in", next)
	}

	err := backoff.RetryNotify(func() error {
		return s.store.Save(ctx, snap)
	}, policy, notify)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	return nil
}

// Upsert stores rec. When a record with identical content exists, that
// record keeps its id, favorite flag and tags, takes rec's timestamp and
// moves to its new position. Returns the stored record.
func (s *HistoryService) Upsert(rec model.Record) model.Record {
	stored, _ := s.Add(rec)
	return stored
}

// Add is Upsert that also reports whether the record survived eviction. A
// non-favorite added to a full history of favorites is dropped at once.
func (s *HistoryService) Add(rec model.Record) (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := rec.Clone()
	if stored.Tags == nil {
		stored.Tags = []string{}
	}

	if idx := s.indexOfContentLocked(rec.Content); idx >= 0 {
		prev := s.records[idx]
		s.records = slices.Delete(s.records, idx, idx+1)

		timestamp := stored.Timestamp
		stored = prev
		stored.Timestamp = timestamp
	}

	s.insertLocked(stored)
	s.evictLocked()
	s.enqueueLocked()

	return stored.Clone(), s.indexOfIDLocked(stored.ID) >= 0
}

// Get returns the record with the given id.
func (s *HistoryService) Get(id string) (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfIDLocked(id)
	if idx < 0 {
		return model.Record{}, false
	}
	return s.records[idx].Clone(), true
}

// List returns the full history, newest first.
func (s *HistoryService) List() []model.Record {
	return s.filter(func(model.Record) bool { return true })
}

// Search returns records whose content, preview or any tag contains q,
// ignoring case.
func (s *HistoryService) Search(q string) []model.Record {
	needle := strings.ToLower(q)
	return s.filter(func(r model.Record) bool {
		if strings.Contains(strings.ToLower(r.Content), needle) ||
			strings.Contains(strings.ToLower(r.Preview), needle) {
			return true
		}
		for _, tag := range r.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		return false
	})
}

// Favorites returns favorite records, newest first.
func (s *HistoryService) Favorites() []model.Record {
	return s.filter(func(r model.Record) bool { return r.Favorite })
}

// ByType returns records of the given type, newest first.
func (s *HistoryService) ByType(t model.ContentType) []model.Record {
	return s.filter(func(r model.Record) bool { return r.Type == t })
}

func (s *HistoryService) filter(keep func(model.Record) bool) []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Remove deletes the record with the given id. Returns false when no such
// record exists.
func (s *HistoryService) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := s.indexOfIDLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.records = slices.Delete(s.records, idx, idx+1)
	s.enqueueLocked()
	s.mu.Unlock()

	s.notifyChanged(ctx)
	return true
}

// ToggleFavorite flips the favorite flag of a record and returns the new
// value. ok is false when no such record exists.
func (s *HistoryService) ToggleFavorite(ctx context.Context, id string) (favorite, ok bool) {
	s.mu.Lock()
	idx := s.indexOfIDLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, false
	}
	s.records[idx].Favorite = !s.records[idx].Favorite
	favorite = s.records[idx].Favorite
	s.enqueueLocked()
	s.mu.Unlock()

	s.notifyChanged(ctx)
	return favorite, true
}

// AddTag appends tag to a record unless it is already present. Returns false
// when the record does not exist or the tag is blank.
func (s *HistoryService) AddTag(ctx context.Context, id, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}

	s.mu.Lock()
	idx := s.indexOfIDLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	changed := !s.records[idx].HasTag(tag)
	if changed {
		s.records[idx].Tags = append(s.records[idx].Tags, tag)
		s.enqueueLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notifyChanged(ctx)
	}
	return true
}

// RemoveTag removes tag from a record. Returns false when the record does
// not exist; removing an absent tag is not a failure.
func (s *HistoryService) RemoveTag(ctx context.Context, id, tag string) bool {
	s.mu.Lock()
	idx := s.indexOfIDLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	tags := s.records[idx].Tags
	pos := slices.Index(tags, tag)
	if pos >= 0 {
		s.records[idx].Tags = slices.Delete(slices.Clone(tags), pos, pos+1)
		s.enqueueLocked()
	}
	s.mu.Unlock()

	if pos >= 0 {
		s.notifyChanged(ctx)
	}
	return true
}

// Clear removes every record, favorites included.
func (s *HistoryService) Clear(ctx context.Context) {
	s.mu.Lock()
	s.records = nil
	s.enqueueLocked()
	s.mu.Unlock()

	s.notifyChanged(ctx)
}

// Cleanup removes non-favorite records captured more than days ago and
// returns how many were removed. days is capped at maxCleanupDays.
func (s *HistoryService) Cleanup(ctx context.Context, days int) int {
	cutoff := time.Now().AddDate(0, 0, -min(days, maxCleanupDays))

	s.mu.Lock()
	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r model.Record) bool {
		return !r.Favorite && r.OlderThan(cutoff)
	})
	removed := before - len(s.records)
	if removed > 0 {
		s.enqueueLocked()
	}
	s.mu.Unlock()

	if removed > 0 {
		s.notifyChanged(ctx)
	}
	return removed
}

// SetMaxItems changes the capacity and evicts down to it.
func (s *HistoryService) SetMaxItems(ctx context.Context, n int) {
	s.mu.Lock()
	s.maxItems = n
	evicted := s.evictLocked()
	if evicted > 0 {
		s.enqueueLocked()
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("history trimmed to new capacity", "max_items", n, "evicted", evicted)
		s.notifyChanged(ctx)
	}
}

// MaxItems returns the current capacity.
func (s *HistoryService) MaxItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxItems
}

// Stats summarizes the history.
func (s *HistoryService) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.Stats{
		TotalItems: len(s.records),
		ByType:     make(map[model.ContentType]int),
	}
	for _, r := range s.records {
		if r.Favorite {
			stats.FavoriteItems++
		}
		stats.ByType[r.Type]++
	}
	if n := len(s.records); n > 0 {
		stats.Newest = s.records[0].Timestamp
		stats.Oldest = s.records[n-1].Timestamp
	}
	return stats
}

// Export returns a snapshot of the full history.
func (s *HistoryService) Export() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Import loads records into the history. Without merge the history is
// replaced. With merge, records whose content already exists fold into the
// existing record: the later timestamp wins, favorite flags are OR-ed and tags
// are unioned. Returns the resulting history size.
func (s *HistoryService) Import(ctx context.Context, records []model.Record, merge bool) int {
	s.mu.Lock()
	var combined []model.Record
	if merge {
		combined = append(combined, s.records...)
	}
	combined = append(combined, records...)
	s.records = normalize(combined)
	s.evictLocked()
	s.enqueueLocked()
	n := len(s.records)
	s.mu.Unlock()

	s.notifyChanged(ctx)
	return n
}

func (s *HistoryService) notifyChanged(ctx context.Context) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(ctx, Event{Kind: EventHistoryChanged})
}

// insertLocked places r before the first record that is not newer than it,
// which is the front for any fresh capture.
func (s *HistoryService) insertLocked(r model.Record) {
	pos := len(s.records)
	for i, existing := range s.records {
		if !existing.Timestamp.After(r.Timestamp) {
			pos = i
			break
		}
	}
	s.records = slices.Insert(s.records, pos, r)
}

// evictLocked trims the history to maxItems. The oldest non-favorites go
// first; favorites are only dropped once none are left. Returns the number
// of records removed.
func (s *HistoryService) evictLocked() int {
	excess := len(s.records) - s.maxItems
	if s.maxItems <= 0 || excess <= 0 {
		return 0
	}

	drop := make(map[int]struct{}, excess)
	for i := len(s.records) - 1; i >= 0 && len(drop) < excess; i-- {
		if !s.records[i].Favorite {
			drop[i] = struct{}{}
		}
	}
	for i := len(s.records) - 1; i >= 0 && len(drop) < excess; i-- {
		drop[i] = struct{}{}
	}

	kept := make([]model.Record, 0, len(s.records)-len(drop))
	for i, r := range s.records {
		if _, ok := drop[i]; !ok {
			kept = append(kept, r)
		}
	}
	s.records = kept

	return len(drop)
}

// enqueueLocked hands the current snapshot to Run, replacing any snapshot
// still waiting. Callers hold s.mu, so only Run competes for the channel.
func (s *HistoryService) enqueueLocked() {
	snap := s.snapshotLocked()

	select {
	case s.pending <- snap:
		return
	default:
	}

	select {
	case <-s.pending:
	default:
	}
	s.pending <- snap
}

func (s *HistoryService) snapshotLocked() model.Snapshot {
	records := make([]model.Record, len(s.records))
	for i, r := range s.records {
		records[i] = r.Clone()
	}
	return model.Snapshot{Records: records, LastUpdated: time.Now()}
}

func (s *HistoryService) indexOfIDLocked(id string) int {
	return slices.IndexFunc(s.records, func(r model.Record) bool { return r.ID == id })
}

func (s *HistoryService) indexOfContentLocked(text string) int {
	return slices.IndexFunc(s.records, func(r model.Record) bool { return r.Content == text })
}

// normalize sorts records newest first and folds records with identical
// content into one. It also repairs fields that older history files may
// lack and gives a fresh id to any record whose id is already taken, so ids
// stay unique. The earlier record keeps a contested id.
func normalize(records []model.Record) []model.Record {
	byContent := make(map[string]int, len(records))
	out := make([]model.Record, 0, len(records))

	for _, r := range records {
		r = repair(r.Clone())

		idx, seen := byContent[r.Content]
		if !seen {
			byContent[r.Content] = len(out)
			out = append(out, r)
			continue
		}

		existing := &out[idx]
		if r.Timestamp.After(existing.Timestamp) {
			existing.Timestamp = r.Timestamp
		}
		existing.Favorite = existing.Favorite || r.Favorite
		for _, tag := range r.Tags {
			if !existing.HasTag(tag) {
				existing.Tags = append(existing.Tags, tag)
			}
		}
	}

	ids := make(map[string]struct{}, len(out))
	for i := range out {
		r := &out[i]
		if _, taken := ids[r.ID]; taken {
			r.ID = recordID(r.Content, r.Timestamp)
			for n := 1; ; n++ {
				if _, taken := ids[r.ID]; !taken {
					break
				}
				r.ID = recordID(r.Content+"\x00"+strconv.Itoa(n), r.Timestamp)
			}
		}
		ids[r.ID] = struct{}{}
	}

	slices.SortStableFunc(out, func(a, b model.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

func repair(r model.Record) model.Record {
	if !r.Type.Valid() {
		r.Type = content.Classify(r.Content)
	}
	if r.ID == "" {
		r.ID = recordID(r.Content, r.Timestamp)
	}
	if r.Preview == "" {
		r.Preview = content.Preview(r.Content, r.Type)
	}
	if r.Size == 0 {
		r.Size = len(r.Content)
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

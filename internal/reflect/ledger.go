package reflect

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"talenerd/internal/logging"
	"talenerd/internal/store"
)

// LedgerBlobKey is the fixed storage key for the persisted call ledger.
const LedgerBlobKey = "talenerd.ledger"

// ErrDuplicateID is returned by Begin when a call id is already registered.
var ErrDuplicateID = errors.New("call id already registered")

// truncation marker appended to capped excerpts.
const truncationMarker = "\n…[truncated]"

// finalizedFunc is invoked after a call reaches a terminal state so the
// engine can enqueue the derived reflection task and request a dispatch pass.
type finalizedFunc func(rec CallRecord)

// Ledger records the lifecycle of generative invocations. Malformed
// transitions are tolerated (logged, ignored) because the ledger must never
// block the caller that owns the real generative call.
type Ledger struct {
	mu           sync.Mutex
	records      map[string]*CallRecord
	capacity     int
	excerptLimit int
	errorLimit   int
	blobs        store.BlobStore
	onFinalized  finalizedFunc
}

// NewLedger loads the persisted ledger from blobs, if any. Records with
// missing fields are repaired with documented defaults rather than dropped.
func NewLedger(blobs store.BlobStore, capacity, excerptLimit, errorLimit int) *Ledger {
	l := &Ledger{
		records:      make(map[string]*CallRecord),
		capacity:     capacity,
		excerptLimit: excerptLimit,
		errorLimit:   errorLimit,
		blobs:        blobs,
	}

	if blobs == nil {
		return l
	}

	data, ok, err := blobs.Load(LedgerBlobKey)
	if err != nil {
		logging.LedgerWarn("Failed to load ledger blob: %v", err)
		return l
	}
	if !ok {
		return l
	}

	var persisted map[string]*CallRecord
	if err := json.Unmarshal(data, &persisted); err != nil {
		logging.LedgerWarn("Failed to parse ledger blob, starting empty: %v", err)
		return l
	}

	now := time.Now()
	for id, rec := range persisted {
		if rec == nil {
			continue
		}
		rec.ID = id
		// Migration defaults: a record persisted without a status is
		// terminal - completed when it carries a response, failed otherwise.
		if rec.Status == "" {
			if rec.ResponseExcerpt != "" {
				rec.Status = StatusCompleted
			} else {
				rec.Status = StatusFailed
			}
		}
		// In-flight records cannot survive a restart.
		if rec.Status == StatusQueued || rec.Status == StatusRunning {
			rec.Status = StatusFailed
			rec.Error = "interrupted by restart"
		}
		if rec.StartedAt.IsZero() {
			rec.StartedAt = now
		}
		l.records[id] = rec
	}

	logging.Ledger("Loaded %d call records", len(l.records))
	return l
}

// setFinalizedHook installs the engine callback fired on finish and on
// external events.
func (l *Ledger) setFinalizedHook(fn finalizedFunc) {
	l.mu.Lock()
	l.onFinalized = fn
	l.mu.Unlock()
}

// Begin inserts a new running record for a generative invocation.
func (l *Ledger) Begin(id, category, model, prompt string) error {
	l.mu.Lock()

	if _, exists := l.records[id]; exists {
		l.mu.Unlock()
		logging.LedgerWarn("Begin: duplicate call id %q (category=%s)", id, category)
		return ErrDuplicateID
	}

	rec := &CallRecord{
		ID:            id,
		Category:      category,
		Model:         model,
		PromptExcerpt: truncate(prompt, l.excerptLimit),
		Status:        StatusRunning,
		StartedAt:     time.Now(),
	}
	l.records[id] = rec
	l.evictLocked()
	l.mu.Unlock()

	logging.LedgerDebug("Begin call %q (category=%s, model=%s)", id, category, model)
	l.persist()
	return nil
}

// Finish transitions a running record to completed and fires the
// finalization hook. Unknown ids or wrong states are logged and ignored.
func (l *Ledger) Finish(id, response string) {
	l.mu.Lock()

	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		logging.LedgerWarn("Finish: unknown call id %q", id)
		return
	}
	if rec.Status != StatusRunning {
		l.mu.Unlock()
		logging.LedgerWarn("Finish: call %q is %s, not running", id, rec.Status)
		return
	}

	now := time.Now()
	rec.Status = StatusCompleted
	rec.ResponseExcerpt = truncate(response, l.excerptLimit)
	rec.FinishedAt = &now
	rec.DurationMs = now.Sub(rec.StartedAt).Milliseconds()
	l.evictLocked()

	snapshot := *rec
	hook := l.onFinalized
	l.mu.Unlock()

	logging.LedgerDebug("Finished call %q in %dms", id, snapshot.DurationMs)
	l.persist()

	if hook != nil {
		hook(snapshot)
	}
}

// Fail transitions a running or queued record to failed. Unknown ids or
// wrong states are logged and ignored.
func (l *Ledger) Fail(id, errorMessage string) {
	l.mu.Lock()

	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		logging.LedgerWarn("Fail: unknown call id %q", id)
		return
	}
	if rec.Status != StatusRunning && rec.Status != StatusQueued {
		l.mu.Unlock()
		logging.LedgerWarn("Fail: call %q is %s, not running or queued", id, rec.Status)
		return
	}

	now := time.Now()
	rec.Status = StatusFailed
	rec.Error = truncate(errorMessage, l.errorLimit)
	rec.FinishedAt = &now
	rec.DurationMs = now.Sub(rec.StartedAt).Milliseconds()
	l.mu.Unlock()

	logging.Ledger("Call %q failed: %s", id, truncate(errorMessage, 200))
	l.persist()
}

// RecordExternalEvent synthesizes a pre-completed record for system events
// that are not true generative calls (e.g. "user reset the conversation").
// The record still feeds the reflection pipeline unless its category is on
// the skip-list.
func (l *Ledger) RecordExternalEvent(id, category, prompt, response string) {
	l.mu.Lock()

	if _, exists := l.records[id]; exists {
		l.mu.Unlock()
		logging.LedgerWarn("RecordExternalEvent: duplicate id %q", id)
		return
	}

	now := time.Now()
	rec := &CallRecord{
		ID:              id,
		Category:        category,
		Model:           "external",
		PromptExcerpt:   truncate(prompt, l.excerptLimit),
		ResponseExcerpt: truncate(response, l.excerptLimit),
		Status:          StatusCompleted,
		StartedAt:       now,
		FinishedAt:      &now,
	}
	l.records[id] = rec
	l.evictLocked()

	snapshot := *rec
	hook := l.onFinalized
	l.mu.Unlock()

	logging.LedgerDebug("Recorded external event %q (category=%s)", id, category)
	l.persist()

	if hook != nil {
		hook(snapshot)
	}
}

// SetCritique attaches a critique to a completed record. The critique is
// written at most once; later attempts are ignored.
func (l *Ledger) SetCritique(id, critique string) {
	l.mu.Lock()

	rec, ok := l.records[id]
	if !ok {
		l.mu.Unlock()
		logging.LedgerWarn("SetCritique: unknown call id %q", id)
		return
	}
	if rec.Status != StatusCompleted {
		l.mu.Unlock()
		logging.LedgerWarn("SetCritique: call %q is %s, not completed", id, rec.Status)
		return
	}
	if rec.Critique != "" {
		l.mu.Unlock()
		logging.LedgerDebug("SetCritique: call %q already critiqued", id)
		return
	}

	rec.Critique = critique
	l.mu.Unlock()

	l.persist()
}

// Get returns a copy of the record for id.
func (l *Ledger) Get(id string) (CallRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}

// List returns all records ordered by start time, descending.
func (l *Ledger) List() []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CallRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// RecentCritiques returns up to limit critiques from the most recently
// started calls, newest first.
func (l *Ledger) RecentCritiques(limit int) []string {
	critiques := make([]string, 0, limit)
	for _, rec := range l.List() {
		if rec.Critique == "" {
			continue
		}
		critiques = append(critiques, rec.Critique)
		if len(critiques) >= limit {
			break
		}
	}
	return critiques
}

// Len returns the number of retained records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear drops every record. Used by engine reset.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.records = make(map[string]*CallRecord)
	l.mu.Unlock()

	logging.Ledger("Cleared call ledger")
	l.persist()
}

// evictLocked drops oldest-by-start records past capacity, retaining the
// newest. Caller holds l.mu.
func (l *Ledger) evictLocked() {
	if l.capacity <= 0 || len(l.records) <= l.capacity {
		return
	}

	ordered := make([]*CallRecord, 0, len(l.records))
	for _, rec := range l.records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	evict := len(ordered) - l.capacity
	for i := 0; i < evict; i++ {
		logging.LedgerDebug("Evicting call %q (started %s)", ordered[i].ID, ordered[i].StartedAt.Format(time.RFC3339))
		delete(l.records, ordered[i].ID)
	}
}

// persist writes the full record map through to the blob store.
func (l *Ledger) persist() {
	if l.blobs == nil {
		return
	}

	l.mu.Lock()
	data, err := json.Marshal(l.records)
	l.mu.Unlock()
	if err != nil {
		logging.LedgerWarn("Failed to marshal ledger: %v", err)
		return
	}
	if err := l.blobs.Persist(LedgerBlobKey, data); err != nil {
		logging.LedgerWarn("Failed to persist ledger: %v", err)
	}
}

// truncate caps s at limit bytes, appending a truncation marker.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// Back up to a rune boundary so the cap never splits a character.
	cut := limit
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + truncationMarker
}
